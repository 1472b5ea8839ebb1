package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle labels a conversation when the provider supplied no title.
const DefaultTitle = "New Chat"

// ConversationIDPrefix prefixes every generated conversation id.
const ConversationIDPrefix = "chat-"

// Conversation is an ordered, append-only message log.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewConversationID returns a fresh conversation identifier.
func NewConversationID() string {
	return ConversationIDPrefix + uuid.NewString()
}

// Clone returns a deep copy so callers can't mutate store state.
func (c Conversation) Clone() Conversation {
	c.Messages = slices.Clone(c.Messages)
	return c
}

// LastMessage returns the most recent message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}
