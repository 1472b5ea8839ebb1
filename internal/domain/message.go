package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in a conversation log.
// Content, Role and ID never change after creation.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Pending   bool      `json:"pending,omitempty"` // wire-compatible; nothing sets it
	Failed    bool      `json:"failed,omitempty"`
}

// NewMessage creates a message with a fresh id and the current time,
// truncated to the millisecond precision history is persisted at.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Content:   content,
		Role:      role,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

// NewUserMessage trims input and returns a user message.
// ok is false when the trimmed input is empty.
func NewUserMessage(input string) (msg Message, ok bool) {
	content := strings.TrimSpace(input)
	if content == "" {
		return Message{}, false
	}
	return NewMessage(RoleUser, content), true
}
