package history

import (
	"encoding/json"
	"time"

	"github.com/soyeahso/geminichat/internal/domain"
)

// TimeLayout is the ISO-8601 form used for every persisted timestamp.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Stored shapes keep timestamps as strings so one bad value doesn't reject
// the whole snapshot.
type storedMessage struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
	Pending   bool   `json:"pending,omitempty"`
}

type storedConversation struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Messages  []storedMessage `json:"messages"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// Encode serializes conversations as a JSON array. Failed messages are
// dropped, as are conversations left with no messages.
func Encode(convs []domain.Conversation) (string, error) {
	out := make([]storedConversation, 0, len(convs))
	for _, c := range convs {
		sc := storedConversation{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: formatTime(c.CreatedAt),
			UpdatedAt: formatTime(c.UpdatedAt),
			Messages:  make([]storedMessage, 0, len(c.Messages)),
		}
		for _, m := range c.Messages {
			if m.Failed {
				continue
			}
			sc.Messages = append(sc.Messages, storedMessage{
				ID:        m.ID,
				Content:   m.Content,
				Role:      string(m.Role),
				CreatedAt: formatTime(m.CreatedAt),
				Pending:   m.Pending,
			})
		}
		if len(sc.Messages) == 0 {
			continue
		}
		out = append(out, sc)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a snapshot written by Encode. Only a payload that is not a
// JSON array of objects is an error; unknown fields are ignored, bad
// timestamps become zero or fall back to neighbouring values, and entries
// without an id, a known role, or any messages are skipped.
func Decode(data string) ([]domain.Conversation, error) {
	if data == "" {
		return nil, nil
	}

	var stored []storedConversation
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for _, sc := range stored {
		if sc.ID == "" || seen[sc.ID] {
			continue
		}

		c := domain.Conversation{
			ID:        sc.ID,
			Title:     sc.Title,
			CreatedAt: parseTime(sc.CreatedAt),
			UpdatedAt: parseTime(sc.UpdatedAt),
		}
		for _, sm := range sc.Messages {
			role := domain.Role(sm.Role)
			if sm.ID == "" || !role.Valid() {
				continue
			}
			c.Messages = append(c.Messages, domain.Message{
				ID:        sm.ID,
				Content:   sm.Content,
				Role:      role,
				CreatedAt: parseTime(sm.CreatedAt),
				Pending:   sm.Pending,
			})
		}
		if len(c.Messages) == 0 {
			continue
		}

		if c.Title == "" {
			c.Title = domain.DefaultTitle
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = c.Messages[0].CreatedAt
		}
		if c.UpdatedAt.IsZero() {
			last, _ := c.LastMessage()
			c.UpdatedAt = last.CreatedAt
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = c.CreatedAt
			}
		}

		seen[c.ID] = true
		convs = append(convs, c)
	}
	return convs, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
