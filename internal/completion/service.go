// Package completion turns a chat transcript into one model call and maps
// the result into a chat response.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/llm"
	"github.com/soyeahso/geminichat/internal/logging"
)

// Generation parameters sent with every chat turn.
const (
	Temperature     = 0.7
	TopK            = 40
	TopP            = 0.95
	MaxOutputTokens = 1024
)

// MissingKeyMessage is the ConfigError text when no API key is set.
const MissingKeyMessage = "GOOGLE_API_KEY is not configured"

func generationConfig() *llm.GenerationConfig {
	return &llm.GenerationConfig{
		Temperature:     Temperature,
		TopK:            TopK,
		TopP:            TopP,
		MaxOutputTokens: MaxOutputTokens,
	}
}

// Service is the in-process completion gateway.
type Service struct {
	client llm.Client
	model  string
	log    *logging.Logger
}

// NewService creates a Service. A nil client means the provider is not
// configured; every request then fails with a ConfigError.
func NewService(client llm.Client, model string, log *logging.Logger) *Service {
	return &Service{client: client, model: model, log: log.Sub("completion")}
}

// Configured reports whether a provider client is available.
func (s *Service) Configured() bool {
	return s.client != nil
}

// Generate answers the last message of history. For a single-message
// history it also asks for a conversation title; a failed title request
// only drops the title.
func (s *Service) Generate(ctx context.Context, history []domain.Message) (*domain.ChatResponse, error) {
	if s.client == nil {
		return nil, &ConfigError{Message: MissingKeyMessage}
	}

	contents, err := toContents(history)
	if err != nil {
		return nil, err
	}

	last := history[len(history)-1]
	s.log.Info().
		Int("messages", len(history)).
		Str("model", s.model).
		Str("preview", preview(last.Content, 100)).
		Msg("chat request")

	resp, err := s.client.Generate(ctx, llm.Request{
		Model:    s.model,
		Contents: contents,
		Config:   generationConfig(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("generation failed")
		return nil, &UpstreamError{Err: err}
	}

	out := &domain.ChatResponse{
		Message: domain.NewMessage(domain.RoleAssistant, resp.Text),
	}
	s.log.Debug().
		Str("preview", preview(resp.Text, 100)).
		Dur("duration", resp.Duration).
		Msg("chat response")

	if len(history) == 1 {
		title, err := s.title(ctx, last.Content)
		if err != nil {
			s.log.Warn().Err(err).Msg("title generation failed")
		} else {
			out.ChatTitle = title
		}
	}
	return out, nil
}

// Complete runs Generate and returns the JSON-encoded response as a stream.
func (s *Service) Complete(ctx context.Context, history []domain.Message) (io.ReadCloser, error) {
	resp, err := s.Generate(ctx, history)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encoding response: %w", err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Service) title(ctx context.Context, firstMessage string) (string, error) {
	resp, err := s.client.Generate(ctx, llm.Request{
		Model:    s.model,
		Contents: []llm.Content{{Role: llm.RoleUser, Text: TitlePrompt(firstMessage)}},
	})
	if err != nil {
		return "", err
	}
	return CleanTitle(resp.Text), nil
}

// toContents maps the transcript to provider turns. The last message must
// come from the user.
func toContents(history []domain.Message) ([]llm.Content, error) {
	if len(history) == 0 {
		return nil, &RequestError{Message: "messages must not be empty"}
	}
	contents := make([]llm.Content, 0, len(history))
	for i, m := range history {
		var role string
		switch m.Role {
		case domain.RoleUser:
			role = llm.RoleUser
		case domain.RoleAssistant:
			role = llm.RoleModel
		default:
			return nil, &RequestError{Message: fmt.Sprintf("message %d has unknown role %q", i, m.Role)}
		}
		contents = append(contents, llm.Content{Role: role, Text: m.Content})
	}
	if history[len(history)-1].Role != domain.RoleUser {
		return nil, &RequestError{Message: "last message must be from the user"}
	}
	if strings.TrimSpace(history[len(history)-1].Content) == "" {
		return nil, &RequestError{Message: "last message is empty"}
	}
	return contents, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
