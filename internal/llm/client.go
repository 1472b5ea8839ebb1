// Package llm defines the model client interface used by the completion
// gateway and the Gemini implementation behind it.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Provider roles for conversation turns.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Content is a single turn sent to the provider.
type Content struct {
	Role string `json:"role"` // "user" or "model"
	Text string `json:"text"`
}

// GenerationConfig holds sampling parameters.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

// Request is the input to Generate. Contents are oldest first; the last
// entry is the turn being answered.
type Request struct {
	Model    string            `json:"model,omitempty"`
	Contents []Content         `json:"contents"`
	Config   *GenerationConfig `json:"generationConfig,omitempty"`
}

// Response is the result of a Generate call.
type Response struct {
	Text         string        `json:"text"`
	FinishReason string        `json:"finishReason,omitempty"`
	Model        string        `json:"model,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
}

// Client is the interface model providers implement.
type Client interface {
	// Generate sends the request and returns the full response text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name (e.g., "gemini").
	Name() string
}

// ProviderError is returned when the provider rejects or fails a request.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status from the provider, 0 if none
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
