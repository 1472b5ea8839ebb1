// Package client reaches a remote geminichat server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/logging"
	"github.com/soyeahso/geminichat/internal/version"
)

// DefaultErrorMessage is used when a failed response carries no message.
const DefaultErrorMessage = "Failed to get response"

// maxErrorBody bounds how much of a failed response body is read.
const maxErrorBody = 64 << 10

// StatusError is returned when the server answers with status >= 400.
type StatusError struct {
	Code    int
	Message string
}

// Error returns the server's message as is so it can be shown to the user.
func (e *StatusError) Error() string {
	return e.Message
}

// HTTPGateway posts transcripts to a chat server's /chat route.
type HTTPGateway struct {
	baseURL string
	http    *http.Client
	log     *logging.Logger
}

// NewHTTPGateway creates a gateway for the server at baseURL. A zero
// timeout leaves requests bounded only by their context.
func NewHTTPGateway(baseURL string, timeout time.Duration, log *logging.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log.Sub("client"),
	}
}

// Complete sends history and returns the streamed response body. The
// caller must close it.
func (g *HTTPGateway) Complete(ctx context.Context, history []domain.Message) (io.ReadCloser, error) {
	body, err := json.Marshal(domain.ChatRequest{Messages: history})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	g.log.Debug().Int("messages", len(history)).Str("url", req.URL.String()).Msg("posting chat request")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat request: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		serr := &StatusError{Code: resp.StatusCode, Message: errorMessage(resp.Body)}
		g.log.Warn().Int("status", serr.Code).Str("message", serr.Message).Msg("chat request rejected")
		return nil, serr
	}
	return resp.Body, nil
}

// errorMessage picks details, then error, then the default message.
func errorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return DefaultErrorMessage
	}
	var body domain.ErrorResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return DefaultErrorMessage
	}
	switch {
	case body.Details != "":
		return body.Details
	case body.Error != "":
		return body.Error
	default:
		return DefaultErrorMessage
	}
}
