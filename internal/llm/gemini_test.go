package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/geminichat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

type capturedRequest struct {
	Path      string
	APIKey    string
	UserAgent string
	Body      map[string]any
}

func geminiServer(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Path = r.URL.Path
		captured.APIKey = r.Header.Get("X-Goog-Api-Key")
		captured.UserAgent = r.Header.Get("User-Agent")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &captured.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newTestGemini(t *testing.T, endpoint string) *GeminiClient {
	t.Helper()
	c, err := NewGeminiClient(GeminiOptions{
		APIKey:   "test-key",
		Model:    "gemini-pro",
		Endpoint: endpoint,
		Timeout:  5 * time.Second,
	}, silentLog())
	require.NoError(t, err)
	return c
}

func TestGeminiGenerate(t *testing.T) {
	srv, captured := geminiServer(t, http.StatusOK, `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "Hi "}, {"text": "there!"}]},
			"finishReason": "STOP"
		}]
	}`)
	c := newTestGemini(t, srv.URL)

	resp, err := c.Generate(context.Background(), Request{
		Contents: []Content{
			{Role: RoleUser, Text: "Hello"},
			{Role: RoleModel, Text: "Hey"},
			{Role: RoleUser, Text: "How are you?"},
		},
		Config: &GenerationConfig{Temperature: 0.7, TopK: 40, TopP: 0.95, MaxOutputTokens: 1024},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi there!", resp.Text)
	assert.Equal(t, "STOP", resp.FinishReason)
	assert.Equal(t, "gemini-pro", resp.Model)

	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", captured.Path)
	assert.Equal(t, "test-key", captured.APIKey)
	assert.True(t, strings.HasPrefix(captured.UserAgent, "geminichat/"))

	contents, ok := captured.Body["contents"].([]any)
	require.True(t, ok)
	require.Len(t, contents, 3)
	second := contents[1].(map[string]any)
	assert.Equal(t, "model", second["role"])
	parts := second["parts"].([]any)
	assert.Equal(t, "Hey", parts[0].(map[string]any)["text"])

	gen, ok := captured.Body["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.7, gen["temperature"], 1e-9)
	assert.InDelta(t, 0.95, gen["topP"], 1e-9)
	assert.EqualValues(t, 40, gen["topK"])
	assert.EqualValues(t, 1024, gen["maxOutputTokens"])
}

func TestGeminiRequestModelOverride(t *testing.T) {
	srv, captured := geminiServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	c := newTestGemini(t, srv.URL)

	resp, err := c.Generate(context.Background(), Request{
		Model:    "gemini-1.5-flash",
		Contents: []Content{{Role: RoleUser, Text: "title please"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", captured.Path)
	assert.NotContains(t, captured.Body, "generationConfig")
}

func TestGeminiAPIError(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusForbidden,
		`{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	c := newTestGemini(t, srv.URL)

	_, err := c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "gemini", provErr.Provider)
	assert.Equal(t, 403, provErr.Code)
	assert.Contains(t, provErr.Message, "API key not valid")
}

func TestGeminiPlainTextError(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusBadGateway, "upstream unavailable")
	c := newTestGemini(t, srv.URL)

	_, err := c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 502, provErr.Code)
	assert.Equal(t, "upstream unavailable", provErr.Message)
}

func TestGeminiMalformedResponse(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"candidates":`)
	c := newTestGemini(t, srv.URL)

	_, err := c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Message, "failed to parse response")
}

func TestGeminiDefaultEndpoint(t *testing.T) {
	c, err := NewGeminiClient(GeminiOptions{APIKey: "k", Model: "gemini-pro"}, silentLog())
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiEndpoint, c.endpoint)

	c = newTestGemini(t, "http://example.test/base")
	assert.Equal(t, "http://example.test/base/", c.endpoint)
}

func TestGeminiBlockedPrompt(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	c := newTestGemini(t, srv.URL)

	_, err := c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Message, "SAFETY")
}

func TestGeminiNoTextFinishReason(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"candidates":[{"finishReason":"MAX_TOKENS"}]}`)
	c := newTestGemini(t, srv.URL)

	_, err := c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Contains(t, provErr.Message, "MAX_TOKENS")
}

func TestGeminiValidation(t *testing.T) {
	_, err := NewGeminiClient(GeminiOptions{Model: "gemini-pro"}, silentLog())
	assert.Error(t, err)

	c, err := NewGeminiClient(GeminiOptions{APIKey: "k"}, silentLog())
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	assert.ErrorContains(t, err, "no model configured")

	c = newTestGemini(t, "http://127.0.0.1:1")
	_, err = c.Generate(context.Background(), Request{})
	assert.ErrorContains(t, err, "no contents")
}

func TestGeminiCancelledContext(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusOK, `{"candidates":[]}`)
	c := newTestGemini(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Generate(ctx, Request{Contents: []Content{{Role: RoleUser, Text: "hi"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModelResource(t *testing.T) {
	assert.Equal(t, "models/gemini-pro", modelResource("gemini-pro"))
	assert.Equal(t, "models/gemini-pro", modelResource("models/gemini-pro"))
	assert.Equal(t, "tunedModels/x", modelResource("tunedModels/x"))
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: "gemini", Message: "quota exceeded", Code: 429}
	assert.Equal(t, "gemini: 429 quota exceeded", err.Error())

	err2 := &ProviderError{Provider: "gemini", Message: "unknown error"}
	assert.Equal(t, "gemini: unknown error", err2.Error())
}

func TestMockClient(t *testing.T) {
	m := &MockClient{ProviderName: "mock"}
	resp, err := m.Generate(context.Background(), Request{Model: "x"})
	require.NoError(t, err)
	assert.Equal(t, "mock response", resp.Text)
	assert.Equal(t, "mock", m.Name())

	m.GenerateFunc = func(ctx context.Context, req Request) (*Response, error) {
		return nil, &ProviderError{Provider: "mock", Message: "rate limited", Code: 429}
	}
	_, err = m.Generate(context.Background(), Request{Model: "y"})
	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "y", calls[1].Model)
}
