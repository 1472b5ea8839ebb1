package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/soyeahso/geminichat/internal/logging"
	"github.com/soyeahso/geminichat/internal/version"
)

// DefaultGeminiEndpoint is the Generative Language API base URL.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/"

// GeminiClient calls the Generative Language API generateContent method.
type GeminiClient struct {
	apiKey   string
	model    string
	endpoint string
	timeout  time.Duration
	client   *http.Client
	log      *logging.Logger
}

// GeminiOptions configures NewGeminiClient.
type GeminiOptions struct {
	APIKey   string
	Model    string        // default model when a request names none
	Endpoint string        // base URL override, empty for Google's
	Timeout  time.Duration // per call, 0 for none
}

// NewGeminiClient creates a Gemini client authenticated with an API key.
func NewGeminiClient(opts GeminiOptions, log *logging.Logger) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: API key is required")
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = DefaultGeminiEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	return &GeminiClient{
		apiKey:   opts.APIKey,
		model:    opts.Model,
		endpoint: endpoint,
		timeout:  opts.Timeout,
		client:   &http.Client{},
		log:      log.Sub("gemini"),
	}, nil
}

// Name returns the provider name.
func (g *GeminiClient) Name() string {
	return "gemini"
}

// Generate sends a non-streaming generateContent request. The full
// Contents slice becomes the chat history, the last entry being the
// message to answer.
func (g *GeminiClient) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	model := req.Model
	if model == "" {
		model = g.model
	}
	if model == "" {
		return nil, &ProviderError{Provider: g.Name(), Message: "no model configured"}
	}
	if len(req.Contents) == 0 {
		return nil, &ProviderError{Provider: g.Name(), Message: "no contents to send"}
	}

	payload, err := json.Marshal(buildGenerateRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	url := g.endpoint + "v1beta/" + modelResource(model) + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("X-Goog-Api-Key", g.apiKey)

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, g.wrapError(err)
	}
	defer httpResp.Body.Close()

	if err := googleapi.CheckResponse(httpResp); err != nil {
		return nil, g.wrapError(err)
	}

	var resp generateResponse
	if err := json.NewDecoder(io.LimitReader(httpResp.Body, 16<<20)).Decode(&resp); err != nil {
		return nil, g.wrapError(fmt.Errorf("failed to parse response: %w", err))
	}

	text, finish, err := responseText(&resp)
	if err != nil {
		return nil, &ProviderError{Provider: g.Name(), Message: err.Error()}
	}

	g.log.Debug().
		Str("model", model).
		Int("contents", len(req.Contents)).
		Str("finishReason", finish).
		Dur("duration", time.Since(start)).
		Msg("generateContent completed")

	return &Response{
		Text:         text,
		FinishReason: finish,
		Model:        model,
		Duration:     time.Since(start),
	}, nil
}

func (g *GeminiClient) wrapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = strings.TrimSpace(apiErr.Body)
		}
		return &ProviderError{Provider: g.Name(), Message: msg, Code: apiErr.Code}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Provider: g.Name(), Message: err.Error()}
}

func modelResource(model string) string {
	if strings.HasPrefix(model, "models/") || strings.HasPrefix(model, "tunedModels/") {
		return model
	}
	return "models/" + model
}

// Wire types for generateContent.

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generateConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generateConfig   `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *generateContent `json:"content"`
		FinishReason string           `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func buildGenerateRequest(req Request) *generateRequest {
	contents := make([]generateContent, 0, len(req.Contents))
	for _, c := range req.Contents {
		contents = append(contents, generateContent{
			Role:  c.Role,
			Parts: []generatePart{{Text: c.Text}},
		})
	}

	body := &generateRequest{Contents: contents}
	if cfg := req.Config; cfg != nil {
		body.GenerationConfig = &generateConfig{
			Temperature:     cfg.Temperature,
			TopK:            cfg.TopK,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxOutputTokens,
		}
	}
	return body
}

func responseText(resp *generateResponse) (text, finish string, err error) {
	if len(resp.Candidates) == 0 {
		if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
			return "", "", fmt.Errorf("prompt blocked: %s", pf.BlockReason)
		}
		return "", "", errors.New("response has no candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	if sb.Len() == 0 && cand.FinishReason != "" && cand.FinishReason != "STOP" {
		return "", cand.FinishReason, fmt.Errorf("no text returned (finish reason %s)", cand.FinishReason)
	}
	return sb.String(), cand.FinishReason, nil
}
