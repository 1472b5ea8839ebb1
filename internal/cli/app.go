package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/soyeahso/geminichat/internal/client"
	"github.com/soyeahso/geminichat/internal/completion"
	"github.com/soyeahso/geminichat/internal/config"
	"github.com/soyeahso/geminichat/internal/domain"
	"github.com/soyeahso/geminichat/internal/history"
	"github.com/soyeahso/geminichat/internal/kv"
	"github.com/soyeahso/geminichat/internal/llm"
	"github.com/soyeahso/geminichat/internal/session"
)

// validateConfig logs every issue and fails if there are any.
func validateConfig() error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

// openHistory opens the configured key-value backend and loads the
// conversation store from it. The returned func closes the backend.
func openHistory() (*history.Store, func() error, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, nil, fmt.Errorf("creating data directories: %w", err)
	}

	location := paths.StoragePath(cfg.Storage)
	backend, err := kv.Open(cfg.Storage.Backend, location, log)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s history store: %w", cfg.Storage.Backend, err)
	}
	log.Debug().Str("backend", cfg.Storage.Backend).Str("path", location).Msg("history store opened")

	store := history.New(backend, cfg.Storage.Key, log)
	store.Load()
	return store, backend.Close, nil
}

// newCompletionService builds the in-process completion gateway. Without
// an API key the service still starts and fails each request.
func newCompletionService() (*completion.Service, error) {
	model := cfg.Provider.Model
	if cfg.Provider.APIKey == "" {
		log.Warn().Msg("GOOGLE_API_KEY is not set; chat requests will fail until it is configured")
		return completion.NewService(nil, model, log), nil
	}

	gemini, err := llm.NewGeminiClient(llm.GeminiOptions{
		APIKey:   cfg.Provider.APIKey,
		Model:    model,
		Endpoint: cfg.Provider.Endpoint,
		Timeout:  time.Duration(cfg.Provider.TimeoutSeconds) * time.Second,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	log.Info().Str("model", model).Msg("gemini provider configured")
	return completion.NewService(gemini, model, log), nil
}

// newGateway returns a remote gateway when serverURL is set and the
// in-process service otherwise, plus a description for display.
func newGateway(serverURL string) (session.Gateway, string, error) {
	if serverURL != "" {
		timeout := time.Duration(cfg.Client.TimeoutSeconds) * time.Second
		return client.NewHTTPGateway(serverURL, timeout, log), serverURL, nil
	}
	svc, err := newCompletionService()
	if err != nil {
		return nil, "", err
	}
	return svc, "in-process (" + cfg.Provider.Model + ")", nil
}

// resolveConversation maps a 1-based index into list, or a conversation
// id with or without its prefix, to an id.
func resolveConversation(list []domain.Conversation, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("a conversation number or id is required")
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(list) {
			return "", fmt.Errorf("no conversation #%d (have %d)", n, len(list))
		}
		return list[n-1].ID, nil
	}
	for _, c := range list {
		if c.ID == ref || c.ID == domain.ConversationIDPrefix+ref {
			return c.ID, nil
		}
	}
	return "", fmt.Errorf("no conversation %q", ref)
}
