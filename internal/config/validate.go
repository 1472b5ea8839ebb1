package config

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/soyeahso/geminichat/internal/logging"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
// A missing API key is not an issue here: it is reported per request by the
// completion gateway, and a client pointed at a remote server needs no key.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Provider.Model == "" {
		issues = append(issues, ValidationIssue{Path: "provider.model", Message: "model is required"})
	}
	if cfg.Provider.Endpoint != "" && !isHTTPURL(cfg.Provider.Endpoint) {
		issues = append(issues, ValidationIssue{
			Path:    "provider.endpoint",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Provider.Endpoint),
		})
	}
	if cfg.Provider.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{Path: "provider.timeoutSeconds", Message: "must not be negative"})
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "server.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Server.Port),
		})
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Server.Bind != "" && !slices.Contains(validBinds, cfg.Server.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "server.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Server.Bind),
		})
	}
	if cfg.Server.ChunkSize < 0 {
		issues = append(issues, ValidationIssue{Path: "server.chunkSize", Message: "must not be negative"})
	}

	if cfg.Client.ServerURL != "" && !isHTTPURL(cfg.Client.ServerURL) {
		issues = append(issues, ValidationIssue{
			Path:    "client.serverUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Client.ServerURL),
		})
	}

	validBackends := []string{"file", "sqlite", "memory"}
	if cfg.Storage.Backend != "" && !slices.Contains(validBackends, cfg.Storage.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "storage.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Storage.Backend),
		})
	}

	if cfg.Logging.Level != "" && !slices.Contains(logging.ValidLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", logging.ValidLevels, cfg.Logging.Level),
		})
	}
	validStyles := []string{logging.StylePretty, logging.StyleJSON}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
