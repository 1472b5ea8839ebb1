package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateIssues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"missing model", func(c *Config) { c.Provider.Model = "" }, "provider.model"},
		{"bad endpoint", func(c *Config) { c.Provider.Endpoint = "ftp://x" }, "provider.endpoint"},
		{"negative timeout", func(c *Config) { c.Provider.TimeoutSeconds = -1 }, "provider.timeoutSeconds"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown bind", func(c *Config) { c.Server.Bind = "everywhere" }, "server.bind"},
		{"negative chunk", func(c *Config) { c.Server.ChunkSize = -5 }, "server.chunkSize"},
		{"bad server url", func(c *Config) { c.Client.ServerURL = "localhost:3000" }, "client.serverUrl"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, "storage.backend"},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"unknown style", func(c *Config) { c.Logging.ConsoleStyle = "fancy" }, "logging.consoleStyle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			issues := Validate(&cfg)
			if assert.Len(t, issues, 1) {
				assert.Equal(t, tt.path, issues[0].Path)
				assert.Contains(t, issues[0].String(), tt.path+": ")
			}
		})
	}
}

func TestValidateAcceptsHTTPSURLs(t *testing.T) {
	cfg := Defaults()
	cfg.Provider.Endpoint = "https://generativelanguage.googleapis.com/"
	cfg.Client.ServerURL = "https://chat.example.com"
	assert.Empty(t, Validate(&cfg))
}
