package config

import "fmt"

// Defaults shared with the rest of the module.
const (
	DefaultModel      = "gemini-pro"
	DefaultPort       = 3000
	DefaultStorageKey = "gemini-chat-history"
	DefaultChunkSize  = 512
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Provider: ProviderConfig{
			Model:          DefaultModel,
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Port:                DefaultPort,
			Bind:                "loopback",
			ChunkSize:           DefaultChunkSize,
			WriteTimeoutSeconds: 180,
		},
		Client: ClientConfig{
			TimeoutSeconds: 180,
		},
		Storage: StorageConfig{
			Backend: "file",
			Key:     DefaultStorageKey,
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c Config) Redacted() Config {
	if c.Provider.APIKey != "" {
		c.Provider.APIKey = "********"
	}
	c.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	return c
}
