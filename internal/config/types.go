package config

// Config is the root configuration for geminichat.
type Config struct {
	Provider ProviderConfig `yaml:"provider,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Client   ClientConfig   `yaml:"client,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
}

// ProviderConfig configures access to the upstream Gemini API.
type ProviderConfig struct {
	APIKey         string `yaml:"apiKey,omitempty"`   // may be written as ${GOOGLE_API_KEY}
	Model          string `yaml:"model,omitempty"`    // default "gemini-pro"
	Endpoint       string `yaml:"endpoint,omitempty"` // base URL override, empty for Google's
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// ServerConfig controls the HTTP server exposing POST /chat.
type ServerConfig struct {
	Port                int      `yaml:"port,omitempty"`
	Bind                string   `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost      string   `yaml:"customBindHost,omitempty"`
	AllowedOrigins      []string `yaml:"allowedOrigins,omitempty"`
	ChunkSize           int      `yaml:"chunkSize,omitempty"` // bytes per streamed body chunk
	WriteTimeoutSeconds int      `yaml:"writeTimeoutSeconds,omitempty"`
}

// ClientConfig controls how the chat client reaches a completion gateway.
type ClientConfig struct {
	ServerURL      string `yaml:"serverUrl,omitempty"` // empty runs the gateway in-process
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// StorageConfig selects the key-value store that holds conversation history.
type StorageConfig struct {
	Backend string `yaml:"backend,omitempty"` // "file" | "sqlite" | "memory"
	Path    string `yaml:"path,omitempty"`    // directory (file) or database file (sqlite)
	Key     string `yaml:"key,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
