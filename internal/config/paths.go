package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".geminichat"

// Paths holds resolved filesystem paths for geminichat data.
type Paths struct {
	Base    string // ~/.geminichat
	Config  string // ~/.geminichat/config.yaml
	Data    string // ~/.geminichat/data
	History string // ~/.geminichat/data/history (file backend directory)
	DB      string // ~/.geminichat/data/geminichat.db (sqlite backend)
}

// ResolvePaths computes all standard paths from the home directory.
// If GEMINICHAT_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("GEMINICHAT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:    base,
		Config:  filepath.Join(base, "config.yaml"),
		Data:    data,
		History: filepath.Join(data, "history"),
		DB:      filepath.Join(data, "geminichat.db"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.History} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}

// StoragePath returns the location the configured storage backend should use:
// the explicit storage.path when set, otherwise the backend's default.
func (p Paths) StoragePath(s StorageConfig) string {
	if s.Path != "" {
		return s.Path
	}
	if s.Backend == "sqlite" {
		return p.DB
	}
	return p.History
}
