// Package kv provides string-keyed, string-valued stores used to persist
// chat history: in memory, as files on disk, or in SQLite.
package kv

import (
	"fmt"

	"github.com/soyeahso/geminichat/internal/logging"
)

// Store is a minimal key-value string store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Close releases any resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the store for the named backend. path is the directory for
// the file backend and the database file for sqlite; memory ignores it.
func Open(backend, path string, log *logging.Logger) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile, "":
		return NewFileStore(path, log)
	case BackendSQLite:
		return OpenSQLite(path, log)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", backend)
	}
}
