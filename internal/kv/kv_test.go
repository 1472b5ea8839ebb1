package kv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/soyeahso/geminichat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(nil, "silent")
}

// backends returns a fresh store of every kind.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir(), testLog())
	require.NoError(t, err)
	sq, err := OpenSQLite(":memory:", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": sq,
	}
}

func TestStoreContract(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("gemini-chat-history", `[{"id":"chat-1"}]`))
			v, ok, err := s.Get("gemini-chat-history")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `[{"id":"chat-1"}]`, v)

			require.NoError(t, s.Set("gemini-chat-history", "[]"))
			v, _, err = s.Get("gemini-chat-history")
			require.NoError(t, err)
			assert.Equal(t, "[]", v)

			require.NoError(t, s.Set("empty", ""))
			v, ok, err = s.Get("empty")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Empty(t, v)
		})
	}
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	s1, err := NewFileStore(dir, testLog())
	require.NoError(t, err)
	require.NoError(t, s1.Set("k", "v1"))

	s2, err := NewFileStore(dir, testLog())
	require.NoError(t, err)
	v, ok, err := s2.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "k.json", entries[0].Name())
}

func TestFileStoreRejectsBadKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), testLog())
	require.NoError(t, err)
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, s.Set(key, "x"), key)
		_, _, err := s.Get(key)
		assert.Error(t, err, key)
	}
}

func TestFileStoreNeedsDir(t *testing.T) {
	_, err := NewFileStore("", testLog())
	assert.Error(t, err)
}

func TestSQLitePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "chat.db")
	s1, err := OpenSQLite(path, testLog())
	require.NoError(t, err)
	require.NoError(t, s1.Set("k", "v1"))
	require.NoError(t, s1.Close())

	s2, err := OpenSQLite(path, testLog())
	require.NoError(t, err)
	defer s2.Close()
	v, ok, err := s2.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestSQLiteMigrationsIdempotent(t *testing.T) {
	s, err := OpenSQLite(":memory:", testLog())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.migrate())

	var count int
	require.NoError(t, s.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(BackendMemory, "", testLog())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(BackendFile, filepath.Join(dir, "files"), testLog())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(BackendSQLite, filepath.Join(dir, "chat.db"), testLog())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("redis", "", testLog())
	assert.ErrorContains(t, err, "unknown backend")
}
