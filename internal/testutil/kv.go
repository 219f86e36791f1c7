package testutil

import (
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/toolguard/internal/kv"
)

// NewTestKV returns a temporary SQLite KV store for tests.
//
// The caller does not need to close it; cleanup is registered on t.Cleanup.
func NewTestKV(t *testing.T) *kv.SQLite {
	t.Helper()

	return NewTestKVAtPath(t, filepath.Join(t.TempDir(), "toolguard.db"))
}

// NewTestKVAtPath opens a SQLite KV store at a specific path.
func NewTestKVAtPath(t *testing.T, path string) *kv.SQLite {
	t.Helper()

	if path == "" {
		t.Fatalf("NewTestKVAtPath: path is required")
	}

	store, err := kv.OpenSQLite(path)
	if err != nil {
		t.Fatalf("opening test kv: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}
