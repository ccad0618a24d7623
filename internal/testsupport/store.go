package testsupport

import (
	"context"
	"testing"

	"mintline/internal/checkpoint"
	"mintline/internal/config"
)

// MustOpenStore opens a checkpoint.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *checkpoint.Store {
	t.Helper()

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("checkpoint.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates an idle run for tests using the provided store.
func NewRun(t testing.TB, store *checkpoint.Store, batchKey string, items, mints int) *checkpoint.Run {
	t.Helper()

	run, err := store.CreateRun(context.Background(), batchKey, "identity", items, mints)
	if err != nil {
		t.Fatalf("store.CreateRun: %v", err)
	}
	return run
}
