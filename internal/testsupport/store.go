package testsupport

import (
	"context"
	"testing"

	"reelsmith/internal/config"
	"reelsmith/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustPlan plans a clip job for tests using the provided store.
func MustPlan(t testing.TB, store *queue.Store, videoID, channelName string) *queue.Job {
	t.Helper()

	job, _, err := store.Plan(context.Background(), videoID, channelName)
	if err != nil {
		t.Fatalf("store.Plan: %v", err)
	}
	return job
}
