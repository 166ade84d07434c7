package testsupport

import (
	"context"
	"testing"
	"time"

	"vignette/internal/config"
	"vignette/internal/queue"
	"vignette/internal/review"
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

// Enqueue inserts one queue item for tests using the provided store.
func Enqueue(t testing.TB, store *queue.Store, tenantID string, kind review.ChannelKind, eventType, payload string, createdAt time.Time) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), &queue.Item{
		TenantID:    tenantID,
		Kind:        kind,
		EventType:   eventType,
		PayloadJSON: payload,
		CreatedAt:   createdAt,
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}
