package queue

import (
	"time"

	"vignette/internal/review"
)

// Item is one pending notification event. Items are immutable once enqueued;
// the flush orchestrator deletes them in bulk after a delivery attempt and a
// deleted item is never re-read.
type Item struct {
	ID          int64
	TenantID    string
	Kind        review.ChannelKind
	EventType   string
	PayloadJSON string
	CreatedAt   time.Time
}

// TenantCount summarizes pending items for one (tenant, kind) pair.
type TenantCount struct {
	TenantID string
	Kind     review.ChannelKind
	Count    int
	Oldest   time.Time
	Newest   time.Time
}
