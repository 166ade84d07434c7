package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vignette/internal/config"
	"vignette/internal/review"
	"vignette/internal/services"
)

// Store manages digest queue persistence backed by SQLite. Concurrent enqueue
// from multiple event producers is safe; concurrent flush of the same tenant
// is prevented by the orchestrator's lock set, not by the store.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "digest-queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const itemColumns = "id, tenant_id, kind, event_type, payload_json, created_at"

// Enqueue appends one pending notification event.
func (s *Store) Enqueue(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "item is nil", nil)
	}
	if strings.TrimSpace(item.TenantID) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "tenant id is required", nil)
	}
	if strings.TrimSpace(string(item.Kind)) == "" {
		return nil, services.Wrap(services.ErrValidation, "queue", "enqueue", "channel kind is required", nil)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	payload := item.PayloadJSON
	if strings.TrimSpace(payload) == "" {
		payload = "{}"
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO digest_items (tenant_id, kind, event_type, payload_json, created_at)
         VALUES (?, ?, ?, ?, ?)`,
		item.TenantID,
		string(item.Kind),
		item.EventType,
		payload,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert digest item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	inserted := *item
	inserted.ID = id
	inserted.CreatedAt = createdAt
	inserted.PayloadJSON = payload
	return &inserted, nil
}

// PeekNewest returns the most recently enqueued item for (tenant, kind), or
// nil when the queue is empty. Used for the debounce silence check.
func (s *Store) PeekNewest(ctx context.Context, tenantID string, kind review.ChannelKind) (*Item, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+itemColumns+` FROM digest_items
         WHERE tenant_id = ? AND kind = ?
         ORDER BY created_at DESC, id DESC LIMIT 1`,
		tenantID, string(kind),
	)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek newest: %w", err)
	}
	return item, nil
}

// ListAll returns every pending item for (tenant, kind), oldest first.
func (s *Store) ListAll(ctx context.Context, tenantID string, kind review.ChannelKind) ([]Item, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM digest_items
         WHERE tenant_id = ? AND kind = ?
         ORDER BY created_at ASC, id ASC`,
		tenantID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// DeleteByIDs removes flushed items in bulk.
func (s *Store) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM digest_items WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete items: %w", err)
	}
	return nil
}

// PendingTenants returns the distinct tenant ids with at least one queued item.
func (s *Store) PendingTenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM digest_items ORDER BY tenant_id`)
	if err != nil {
		return nil, fmt.Errorf("pending tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	return tenants, rows.Err()
}

// Summary aggregates pending counts per (tenant, kind) for status output.
func (s *Store) Summary(ctx context.Context) ([]TenantCount, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT tenant_id, kind, COUNT(1), MIN(created_at), MAX(created_at)
         FROM digest_items GROUP BY tenant_id, kind ORDER BY tenant_id, kind`,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize queue: %w", err)
	}
	defer rows.Close()

	var counts []TenantCount
	for rows.Next() {
		var entry TenantCount
		var kind, oldest, newest string
		if err := rows.Scan(&entry.TenantID, &kind, &entry.Count, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		entry.Kind = review.ChannelKind(kind)
		entry.Oldest = parseTimestamp(oldest)
		entry.Newest = parseTimestamp(newest)
		counts = append(counts, entry)
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(scanner rowScanner) (*Item, error) {
	var item Item
	var kind, createdAt string
	if err := scanner.Scan(&item.ID, &item.TenantID, &kind, &item.EventType, &item.PayloadJSON, &createdAt); err != nil {
		return nil, err
	}
	item.Kind = review.ChannelKind(kind)
	item.CreatedAt = parseTimestamp(createdAt)
	return &item, nil
}

func parseTimestamp(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
