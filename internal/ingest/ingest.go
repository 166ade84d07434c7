package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"vignette/internal/config"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/services"
)

const rejectedDirName = "rejected"

// Watcher polls the spool directory for event envelope files dropped by
// collaborators and feeds them through the policy engine. Malformed files are
// quarantined, never fatal.
type Watcher struct {
	spoolDir string
	interval time.Duration
	engine   *policy.Engine
	logger   *slog.Logger
}

// New builds a spool watcher from configuration.
func New(cfg *config.Config, engine *policy.Engine, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	interval := time.Duration(cfg.Ingest.PollInterval) * time.Second
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		spoolDir: cfg.Paths.SpoolDir,
		interval: interval,
		engine:   engine,
		logger:   logger.With(logging.String(logging.FieldComponent, "ingest")),
	}
}

// Run polls until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.logger.Error("spool scan failed", logging.Error(err))
			}
		}
	}
}

// ProcessOnce scans the spool once, in filename order, and returns the number
// of events accepted. Files that fail to decode or fail validation move to
// the rejected subdirectory; files hitting a transient storage failure stay
// in place for the next poll.
func (w *Watcher) ProcessOnce(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(w.spoolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrTransient, "ingest", "scan", w.spoolDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	accepted := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return accepted, err
		}
		path := filepath.Join(w.spoolDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("unreadable spool file", logging.String("file", name), logging.Error(err))
			continue
		}

		event, err := policy.DecodeEvent(data)
		if err != nil {
			w.logger.Warn("rejecting malformed event file",
				logging.String("file", name),
				logging.Error(err))
			w.reject(path, name)
			continue
		}

		if err := w.engine.HandleEvent(ctx, event); err != nil {
			if services.Fatal(err) {
				// Validation and configuration failures never succeed on
				// retry; quarantine instead of re-scanning forever.
				w.logger.Error("rejecting unprocessable event file",
					logging.String("file", name),
					logging.String(logging.FieldTenant, event.TenantID),
					logging.String(logging.FieldEventType, event.Type),
					logging.Error(err))
				w.reject(path, name)
				continue
			}
			// Leave the file for the next poll so a transient queue
			// failure loses nothing.
			w.logger.Error("event handling failed, will retry",
				logging.String("file", name),
				logging.String(logging.FieldTenant, event.TenantID),
				logging.String(logging.FieldEventType, event.Type),
				logging.Error(err))
			continue
		}
		if err := os.Remove(path); err != nil {
			w.logger.Warn("spool file cleanup failed", logging.String("file", name), logging.Error(err))
		}
		accepted++
	}
	return accepted, nil
}

func (w *Watcher) reject(path, name string) {
	dir := filepath.Join(w.spoolDir, rejectedDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.logger.Warn("rejected dir unavailable", logging.Error(err))
		return
	}
	if err := os.Rename(path, filepath.Join(dir, name)); err != nil {
		w.logger.Warn("quarantine move failed", logging.String("file", name), logging.Error(err))
	}
}
