package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vignette/internal/config"
	"vignette/internal/digest"
	"vignette/internal/ingest"
	"vignette/internal/logging"
	"vignette/internal/queue"
)

// Daemon ties the ingest watcher and flush orchestrator into one lifecycle
// and enforces single-instance execution with a lock file.
type Daemon struct {
	cfg          *config.Config
	logger       *slog.Logger
	store        *queue.Store
	orchestrator *digest.Orchestrator
	watcher      *ingest.Watcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, orchestrator *digest.Orchestrator, watcher *ingest.Watcher, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || orchestrator == nil || watcher == nil {
		return nil, errors.New("daemon requires config, store, orchestrator, and watcher")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "vignetted.lock")
	return &Daemon{
		cfg:          cfg,
		logger:       logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:        store,
		orchestrator: orchestrator,
		watcher:      watcher,
		lockPath:     lockPath,
		lock:         flock.New(lockPath),
	}, nil
}

// LockPath returns the single-instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

// Start acquires the instance lock and launches the background loops.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another vignetted instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running.Store(true)

	d.wg.Add(2)
	go func() {
		defer d.wg.Done()
		if err := d.watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("ingest watcher stopped", logging.Error(err))
		}
	}()
	go func() {
		defer d.wg.Done()
		if err := d.orchestrator.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("flush orchestrator stopped", logging.Error(err))
		}
	}()

	d.logger.Info("vignetted started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the background loops and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("vignetted stopped")
}

// Close stops the daemon and closes the queue store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}
