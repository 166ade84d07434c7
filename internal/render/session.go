package render

import (
	"context"
	"log/slog"

	"vignette/internal/config"
	"vignette/internal/logging"
	"vignette/internal/review"
	"vignette/internal/services"
)

// Session is the narrow contract to the renderer page. Any implementation
// (headless browser, offscreen renderer, native binding) is substitutable;
// this is the one genuinely environment-specific dependency in the pipeline.
type Session interface {
	// LoadAsset navigates the renderer to the asset and blocks until the page
	// reports it loaded, subject to a per-kind timeout.
	LoadAsset(ctx context.Context, kind review.AssetKind, url string) error
	// ApplyState seeks playback time and/or moves the camera. Nil fields leave
	// the corresponding state unchanged.
	ApplyState(ctx context.Context, t *float64, pose *review.CameraPose) error
	SetOverlay(ctx context.Context, author, avatarPath, text string, opacity float64) error
	DrawAnnotation(ctx context.Context, shapes []review.Shape, progress float64) error
	ClearOverlay(ctx context.Context) error
	Capture(ctx context.Context, outPath string) error
	Close() error
}

// Opener creates render sessions with a fixed viewport.
type Opener interface {
	Open(ctx context.Context, viewportW, viewportH int) (Session, error)
}

// Manager serializes access to render sessions through a fixed number of
// slots. Rendering is CPU/GPU heavy; the default single slot means at most one
// digest renders at a time and additional requests block in FIFO order.
type Manager struct {
	opener    Opener
	slots     chan struct{}
	viewportW int
	viewportH int
	logger    *slog.Logger
}

// NewManager builds a Manager from configuration.
func NewManager(cfg *config.Config, opener Opener, logger *slog.Logger) *Manager {
	slots := cfg.Render.Slots
	if slots <= 0 {
		slots = 1
	}
	return &Manager{
		opener:    opener,
		slots:     make(chan struct{}, slots),
		viewportW: cfg.Render.ViewportWidth,
		viewportH: cfg.Render.ViewportHeight,
		logger:    logging.NewComponentLogger(logger, "render"),
	}
}

// Acquire blocks until a render slot is free, opens a session, and returns it
// with an idempotent release function. The release closes the session and
// frees the slot; callers must invoke it in all paths.
func (m *Manager) Acquire(ctx context.Context) (Session, func(), error) {
	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	session, err := m.opener.Open(ctx, m.viewportW, m.viewportH)
	if err != nil {
		<-m.slots
		return nil, nil, services.Wrap(services.ErrExternalTool, "render", "open", "start render session", err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := session.Close(); err != nil {
			m.logger.Warn("render session close failed", logging.Error(err))
		}
		<-m.slots
	}
	return session, release, nil
}
