package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"vignette/internal/config"
	"vignette/internal/fileutil"
	"vignette/internal/logging"
	"vignette/internal/render"
	"vignette/internal/services"
	"vignette/internal/timeline"
)

// Result describes a completed capture run. FrameDir contains a gap-free,
// zero-padded frame_%05d.png sequence suitable for direct encoder input.
type Result struct {
	FrameDir   string
	FrameCount int
}

// Capturer drives a render session through timeline frames and writes the
// image sequence to a per-run staging directory.
type Capturer struct {
	stagingDir         string
	fps                int
	maxCaptureFailures int
	minFreeBytes       uint64
	logger             *slog.Logger
}

// New builds a Capturer from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Capturer {
	return &Capturer{
		stagingDir:         cfg.Paths.StagingDir,
		fps:                cfg.Timeline.FPS,
		maxCaptureFailures: cfg.Render.MaxCaptureFailures,
		minFreeBytes:       uint64(cfg.Digest.MinFreeSpaceMiB) * 1024 * 1024,
		logger:             logging.NewComponentLogger(logger, "capture"),
	}
}

// Run captures every frame of every segment in order, clearing the overlay
// between segments. Frame numbering is continuous across segments. The caller
// owns cleanup of the returned directory (normally via the encoder).
func (c *Capturer) Run(ctx context.Context, session render.Session, segments ...[]timeline.Frame) (*Result, error) {
	total := 0
	for _, segment := range segments {
		total += len(segment)
	}
	if total == 0 {
		return nil, services.Wrap(services.ErrValidation, "capture", "run", "no frames to capture", nil)
	}

	if c.minFreeBytes > 0 {
		if err := fileutil.CheckFreeSpace(c.stagingDir, c.minFreeBytes); err != nil {
			return nil, services.Wrap(services.ErrValidation, "capture", "preflight", "", err)
		}
	}

	dir := filepath.Join(c.stagingDir, "frames-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}

	interval := time.Second / time.Duration(c.fps)
	start := clockNow()
	index := 0
	consecutiveFailures := 0

	for segIdx, segment := range segments {
		if segIdx > 0 {
			if err := session.ClearOverlay(ctx); err != nil {
				c.logger.Warn("clear overlay between assets failed", logging.Error(err))
			}
		}
		for _, frame := range segment {
			if err := ctx.Err(); err != nil {
				_ = os.RemoveAll(dir)
				return nil, err
			}

			path := framePath(dir, index)
			// Sleep only the remainder until this frame's due time so pacing
			// does not drift over long runs.
			sleepUntil(start.Add(time.Duration(index+1) * interval))

			if frame.Static && index > 0 {
				if err := fileutil.CopyFile(framePath(dir, index-1), path); err == nil {
					index++
					continue
				}
				// Copy failure falls through to a real capture.
			}

			if err := c.captureFrame(ctx, session, frame, path); err != nil {
				consecutiveFailures++
				if consecutiveFailures > c.maxCaptureFailures || index == 0 {
					_ = os.RemoveAll(dir)
					return nil, services.Wrap(services.ErrExternalTool, "capture", "frame", fmt.Sprintf("frame %d", index), err)
				}
				c.logger.Warn("frame capture failed; duplicating previous frame",
					logging.Int("frame", index),
					logging.Error(err),
				)
				if copyErr := fileutil.CopyFile(framePath(dir, index-1), path); copyErr != nil {
					_ = os.RemoveAll(dir)
					return nil, services.Wrap(services.ErrExternalTool, "capture", "frame", fmt.Sprintf("frame %d", index), copyErr)
				}
			} else {
				consecutiveFailures = 0
			}
			index++
		}
	}

	return &Result{FrameDir: dir, FrameCount: index}, nil
}

func (c *Capturer) captureFrame(ctx context.Context, session render.Session, frame timeline.Frame, path string) error {
	t := frame.Time
	if err := session.ApplyState(ctx, &t, frame.Camera); err != nil {
		return err
	}
	if frame.Overlay != nil {
		overlay := frame.Overlay
		if err := session.SetOverlay(ctx, overlay.Author, overlay.AvatarPath, overlay.Text, overlay.Opacity); err != nil {
			return err
		}
	} else {
		if err := session.ClearOverlay(ctx); err != nil {
			return err
		}
	}
	if frame.Annotation != nil {
		if err := session.DrawAnnotation(ctx, frame.Annotation.Shapes, frame.Annotation.Progress); err != nil {
			return err
		}
	}

	if err := session.Capture(ctx, path); err != nil {
		// One retry per frame before the caller decides to skip or abort.
		return session.Capture(ctx, path)
	}
	return nil
}

func framePath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%05d.png", index))
}
