package encoding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"vignette/internal/config"
	"vignette/internal/logging"
	"vignette/internal/services"
)

// Format selects the artifact container.
type Format string

const (
	FormatGIF   Format = "gif"
	FormatVideo Format = "video"
)

const (
	minVideoBitrate = 500_000   // 500 kbps floor for very long digests
	maxVideoBitrate = 8_000_000 // 8 Mbps ceiling for very short ones
)

// profile is one encode quality configuration. The downgrade pass must be
// strictly lower than the nominal pass in at least one dimension.
type profile struct {
	fps           int
	width         int
	paletteColors int
	bitrate       int64
}

func (p profile) downgrade() profile {
	lower := profile{
		fps:           p.fps * 2 / 3,
		width:         p.width / 2,
		paletteColors: p.paletteColors / 2,
		bitrate:       p.bitrate / 2,
	}
	if lower.fps < 1 {
		lower.fps = 1
	}
	if lower.width < 16 {
		lower.width = 16
	}
	if lower.paletteColors < 2 {
		lower.paletteColors = 2
	}
	if lower.bitrate < minVideoBitrate/2 {
		lower.bitrate = minVideoBitrate / 2
	}
	return lower
}

// Encoder assembles captured frame sequences into digest artifacts via ffmpeg.
type Encoder struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds an Encoder from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Encoder {
	return &Encoder{cfg: cfg, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Encode transcodes the frame directory to outPath. If the nominal pass
// exceeds targetBytes, exactly one re-encode at a reduced profile is
// attempted; its result is returned regardless of size (best effort). The
// frame directory is removed on all paths. An error means no artifact is
// available; callers deliver the digest without one.
func (e *Encoder) Encode(ctx context.Context, frameDir string, frameCount, fps int, outPath string, format Format, targetBytes int64) (string, error) {
	defer e.cleanupFrames(frameDir)

	if frameCount <= 0 || fps <= 0 {
		return "", services.Wrap(services.ErrValidation, "encoder", "encode", "empty frame sequence", nil)
	}

	duration := float64(frameCount) / float64(fps)
	nominal := profile{
		fps:           fps,
		width:         e.cfg.Encoder.FrameWidth,
		paletteColors: e.cfg.Encoder.PaletteColors,
		bitrate:       videoBitrate(targetBytes, duration),
	}

	size, err := e.encodePass(ctx, frameDir, fps, outPath, format, nominal)
	if err != nil {
		return "", err
	}
	if size <= targetBytes {
		return outPath, nil
	}

	reduced := nominal.downgrade()
	e.logger.Info("artifact over size budget; re-encoding at reduced profile",
		logging.Int64("size_bytes", size),
		logging.Int64("budget_bytes", targetBytes),
		logging.Int("reduced_fps", reduced.fps),
		logging.Int("reduced_width", reduced.width),
	)
	if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("discard oversized artifact: %w", err)
	}

	size, err = e.encodePass(ctx, frameDir, fps, outPath, format, reduced)
	if err != nil {
		return "", err
	}
	if size > targetBytes {
		e.logger.Warn("artifact still over budget after downgrade; returning best effort",
			logging.Int64("size_bytes", size),
			logging.Int64("budget_bytes", targetBytes),
		)
	}
	return outPath, nil
}

func (e *Encoder) encodePass(ctx context.Context, frameDir string, inputFPS int, outPath string, format Format, p profile) (int64, error) {
	args := ffmpegArgs(frameDir, inputFPS, outPath, format, p)
	output, err := runFFmpeg(ctx, e.cfg.FFmpegBinary(), args)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return 0, services.Wrap(services.ErrExternalTool, "encoder", "ffmpeg", detail, err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "encoder", "ffmpeg", "output file missing after encode", err)
	}
	return info.Size(), nil
}

// cleanupFrames removes the frame directory, tolerating a transient file lock
// with one delayed retry.
func (e *Encoder) cleanupFrames(frameDir string) {
	if strings.TrimSpace(frameDir) == "" {
		return
	}
	if err := os.RemoveAll(frameDir); err == nil {
		return
	}
	cleanupWait()
	if err := os.RemoveAll(frameDir); err != nil {
		e.logger.Warn("frame directory cleanup failed", logging.String("dir", frameDir), logging.Error(err))
	}
}

// videoBitrate scales quality with duration so short digests look good and
// long ones stay within budget.
func videoBitrate(targetBytes int64, durationSeconds float64) int64 {
	if durationSeconds <= 0 {
		return maxVideoBitrate
	}
	bitrate := int64(float64(targetBytes*8) / durationSeconds)
	if bitrate < minVideoBitrate {
		return minVideoBitrate
	}
	if bitrate > maxVideoBitrate {
		return maxVideoBitrate
	}
	return bitrate
}
