package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chromedp/chromedp"

	"vignette/internal/config"
	"vignette/internal/logging"
	"vignette/internal/review"
	"vignette/internal/services"
)

// ChromeOpener opens headless Chrome sessions pointed at the renderer page.
// The page exposes window-level control primitives (load/seek/camera/overlay/
// annotation) which the session drives via script evaluation.
type ChromeOpener struct {
	pageURL  string
	timeouts map[review.AssetKind]time.Duration
	logger   *slog.Logger
}

// NewChromeOpener builds an Opener from configuration.
func NewChromeOpener(cfg *config.Config, logger *slog.Logger) *ChromeOpener {
	return &ChromeOpener{
		pageURL: cfg.Render.PageURL,
		timeouts: map[review.AssetKind]time.Duration{
			review.AssetThreeD:   time.Duration(cfg.Render.LoadTimeoutThreeD) * time.Second,
			review.AssetVideo:    time.Duration(cfg.Render.LoadTimeoutVideo) * time.Second,
			review.AssetImageSet: time.Duration(cfg.Render.LoadTimeoutImageSet) * time.Second,
		},
		logger: logging.NewComponentLogger(logger, "render"),
	}
}

// Open starts a headless browser, navigates to the renderer page, and waits
// for the page bridge to report ready.
func (o *ChromeOpener) Open(ctx context.Context, viewportW, viewportH int) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(viewportW, viewportH),
		chromedp.DisableGPU,
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	cancelAll := func() {
		taskCancel()
		allocCancel()
	}

	navCtx, navCancel := context.WithTimeout(taskCtx, 30*time.Second)
	defer navCancel()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(o.pageURL),
		chromedp.Poll("window.vignetteReady === true", nil, chromedp.WithPollingTimeout(30*time.Second)),
	)
	if err != nil {
		cancelAll()
		return nil, fmt.Errorf("navigate renderer page %s: %w", o.pageURL, err)
	}

	return &chromeSession{
		ctx:      taskCtx,
		cancel:   cancelAll,
		timeouts: o.timeouts,
		logger:   o.logger,
	}, nil
}

type chromeSession struct {
	ctx      context.Context
	cancel   context.CancelFunc
	timeouts map[review.AssetKind]time.Duration
	logger   *slog.Logger
}

func (s *chromeSession) LoadAsset(ctx context.Context, kind review.AssetKind, url string) error {
	timeout, ok := s.timeouts[kind]
	if !ok || timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, release := s.run(ctx)
	defer release()
	loadCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	call := fmt.Sprintf("window.vignetteLoadAsset(%s, %s)", jsString(string(kind)), jsString(url))
	err := chromedp.Run(loadCtx,
		chromedp.Evaluate(call, nil),
		chromedp.Poll("window.vignetteAssetReady === true", nil, chromedp.WithPollingTimeout(timeout)),
	)
	if err != nil {
		return services.Wrap(services.ErrTimeout, "render", "load", fmt.Sprintf("asset %s (%s)", url, kind), err)
	}
	return nil
}

func (s *chromeSession) ApplyState(ctx context.Context, t *float64, pose *review.CameraPose) error {
	state := struct {
		Time   *float64           `json:"time,omitempty"`
		Camera *review.CameraPose `json:"camera,omitempty"`
	}{Time: t, Camera: pose}
	return s.evaluate(ctx, "vignetteApplyState", state)
}

func (s *chromeSession) SetOverlay(ctx context.Context, author, avatarPath, text string, opacity float64) error {
	overlay := struct {
		Author  string  `json:"author"`
		Avatar  string  `json:"avatar,omitempty"`
		Text    string  `json:"text"`
		Opacity float64 `json:"opacity"`
	}{Author: author, Avatar: avatarPath, Text: text, Opacity: opacity}
	return s.evaluate(ctx, "vignetteSetOverlay", overlay)
}

func (s *chromeSession) DrawAnnotation(ctx context.Context, shapes []review.Shape, progress float64) error {
	payload := struct {
		Shapes   []review.Shape `json:"shapes"`
		Progress float64        `json:"progress"`
	}{Shapes: shapes, Progress: progress}
	return s.evaluate(ctx, "vignetteDrawAnnotation", payload)
}

func (s *chromeSession) ClearOverlay(ctx context.Context) error {
	runCtx, release := s.run(ctx)
	defer release()
	return chromedp.Run(runCtx, chromedp.Evaluate("window.vignetteClearOverlay()", nil))
}

func (s *chromeSession) Capture(ctx context.Context, outPath string) error {
	runCtx, release := s.run(ctx)
	defer release()
	var buf []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "capture", outPath, err)
	}
	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("write frame %s: %w", outPath, err)
	}
	return nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

// run binds the caller's cancellation to the browser context. Callers must
// invoke the returned cancel once done so the watcher goroutine exits.
func (s *chromeSession) run(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return s.ctx, func() {}
	}
	merged, cancel := context.WithCancel(s.ctx)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-merged.Done():
		}
	}()
	return merged, cancel
}

func (s *chromeSession) evaluate(ctx context.Context, fn string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", fn, err)
	}
	call := fmt.Sprintf("window.%s(%s)", fn, raw)
	runCtx, release := s.run(ctx)
	defer release()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(call, nil)); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", fn, "", err)
	}
	return nil
}

func jsString(value string) string {
	raw, _ := json.Marshal(value)
	return string(raw)
}
