package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateTimeline(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	if err := c.validateDelivery(); err != nil {
		return err
	}
	if err := c.validateDigest(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateRender() error {
	if strings.TrimSpace(c.Render.PageURL) == "" {
		return errors.New("render.page_url must be set")
	}
	if c.Render.ViewportWidth <= 0 || c.Render.ViewportHeight <= 0 {
		return errors.New("render viewport dimensions must be positive")
	}
	if c.Render.Slots <= 0 {
		return errors.New("render.slots must be at least 1")
	}
	for _, timeout := range []struct {
		name  string
		value int
	}{
		{"render.load_timeout_3d", c.Render.LoadTimeoutThreeD},
		{"render.load_timeout_video", c.Render.LoadTimeoutVideo},
		{"render.load_timeout_imageset", c.Render.LoadTimeoutImageSet},
	} {
		if timeout.value <= 0 {
			return fmt.Errorf("%s must be positive", timeout.name)
		}
	}
	return nil
}

func (c *Config) validateTimeline() error {
	if c.Timeline.FPS <= 0 || c.Timeline.FPS > 60 {
		return errors.New("timeline.fps must be between 1 and 60")
	}
	if c.Timeline.TransitionMS <= 0 {
		return errors.New("timeline.transition_ms must be positive")
	}
	if c.Timeline.PauseMS <= 0 {
		return errors.New("timeline.pause_ms must be positive")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Format {
	case "gif", "video":
	default:
		return fmt.Errorf("encoder.format must be gif or video, got %q", c.Encoder.Format)
	}
	if c.Encoder.GIFBudgetBytes <= 0 || c.Encoder.VideoBudgetBytes <= 0 {
		return errors.New("encoder size budgets must be positive")
	}
	if c.Encoder.FrameWidth <= 0 {
		return errors.New("encoder.frame_width must be positive")
	}
	if c.Encoder.PaletteColors < 2 || c.Encoder.PaletteColors > 256 {
		return errors.New("encoder.palette_colors must be between 2 and 256")
	}
	return nil
}

func (c *Config) validateDelivery() error {
	if c.Delivery.EmailEnabled {
		if strings.TrimSpace(c.Delivery.EmailFrom) == "" {
			return errors.New("delivery.email_from is required when email is enabled")
		}
		if strings.TrimSpace(c.Delivery.EmailRegion) == "" {
			return errors.New("delivery.email_region is required when email is enabled")
		}
	}
	if c.Delivery.RequestTimeout <= 0 {
		return errors.New("delivery.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateDigest() error {
	if c.Digest.DebounceCheckInterval <= 0 {
		return errors.New("digest.debounce_check_interval must be positive")
	}
	if c.Digest.HourlyInterval <= 0 {
		return errors.New("digest.hourly_interval must be positive")
	}
	if c.Digest.MaxFallbackStills < 0 {
		return errors.New("digest.max_fallback_stills must not be negative")
	}
	return nil
}
