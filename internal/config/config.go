package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StagingDir  string `toml:"staging_dir"`
	ArtifactDir string `toml:"artifact_dir"`
	LogDir      string `toml:"log_dir"`
	SpoolDir    string `toml:"spool_dir"`
	TenantsFile string `toml:"tenants_file"`
	ReviewDir   string `toml:"review_dir"`
}

// Render contains configuration for the headless render session.
type Render struct {
	PageURL             string `toml:"page_url"`
	ViewportWidth       int    `toml:"viewport_width"`
	ViewportHeight      int    `toml:"viewport_height"`
	Slots               int    `toml:"slots"`
	LoadTimeoutThreeD   int    `toml:"load_timeout_3d"`
	LoadTimeoutVideo    int    `toml:"load_timeout_video"`
	LoadTimeoutImageSet int    `toml:"load_timeout_imageset"`
	MaxCaptureFailures  int    `toml:"max_capture_failures"`
}

// Timeline contains replay timing parameters for digest animations.
type Timeline struct {
	FPS          int `toml:"fps"`
	TransitionMS int `toml:"transition_ms"`
	PauseMS      int `toml:"pause_ms"`
}

// Encoder contains configuration for artifact transcoding.
type Encoder struct {
	Format           string `toml:"format"`
	FrameWidth       int    `toml:"frame_width"`
	GIFBudgetBytes   int64  `toml:"gif_budget_bytes"`
	VideoBudgetBytes int64  `toml:"video_budget_bytes"`
	PaletteColors    int    `toml:"palette_colors"`
}

// Delivery contains configuration for outbound notification channels.
type Delivery struct {
	LinkBaseURL    string `toml:"link_base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	EmailEnabled   bool   `toml:"email_enabled"`
	EmailFrom      string `toml:"email_from"`
	EmailRegion    string `toml:"email_region"`
}

// Digest contains flush scheduling configuration.
type Digest struct {
	DebounceCheckInterval int `toml:"debounce_check_interval"`
	HourlyInterval        int `toml:"hourly_interval"`
	MaxFallbackStills     int `toml:"max_fallback_stills"`
	MinFreeSpaceMiB       int `toml:"min_free_space_mib"`
}

// Ingest contains configuration for the event spool watcher.
type Ingest struct {
	PollInterval int `toml:"poll_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Vignette.
//
// Configuration sections by subsystem:
//   - Paths: staging, artifact, spool, and log directories
//   - Render: headless render page and session limits
//   - Timeline: replay fps and transition/pause timing
//   - Encoder: artifact format and size budgets
//   - Delivery: webhook/email transport settings
//   - Digest: flush scheduler intervals
//   - Ingest: event spool polling
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Render   Render   `toml:"render"`
	Timeline Timeline `toml:"timeline"`
	Encoder  Encoder  `toml:"encoder"`
	Delivery Delivery `toml:"delivery"`
	Digest   Digest   `toml:"digest"`
	Ingest   Ingest   `toml:"ingest"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vignette/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vignette.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.ArtifactDir, c.Paths.LogDir, c.Paths.SpoolDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name used for artifact encoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func (c *Config) normalize() error {
	fields := []*string{
		&c.Paths.StagingDir,
		&c.Paths.ArtifactDir,
		&c.Paths.LogDir,
		&c.Paths.SpoolDir,
		&c.Paths.TenantsFile,
		&c.Paths.ReviewDir,
	}
	for _, field := range fields {
		if strings.TrimSpace(*field) == "" {
			continue
		}
		expanded, err := expandPath(*field)
		if err != nil {
			return err
		}
		*field = expanded
	}
	c.Encoder.Format = strings.ToLower(strings.TrimSpace(c.Encoder.Format))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
