package config

const (
	defaultStagingDir  = "~/.local/share/vignette/staging"
	defaultArtifactDir = "~/.local/share/vignette/artifacts"
	defaultLogDir      = "~/.local/share/vignette/logs"
	defaultSpoolDir    = "~/.local/share/vignette/spool"
	defaultTenantsFile = "~/.config/vignette/tenants.toml"
	defaultReviewDir   = "~/.local/share/vignette/review"

	defaultRenderPageURL      = "http://127.0.0.1:9480/render"
	defaultViewportWidth      = 960
	defaultViewportHeight     = 540
	defaultRenderSlots        = 1
	defaultLoadTimeout3D      = 120
	defaultLoadTimeoutVideo   = 60
	defaultLoadTimeoutImages  = 30
	defaultMaxCaptureFailures = 5

	defaultFPS          = 18
	defaultTransitionMS = 1000
	defaultPauseMS      = 2000

	defaultEncoderFormat    = "gif"
	defaultFrameWidth       = 640
	defaultGIFBudgetBytes   = 8 * 1024 * 1024
	defaultVideoBudgetBytes = 8 * 1024 * 1024
	defaultPaletteColors    = 256

	defaultDeliveryTimeout = 30

	defaultDebounceCheckInterval = 60
	defaultHourlyInterval        = 3600
	defaultMaxFallbackStills     = 4
	defaultMinFreeSpaceMiB       = 512

	defaultIngestPollInterval = 2

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir:  defaultStagingDir,
			ArtifactDir: defaultArtifactDir,
			LogDir:      defaultLogDir,
			SpoolDir:    defaultSpoolDir,
			TenantsFile: defaultTenantsFile,
			ReviewDir:   defaultReviewDir,
		},
		Render: Render{
			PageURL:             defaultRenderPageURL,
			ViewportWidth:       defaultViewportWidth,
			ViewportHeight:      defaultViewportHeight,
			Slots:               defaultRenderSlots,
			LoadTimeoutThreeD:   defaultLoadTimeout3D,
			LoadTimeoutVideo:    defaultLoadTimeoutVideo,
			LoadTimeoutImageSet: defaultLoadTimeoutImages,
			MaxCaptureFailures:  defaultMaxCaptureFailures,
		},
		Timeline: Timeline{
			FPS:          defaultFPS,
			TransitionMS: defaultTransitionMS,
			PauseMS:      defaultPauseMS,
		},
		Encoder: Encoder{
			Format:           defaultEncoderFormat,
			FrameWidth:       defaultFrameWidth,
			GIFBudgetBytes:   defaultGIFBudgetBytes,
			VideoBudgetBytes: defaultVideoBudgetBytes,
			PaletteColors:    defaultPaletteColors,
		},
		Delivery: Delivery{
			RequestTimeout: defaultDeliveryTimeout,
		},
		Digest: Digest{
			DebounceCheckInterval: defaultDebounceCheckInterval,
			HourlyInterval:        defaultHourlyInterval,
			MaxFallbackStills:     defaultMaxFallbackStills,
			MinFreeSpaceMiB:       defaultMinFreeSpaceMiB,
		},
		Ingest: Ingest{
			PollInterval: defaultIngestPollInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
