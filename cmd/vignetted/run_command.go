package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vignette/internal/capture"
	"vignette/internal/daemon"
	"vignette/internal/delivery"
	"vignette/internal/digest"
	"vignette/internal/encoding"
	"vignette/internal/ingest"
	"vignette/internal/logging"
	"vignette/internal/policy"
	"vignette/internal/queue"
	"vignette/internal/render"
	"vignette/internal/review"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the digest daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			if _, ok := encoding.FFmpegAvailable(cfg.FFmpegBinary()); !ok {
				logger.Warn("ffmpeg not found, digests will fall back to stills",
					logging.String("binary", cfg.FFmpegBinary()))
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			tenants := review.NewFileTenantSource(cfg.Paths.TenantsFile)
			assets := review.NewDirStore(cfg.Paths.ReviewDir)
			router := delivery.NewRouterFromConfig(ctx, cfg, logger)
			sessions := render.NewManager(cfg, render.NewChromeOpener(cfg, logger), logger)
			orchestrator := digest.New(cfg, store, tenants, assets, sessions,
				capture.New(cfg, logger), encoding.New(cfg, logger), router, logger)
			engine := policy.NewEngine(store, tenants, router, logger)
			watcher := ingest.New(cfg, engine, logger)

			d, err := daemon.New(cfg, store, orchestrator, watcher, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			return nil
		},
	}
}
