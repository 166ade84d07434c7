package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vignette/internal/capture"
	"vignette/internal/delivery"
	"vignette/internal/digest"
	"vignette/internal/encoding"
	"vignette/internal/logging"
	"vignette/internal/queue"
	"vignette/internal/render"
	"vignette/internal/review"
)

func newFlushCommand(cmdCtx *commandContext) *cobra.Command {
	var tenantFlag string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Force a digest flush for one tenant, bypassing the debounce window",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := strings.TrimSpace(tenantFlag)
			if tenantID == "" {
				return fmt.Errorf("--tenant is required")
			}

			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			tenants := review.NewFileTenantSource(cfg.Paths.TenantsFile)
			tenant, err := tenants.TenantConfig(cmd.Context(), tenantID)
			if err != nil {
				return err
			}

			router := delivery.NewRouterFromConfig(cmd.Context(), cfg, logger)
			sessions := render.NewManager(cfg, render.NewChromeOpener(cfg, logger), logger)
			orchestrator := digest.New(cfg, store, tenants, review.NewDirStore(cfg.Paths.ReviewDir), sessions,
				capture.New(cfg, logger), encoding.New(cfg, logger), router, logger)

			if err := orchestrator.FlushTenant(cmd.Context(), tenant, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed digest queue for %s\n", tenantID)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "Tenant id to flush")
	return cmd
}
