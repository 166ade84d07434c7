package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vignette/internal/delivery"
	"vignette/internal/logging"
	"vignette/internal/review"
)

func newTestNotifyCommand(cmdCtx *commandContext) *cobra.Command {
	var tenantFlag string

	cmd := &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test message through a tenant's channels",
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

			tenant, err := review.NewFileTenantSource(cfg.Paths.TenantsFile).TenantConfig(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			if len(tenant.Bindings) == 0 {
				return fmt.Errorf("tenant %s has no channel bindings", tenantID)
			}

			router := delivery.NewRouterFromConfig(cmd.Context(), cfg, logger)
			msg := delivery.Message{
				Subject: "Vignette test notification",
				Body:    fmt.Sprintf("Channel wiring check for tenant %s.", tenantID),
			}
			for _, binding := range tenant.Bindings {
				router.Send(cmd.Context(), tenantID, binding, msg)
				fmt.Fprintf(cmd.OutOrStdout(), "Sent test message to %s (%s)\n", binding.Name, binding.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantFlag, "tenant", "", "Tenant id to notify")
	return cmd
}
