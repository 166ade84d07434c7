package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"vignette/internal/queue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the digest queue",
	}
	queueCmd.AddCommand(newQueueListCommand(cmdCtx))
	return queueCmd
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending digest items per tenant and channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			counts, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderQueueTable(counts))
			return nil
		},
	}
}

// renderQueueTable lays out the pending-item summary, one row per tenant and
// channel kind.
func renderQueueTable(counts []queue.TenantCount) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Tenant", "Channel", "Pending", "Oldest", "Newest"})
	for _, entry := range counts {
		tw.AppendRow(table.Row{
			entry.TenantID,
			string(entry.Kind),
			entry.Count,
			formatQueueTime(entry.Oldest),
			formatQueueTime(entry.Newest),
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func formatQueueTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}
