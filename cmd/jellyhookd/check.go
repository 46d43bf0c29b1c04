package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jellyhook/internal/config"
	"jellyhook/internal/deps"
)

func newCheckCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify external tools and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, configPath, err := loadConfig(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config: %s\n\n", configPath)

			statuses := deps.CheckBinaries(deps.For(cfg))
			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, status := range statuses {
				state := "ok"
				detail := status.Description
				if !status.Available {
					state = "missing"
					detail = status.Detail
					if !status.Optional {
						missing++
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			webhooks, err := config.LoadWebhooks(cfg.Paths.WebhookConfig)
			if err != nil {
				fmt.Fprintf(out, "\nwebhook config: %v\n", err)
				return fmt.Errorf("webhook configuration is invalid")
			}
			enabled := webhooks.Enabled()
			fmt.Fprintf(out, "\nwebhook config: %s (%d enabled webhook(s))\n", cfg.Paths.WebhookConfig, len(enabled))
			for id, webhook := range enabled {
				fmt.Fprintf(out, "  %s -> queue %q, %d job(s)\n", id, webhook.Queue, len(webhooks.EnabledServices(id)))
			}

			if missing > 0 {
				return fmt.Errorf("%d required tool(s) missing", missing)
			}
			return nil
		},
	}
}
