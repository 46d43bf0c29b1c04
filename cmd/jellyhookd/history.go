package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"jellyhook/internal/journal"
)

func newHistoryCommand(configFlag *string) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configFlag)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Paths.JournalPath == "" {
				return errors.New("journal_path is not configured")
			}

			history, err := journal.Open(cfg.Paths.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer history.Close()

			entries, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no processed events recorded")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				result := "completed"
				if !entry.Completed {
					result = "failed"
				}
				item := entry.ItemName
				if item == "" {
					item = entry.ItemID
				}
				rows = append(rows, []string{
					strconv.FormatInt(entry.ID, 10),
					entry.ReceivedAt.Local().Format(time.DateTime),
					entry.WebhookID,
					item,
					result,
					entry.Duration.Round(time.Millisecond).String(),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Received", "Webhook", "Item", "Result", "Duration"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return historyCmd
}
