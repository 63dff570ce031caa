package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"lux/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent brightness changes recorded by the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			if !cfg.History.Enabled {
				fmt.Fprintln(stdout, "History is disabled in the configuration")
				return nil
			}
			if _, err := os.Stat(cfg.HistoryDBPath()); os.IsNotExist(err) {
				fmt.Fprintln(stdout, "No brightness changes recorded yet")
				return nil
			}

			store, err := history.Open(cfg.HistoryDBPath(), cfg.History.MaxEntries)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			changes, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("read history: %w", err)
			}
			if len(changes) == 0 {
				fmt.Fprintln(stdout, "No brightness changes recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(changes))
			for _, change := range changes {
				rows = append(rows, []string{
					change.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					strconv.Itoa(change.Previous),
					strconv.Itoa(change.Value),
					change.Source,
				})
			}

			headers := []string{"When", "From", "To", "Source"}
			aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignLeft}
			fmt.Fprintln(stdout, renderTable(headers, rows, aligns))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}
