package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lux/internal/ddc"
)

func newDisplaysCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "displays",
		Short: "List DDC/CI capable displays and their current brightness",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			backend := ddc.NewI2CBackend(cfg.DDC.Devices)
			displays, err := backend.Enumerate(cmd.Context())
			if err != nil {
				return fmt.Errorf("enumerate displays: %w", err)
			}

			stdout := cmd.OutOrStdout()
			if len(displays) == 0 {
				fmt.Fprintln(stdout, "No DDC/CI capable displays found")
				return nil
			}

			rows := make([][]string, 0, len(displays))
			for i, display := range displays {
				value := "?"
				if raw, err := display.ReadVCP(ddc.FeatureBrightness); err == nil {
					value = strconv.Itoa(int(raw))
				}
				model := display.Model()
				if model == "" {
					model = "(unknown)"
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					display.ID(),
					model,
					value,
				})
				display.Close()
			}

			headers := []string{"#", "Device", "Model", "Brightness"}
			aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignRight}
			fmt.Fprintln(stdout, renderTable(headers, rows, aligns))
			return nil
		},
	}
}
