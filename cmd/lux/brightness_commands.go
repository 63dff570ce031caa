package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lux/internal/brightness"
	"lux/internal/ddc"
	"lux/internal/logging"
	"lux/internal/protocol"
)

func newBrightnessCommands(ctx *commandContext) []*cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Print the current brightness as status-bar JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrightnessCommand(cmd, ctx, protocol.CmdGet)
		},
	}

	var upStep int
	upCmd := &cobra.Command{
		Use:   "up [amount]",
		Short: "Raise brightness by the given amount (default from config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := buildStepCommandLine(protocol.CmdUp, args, upStep)
			if err != nil {
				return err
			}
			return runBrightnessCommand(cmd, ctx, line)
		},
	}
	upCmd.Flags().IntVar(&upStep, "step", 0, "Step size (overrides the positional amount)")

	var downStep int
	downCmd := &cobra.Command{
		Use:   "down [amount]",
		Short: "Lower brightness by the given amount (default from config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := buildStepCommandLine(protocol.CmdDown, args, downStep)
			if err != nil {
				return err
			}
			return runBrightnessCommand(cmd, ctx, line)
		},
	}
	downCmd.Flags().IntVar(&downStep, "step", 0, "Step size (overrides the positional amount)")

	setCmd := &cobra.Command{
		Use:   "set [value]",
		Short: "Set brightness to an absolute percentage (default from config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := buildCommandLine(protocol.CmdSet, args)
			if err != nil {
				return err
			}
			return runBrightnessCommand(cmd, ctx, line)
		},
	}

	return []*cobra.Command{getCmd, upCmd, downCmd, setCmd}
}

func buildCommandLine(op string, args []string) (string, error) {
	if len(args) == 0 {
		return op, nil
	}
	arg := strings.TrimSpace(args[0])
	if _, err := strconv.Atoi(arg); err != nil {
		return "", fmt.Errorf("amount must be an integer, got %q", args[0])
	}
	return op + " " + arg, nil
}

func buildStepCommandLine(op string, args []string, step int) (string, error) {
	if step > 0 {
		return fmt.Sprintf("%s %d", op, step), nil
	}
	return buildCommandLine(op, args)
}

// runBrightnessCommand asks a running daemon first and falls back to a
// one-shot direct hardware access when no daemon answers.
func runBrightnessCommand(cmd *cobra.Command, ctx *commandContext, line string) error {
	stdout := cmd.OutOrStdout()

	if ctx.daemonAvailable() {
		if reply, err := sendToDaemon(ctx, line); err == nil {
			fmt.Fprintln(stdout, reply)
			return nil
		}
	}

	reply, err := runDirect(cmd.Context(), ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, reply)
	return nil
}

func sendToDaemon(ctx *commandContext, line string) (string, error) {
	client, err := ctx.dialClient()
	if err != nil {
		return "", err
	}
	defer client.Close()
	return client.Send(line)
}

// runDirect executes one protocol command against the hardware without a
// daemon. The manager lives only for this single command, so cooldown state
// is not carried between invocations.
func runDirect(cmdCtx context.Context, ctx *commandContext, line string) (string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", err
	}

	backend := ddc.NewI2CBackend(cfg.DDC.Devices)
	manager, err := brightness.New(cmdCtx, backend, brightness.Options{
		ReadCooldown:  cfg.ReadCooldown(),
		WriteCooldown: cfg.WriteCooldown(),
		Logger:        logging.NewNop(),
	})
	if err != nil {
		return "", fmt.Errorf("no daemon running and direct access failed: %w", err)
	}
	defer manager.Close()

	handler := protocol.NewHandler(manager, protocol.Defaults{
		Step: cfg.Brightness.DefaultStep,
		Set:  cfg.Brightness.DefaultSet,
	})
	reply, _ := handler.Execute(cmdCtx, line)
	return reply, nil
}
