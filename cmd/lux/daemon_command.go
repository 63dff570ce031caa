package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"lux/internal/daemonrun"
	"lux/internal/ipc"
	"lux/internal/protocol"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the brightness daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			err = daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   logLevel,
				SocketPath: ctx.socketOverride(),
			})
			if errors.Is(err, ipc.ErrAlreadyRunning) {
				return fmt.Errorf("daemon already running on %s", ctx.socketPath())
			}
			return err
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running brightness daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if !ctx.daemonAvailable() {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			reply, err := sendToDaemon(ctx, protocol.CmdStop)
			if err != nil {
				if errors.Is(err, syscall.ECONNREFUSED) {
					return staleSocketError(ctx.socketPath())
				}
				return err
			}
			fmt.Fprintln(stdout, reply)
			return nil
		},
	}
}

func staleSocketError(socket string) error {
	if _, err := os.Lstat(socket); err == nil {
		return fmt.Errorf("socket %s exists but nothing is listening; remove it and restart the daemon", socket)
	}
	return fmt.Errorf("daemon is not running on %s", socket)
}
