package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/pilldispenser/controller"
)

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Forward commands to the dispenser and print its output",
		Long: `Reads commands from stdin and sends them to the dispenser's serial console.

Commands are calibrate, dispense, status, reset, verbose and help, or the console
letters themselves. Device output is printed, and EVENT lines are also posted to
the event log when event_log_addr is configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bridgeConfig(rootOpts)
			if err != nil {
				return err
			}

			c, err := controller.New(cfg, slog.Default())
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := signalContext(cmd)
			defer cancel()

			err = c.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("console stopped: %w", err)
			}
			return nil
		},
	}
}
