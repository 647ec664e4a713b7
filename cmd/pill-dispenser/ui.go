package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/pilldispenser/ui"
)

// NewUICommand creates the ui command.
func NewUICommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Show the operator panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bridgeConfig(rootOpts)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd)
			defer cancel()

			return ui.RunWithConfig(ctx, cfg, slog.Default())
		},
	}
}
