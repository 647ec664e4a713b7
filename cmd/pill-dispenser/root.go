package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calvinmclean/pilldispenser/controller"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigPath string
	Port       string
	BaudRate   string

	// level is shared with the simulator console so its V command can change it
	level *slog.LevelVar
}

// NewRootCommand creates the root command for the pill-dispenser CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{level: &slog.LevelVar{}}

	cmd := &cobra.Command{
		Use:   "pill-dispenser",
		Short: "Host tools for the pill dispenser",
		Long:  "Talk to a pill dispenser over its serial console, show the operator panel, or run a simulated dispenser.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.level.Set(slog.LevelInfo)
			if opts.Verbose {
				opts.level.Set(slog.LevelDebug)
			}
			handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: opts.level,
			})
			slog.SetDefault(slog.New(handler))
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", os.Getenv("PILL_DISPENSER_CONFIG"), "YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.Port, "port", "p", "", "serial port, \"None\" to run without a device")
	cmd.PersistentFlags().StringVar(&opts.BaudRate, "baud", "", "serial baud rate")

	cmd.AddCommand(NewConsoleCommand(opts))
	cmd.AddCommand(NewUICommand(opts))
	cmd.AddCommand(NewPortsCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))

	return cmd
}

// bridgeConfig merges the config file, the environment and the flags, in that order
func bridgeConfig(opts *RootOptions) (controller.Config, error) {
	cfg, err := controller.LoadConfig(opts.ConfigPath)
	if err != nil {
		return controller.Config{}, err
	}
	cfg.ApplyEnv()

	if opts.Port != "" {
		cfg.SerialPort = opts.Port
	}
	if opts.BaudRate != "" {
		cfg.BaudRate = opts.BaudRate
	}
	return cfg, nil
}

// signalContext is cancelled on interrupt or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	return signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
}
