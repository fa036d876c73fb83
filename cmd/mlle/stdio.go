package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/backkem/mlle/pkg/lve"
	"github.com/spf13/cobra"
)

func newStdioCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve a single session over stdin and stdout",
		Long: "Serve a single session over stdin and stdout. The tool that spawned the\n" +
			"process is the TLS client. Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lf, err := opts.load()
			if err != nil {
				return err
			}
			identity, err := lve.LoadIdentity(cfg, lf.NewLogger("mlle"))
			if err != nil {
				return err
			}
			sc, err := lve.SessionConfig(cfg, lf)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return lve.ServeStdio(ctx, lve.StdioConfig{
				Session:          sc,
				Identity:         identity,
				HandshakeTimeout: cfg.Listen.HandshakeTimeout,
				LoggerFactory:    lf,
			})
		},
	}
}
