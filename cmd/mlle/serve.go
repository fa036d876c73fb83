package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/backkem/mlle/pkg/lve"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var listen, admin string
	var advertise bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools over TLS until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, lf, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen.Addr = listen
			}
			if cmd.Flags().Changed("admin") {
				cfg.Admin.Addr = admin
			}
			if cmd.Flags().Changed("advertise") {
				cfg.Discovery.Enabled = advertise
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := lf.NewLogger("mlle")
			identity, err := lve.LoadIdentity(cfg, log)
			if err != nil {
				return err
			}
			sc, err := lve.ServiceConfig(cfg, identity, lf)
			if err != nil {
				return err
			}
			svc, err := lve.NewService(sc)
			if err != nil {
				return err
			}

			fp, _ := transport.IdentityFingerprint(identity)
			log.Infof("LVE fingerprint %s", fp)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return svc.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "protocol listen address (overrides listen.addr)")
	cmd.Flags().StringVar(&admin, "admin", "", "admin HTTP address (overrides admin.addr)")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "advertise the service via DNS-SD")
	return cmd
}
