package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/backkem/mlle/pkg/discovery"
	"github.com/backkem/mlle/pkg/lve"
	"github.com/backkem/mlle/pkg/tool"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	addr     string
	instance string
	pin      string
	certFile string
	keyFile  string
	lib      string
	features []string
	outDir   string
	timeout  time.Duration
}

func newFetchCommand(opts *globalOptions) *cobra.Command {
	fo := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch --lib <dir> <file>...",
		Short: "Fetch decrypted files from an LVE the way a tool does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lf, err := opts.load()
			if err != nil {
				return err
			}
			log := lf.NewLogger("mlle")

			ctx, cancel := context.WithTimeout(cmd.Context(), fo.timeout)
			defer cancel()

			addr, pin, err := fo.target(ctx)
			if err != nil {
				return err
			}
			identity, err := fo.identity()
			if err != nil {
				return err
			}
			ch, err := transport.DialTLS(ctx, addr, transport.ClientTLSConfig(identity, pin))
			if err != nil {
				return err
			}

			c := tool.NewClientWithConfig(ch, tool.Config{LoggerFactory: lf})
			defer c.Close()
			if err := c.Open(ctx, fo.lib); err != nil {
				return err
			}
			log.Debugf("negotiated protocol version %d with %s", c.NegotiatedVersion(), addr)

			for _, f := range fo.features {
				if err := c.Feature(ctx, f); err != nil {
					return fmt.Errorf("feature %s: %w", f, err)
				}
			}
			for _, rel := range args {
				data, err := c.File(ctx, rel)
				if err != nil {
					return fmt.Errorf("%s: %w", rel, err)
				}
				if err := fo.write(cmd, rel, data); err != nil {
					return err
				}
			}
			for _, f := range fo.features {
				if err := c.ReturnFeature(ctx, f); err != nil {
					log.Warnf("returning feature %s: %v", f, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fo.addr, "addr", "", "LVE address host:port")
	cmd.Flags().StringVar(&fo.instance, "instance", "", "resolve the LVE by DNS-SD instance name")
	cmd.Flags().StringVar(&fo.pin, "pin", "", "required LVE key fingerprint (taken from DNS-SD when resolving)")
	cmd.Flags().StringVar(&fo.certFile, "cert", "", "tool certificate (ephemeral if unset)")
	cmd.Flags().StringVar(&fo.keyFile, "key", "", "tool private key")
	cmd.Flags().StringVar(&fo.lib, "lib", "", "library root as seen by the LVE")
	cmd.Flags().StringSliceVar(&fo.features, "feature", nil, "features to check out first")
	cmd.Flags().StringVarP(&fo.outDir, "out", "o", "", "write files below this directory instead of stdout")
	cmd.Flags().DurationVar(&fo.timeout, "timeout", 30*time.Second, "overall timeout")
	_ = cmd.MarkFlagRequired("lib")
	cmd.MarkFlagsMutuallyExclusive("addr", "instance")
	return cmd
}

func (fo *fetchOptions) target(ctx context.Context) (string, string, error) {
	if fo.addr != "" {
		return fo.addr, fo.pin, nil
	}
	if fo.instance == "" {
		return "", "", errors.New("one of --addr or --instance is required")
	}
	r, err := discovery.NewResolver(discovery.ResolverConfig{})
	if err != nil {
		return "", "", err
	}
	svc, err := r.Lookup(ctx, fo.instance)
	if err != nil {
		return "", "", err
	}
	pin := fo.pin
	if pin == "" && svc.TXT != nil {
		pin = svc.TXT.Fingerprint
	}
	addr := svc.Addr()
	if addr == "" {
		return "", "", fmt.Errorf("%s: %w", fo.instance, discovery.ErrNoAddress)
	}
	return addr, pin, nil
}

func (fo *fetchOptions) identity() (tls.Certificate, error) {
	if fo.certFile != "" {
		return transport.LoadIdentity(fo.certFile, fo.keyFile)
	}
	return transport.GenerateIdentity("mlle-tool", lve.EphemeralIdentityLifetime)
}

func (fo *fetchOptions) write(cmd *cobra.Command, rel string, data []byte) error {
	if fo.outDir == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	dst := filepath.Join(fo.outDir, filepath.FromSlash(path.Clean("/"+rel)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
