package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/backkem/mlle/pkg/config"
	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/library"
	"github.com/spf13/cobra"
)

// secretFlag lets a hex key on the command line replace the configured source.
type secretFlag struct {
	hex string
}

func (s *secretFlag) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.hex, "secret", "", "library key as 64 hex digits (overrides library.*)")
}

func (s *secretFlag) provider(cfg *config.Config) (keymask.SecretProvider, error) {
	if s.hex != "" {
		return keymask.ParseStaticSecret(s.hex)
	}
	return cfg.SecretProvider()
}

func newEncryptCommand(opts *globalOptions) *cobra.Command {
	var secret secretFlag
	var exclude []string

	cmd := &cobra.Command{
		Use:   "encrypt <src> <dst>",
		Short: "Encrypt a library tree for distribution",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lf, err := opts.load()
			if err != nil {
				return err
			}
			provider, err := secret.provider(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			stats, err := library.EncryptTree(ctx, library.EncryptConfig{
				Src:           args[0],
				Dst:           args[1],
				Secret:        provider,
				Skip:          excluded(exclude),
				LoggerFactory: lf,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "encrypted %d files, copied %d, %d directories\n",
				stats.Encrypted, stats.Copied, stats.Directories)
			return nil
		},
	}
	secret.register(cmd)
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "top-level names to leave out (e.g. .git)")
	return cmd
}

func excluded(names []string) func(rel string, isDir bool) bool {
	if len(names) == 0 {
		return nil
	}
	return func(rel string, _ bool) bool {
		first, _, _ := strings.Cut(rel, "/")
		for _, n := range names {
			if first == n {
				return true
			}
		}
		return false
	}
}

func newDecryptCommand(opts *globalOptions) *cobra.Command {
	var secret secretFlag

	cmd := &cobra.Command{
		Use:   "decrypt <src> <dst>",
		Short: "Decrypt an encrypted library tree",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lf, err := opts.load()
			if err != nil {
				return err
			}
			provider, err := secret.provider(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			n, err := library.DecryptTree(ctx, args[0], args[1], provider, lf)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "decrypted %d files\n", n)
			return nil
		},
	}
	secret.register(cmd)
	return cmd
}
