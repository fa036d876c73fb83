package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/backkem/mlle/pkg/keymask"
	"github.com/backkem/mlle/pkg/transport"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	var certFile, keyFile, name string
	var validFor time.Duration

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a library key, or a TLS identity with --cert and --key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if certFile == "" {
				var key [keymask.KeySize]byte
				if _, err := rand.Read(key[:]); err != nil {
					return err
				}
				fmt.Fprintln(out, hex.EncodeToString(key[:]))
				return nil
			}

			cert, err := transport.GenerateIdentity(name, validFor)
			if err != nil {
				return err
			}
			if err := transport.WriteIdentity(cert, certFile, keyFile); err != nil {
				return err
			}
			fp, err := transport.IdentityFingerprint(cert)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&certFile, "cert", "", "write a certificate to this file")
	cmd.Flags().StringVar(&keyFile, "key", "", "write the private key to this file")
	cmd.Flags().StringVar(&name, "name", "mlle", "certificate common name")
	cmd.Flags().DurationVar(&validFor, "valid-for", 10*365*24*time.Hour, "certificate lifetime")
	cmd.MarkFlagsRequiredTogether("cert", "key")
	return cmd
}
