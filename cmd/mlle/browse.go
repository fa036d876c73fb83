package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/backkem/mlle/pkg/discovery"
	"github.com/spf13/cobra"
)

func newBrowseCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List LVEs advertised via DNS-SD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := discovery.NewResolver(discovery.ResolverConfig{Timeout: timeout})
			if err != nil {
				return err
			}
			services, err := r.Browse(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INSTANCE\tADDRESS\tVENDOR\tLIBRARIES\tFINGERPRINT")
			for _, s := range services {
				vendor, libs, fp := "-", "-", "-"
				if s.TXT != nil {
					if s.TXT.Vendor != "" {
						vendor = s.TXT.Vendor
					}
					if len(s.TXT.Libraries) > 0 {
						libs = strings.Join(s.TXT.Libraries, ",")
					}
					fp = s.TXT.Fingerprint
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.InstanceName, s.Addr(), vendor, libs, fp)
			}
			return w.Flush()
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", discovery.DefaultBrowseTimeout, "how long to collect answers")
	return cmd
}
