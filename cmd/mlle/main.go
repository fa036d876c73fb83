// mlle is the library vendor executable for protected Modelica libraries,
// together with the vendor tooling around it.
//
// Usage:
//
//	mlle serve    [--config file]           persistent TLS service
//	mlle stdio    [--config file]           one session over stdin/stdout
//	mlle encrypt  <src> <dst>               encrypt a library tree
//	mlle decrypt  <src> <dst>               decrypt an encrypted tree
//	mlle fetch    --lib <dir> <file>...     fetch files as a tool would
//	mlle keygen   [--cert f --key f]        create a library key or identity
//	mlle browse                             list LVEs advertised on the network
//
// Every command reads the configuration file named by --config, then the
// MLLE_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/backkem/mlle/pkg/config"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

type globalOptions struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mlle:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "mlle",
		Short:         "Library vendor executable for protected Modelica libraries",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log.level (disable, error, warn, info, debug, trace)")

	root.AddCommand(
		newServeCommand(opts),
		newStdioCommand(opts),
		newEncryptCommand(opts),
		newDecryptCommand(opts),
		newFetchCommand(opts),
		newKeygenCommand(),
		newBrowseCommand(),
	)
	return root
}

// load reads the configuration and applies command line overrides.
func (o *globalOptions) load() (*config.Config, logging.LoggerFactory, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, cfg.LoggerFactory(), nil
}
