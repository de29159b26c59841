// Command wirewarden-agent is the on-host daemon: it polls one or more
// control planes for desired state and reconciles the local kernel
// WireGuard interfaces to match (spec §4.7). It also exposes the
// `connect` subcommand operators run once to register a server with the
// daemon's local config file (spec §4.8).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/internal/logging"
)

func main() {
	var debug bool

	root := &cobra.Command{
		Use:           "wirewarden-agent",
		Short:         "Reconciles this host's WireGuard interfaces against one or more wirewarden control planes",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level, "text")
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(daemonCmd())
	root.AddCommand(connectCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
