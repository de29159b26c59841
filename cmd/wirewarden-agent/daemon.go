package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/internal/daemoncfg"
	"github.com/wirewarden/wirewarden/internal/platform"
	"github.com/wirewarden/wirewarden/internal/reconcile"
	"github.com/wirewarden/wirewarden/pkg/apiclient"
)

func daemonCmd() *cobra.Command {
	var configPath string
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the reconcile loop in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			r := reconcile.New(configPath, func(entry daemoncfg.ServerEntry) reconcile.Fetcher {
				return apiclient.New(entry.APIHost, entry.APIToken)
			}, platform.NewKernel())
			if interval > 0 {
				r.Interval = interval
			}

			r.Start(ctx)
			<-ctx.Done()
			r.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", daemoncfg.DefaultPath, "daemon config file path")
	cmd.Flags().DurationVar(&interval, "interval", reconcile.DefaultInterval, "reconcile cycle interval")
	return cmd
}
