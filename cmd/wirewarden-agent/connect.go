package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wirewarden/wirewarden/cmd/wirewarden-agent/ui"
	"github.com/wirewarden/wirewarden/internal/daemoncfg"
)

func connectCmd() *cobra.Command {
	var apiHost, apiToken, configPath string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Register a control plane's server with this daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiHost == "" || apiToken == "" {
				return fmt.Errorf("--api-host and --api-token are required")
			}

			cfg, err := daemoncfg.Connect(configPath, apiHost, apiToken)
			if err != nil {
				if errors.Is(err, daemoncfg.ErrTokenAlreadyConnected) {
					fmt.Println(ui.InfoMsg("this API token is already connected"))
					return nil
				}
				return fmt.Errorf("connect: %w", err)
			}

			fmt.Println(ui.SuccessMsg("connected to %s", apiHost))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("config file", configPath),
				ui.KV("servers configured", fmt.Sprintf("%d", len(cfg.Servers))),
			))
			fmt.Println(ui.InfoMsg("the running daemon picks this up on its next reconcile cycle"))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiHost, "api-host", "", "control-plane base URL, e.g. https://control.example.com")
	cmd.Flags().StringVar(&apiToken, "api-token", "", "this server's API token")
	cmd.Flags().StringVar(&configPath, "config", daemoncfg.DefaultPath, "daemon config file path")
	return cmd
}
