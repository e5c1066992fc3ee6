package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client"
	"github.com/ledgersync/ledgersync/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	var addr string
	var authToken string
	var noHTTP bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Keep this device in sync in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdoutLevel.Set(min(stdoutLevel.Level(), slog.LevelInfo))
			slog.Info("ledgersync", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()
			slog.Info("daemon using config", "config", c.Config())

			var cpConfig *client.ControlPlaneConfig
			if !noHTTP {
				cpConfig = &client.ControlPlaneConfig{Addr: addr, AuthToken: authToken}
			}
			daemon, err := client.NewClientDaemon(c, cpConfig)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			return daemon.Start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "http-addr", "a", "127.0.0.1:7938", "address of the local control plane")
	cmd.Flags().StringVarP(&authToken, "http-token", "t", "", "bearer token local apps must send to the control plane")
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "run without the local control plane")
	return cmd
}
