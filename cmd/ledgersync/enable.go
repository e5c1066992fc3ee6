package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client"
	"github.com/ledgersync/ledgersync/internal/client/trust"
)

func init() {
	rootCmd.AddCommand(newEnableCmd())
	rootCmd.AddCommand(newInitKeysCmd())
}

func newEnableCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Register this device with the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			device, err := c.EnableSync(cmd.Context(), name)
			if err != nil {
				return err
			}
			state, err := c.DetectState(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", green.Render("Device registered"), cyan.Render(device.DeviceName), gray.Render(device.DeviceID))
			if state == trust.StateRegistered {
				fmt.Fprintln(out, "Next: run `ledgersync init-keys` on your first device, or `ledgersync pair claim <code>` to join an existing one.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "device name, defaults to the hostname")
	return cmd
}

func newInitKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-keys",
		Short: "Create the account sync key on the first device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			keyVersion, err := c.InitializeKeys(cmd.Context())
			if errors.Is(err, client.ErrPairingRequired) {
				return fmt.Errorf("%w: run `ledgersync pair issue` on a synced device and `ledgersync pair claim <code>` here", err)
			} else if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (key version %d)\n", green.Render("Sync keys initialized"), keyVersion)

			res, err := c.BootstrapSnapshotIfNeeded(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
}
