package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client/trust"
)

func init() {
	rootCmd.AddCommand(newDevicesCmd())
}

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the devices of this account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			devices, err := c.ListDevices(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), devicesTable(devices))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <device-id> <name>",
		Short: "Rename a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.RenameDevice(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("Renamed"), cyan.Render(args[1]))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <device-id>",
		Short: "Revoke a device so it can no longer sync",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.RevokeDevice(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", yellow.Render("Revoked"), args[0])
			return nil
		},
	})

	return cmd
}

func devicesTable(devices []trust.DeviceInfo) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		Headers("DEVICE", "NAME", "PLATFORM", "TRUST", "KEY", "LAST SEEN").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cyan.Bold(true).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, d := range devices {
		name := d.Name
		if d.Local {
			name += " (this device)"
		}
		t.Row(d.DeviceID, name, d.Platform, d.TrustState, strconv.Itoa(d.KeyVersion), d.LastSeenAt)
	}
	return t.Render()
}
