package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newResetCmd())
}

func newResetCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget sync keys and state on this device, keeping local data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("reset drops this device's sync keys, pass --force to continue")
			}
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.ResetSync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), yellow.Render("Sync reset. Run `ledgersync enable` to start over."))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "confirm the reset")
	return cmd
}
