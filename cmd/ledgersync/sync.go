package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ledgersync/ledgersync/internal/client/engine"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newBootstrapCmd())
	rootCmd.AddCommand(newSnapshotCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one push and pull cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.TriggerSyncCycle(cmd.Context())
			if res != nil {
				if perr := printResult(cmd, res); perr != nil {
					return perr
				}
			}
			if errors.Is(err, engine.ErrCursorStale) {
				return fmt.Errorf("%w: run `ledgersync bootstrap`", err)
			}
			return err
		},
	}
}

func newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Restore from the latest snapshot when this device needs it",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.BootstrapSnapshotIfNeeded(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
}

func newSnapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Upload an encrypted snapshot of the synced tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			meta, err := c.UploadSnapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s at seq %d, %s\n", green.Render("Snapshot uploaded"),
				cyan.Render(meta.SnapshotID), meta.Seq, humanize.Bytes(uint64(meta.SizeBytes)))
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(v)
}
