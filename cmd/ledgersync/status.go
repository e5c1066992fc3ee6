package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/trust"
)

func init() {
	rootCmd.AddCommand(newStatusCmd())
}

func newStatusCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the sync state of this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			st, err := c.GetEngineStatus(cmd.Context())
			if err != nil {
				return err
			}

			switch format {
			case "json":
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			case "yaml":
				return printResult(cmd, st)
			default:
				printStatus(cmd.OutOrStdout(), st, time.Now())
				return nil
			}
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "text", "output format: text, yaml or json")
	return cmd
}

func printStatus(w io.Writer, st *engine.Status, now time.Time) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", gray.Render(fmt.Sprintf("%-14s", label)), value)
	}

	row("State", stateStyle(st.State))
	if st.DeviceID != "" {
		row("Device", st.DeviceID)
	}
	if st.KeyVersion > 0 {
		row("Key version", fmt.Sprint(st.KeyVersion))
	}
	row("Cursor", humanize.Comma(st.Cursor))
	row("Pending", fmt.Sprintf("%d events", st.PendingEvents))
	row("Last push", ago(st.LastPushAt, now))
	row("Last pull", ago(st.LastPullAt, now))
	if st.LastCycleStatus != "" {
		row("Last cycle", fmt.Sprintf("%s in %s", st.LastCycleStatus, st.LastCycleDuration.Round(time.Millisecond)))
	}
	if st.Running {
		row("Running", cyan.Render("a cycle is in progress"))
	}
	if st.ConsecutiveFailures > 0 {
		row("Failures", red.Render(fmt.Sprint(st.ConsecutiveFailures)))
	}
	if st.NextRetryAt != nil {
		row("Next retry", humanize.RelTime(*st.NextRetryAt, now, "ago", "from now"))
	}
	if st.LastError != "" {
		row("Last error", red.Render(st.LastError))
	}
}

func stateStyle(s trust.State) string {
	switch s {
	case trust.StateReady:
		return green.Render(string(s))
	case trust.StateRecovery:
		return red.Render(string(s))
	default:
		return yellow.Render(string(s))
	}
}

func ago(t *time.Time, now time.Time) string {
	if t == nil || t.IsZero() {
		return lightGray.Render("never")
	}
	return humanize.RelTime(*t, now, "ago", "from now")
}
