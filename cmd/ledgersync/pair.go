package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client/engine"
	"github.com/ledgersync/ledgersync/internal/client/pairing"
	"github.com/ledgersync/ledgersync/internal/synccrypto"
)

func init() {
	rootCmd.AddCommand(newPairCmd())
}

func newPairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "Pair a new device with this account",
	}
	cmd.AddCommand(newPairIssueCmd())
	cmd.AddCommand(newPairClaimCmd())
	return cmd
}

func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

func newPairIssueCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Start pairing on a synced device and show the code",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			sess, err := c.StartPairing(ctx)
			if err != nil {
				return err
			}
			cancel := func() { c.CancelPairing(context.Background(), sess) }

			if interactive() && !yes {
				return RunPairTUI(PairTUIOpts{
					Title:       "Pair a new device",
					Code:        sess.Code(),
					ExpiresAt:   sess.ExpiresAt(),
					SAS:         sess.SAS,
					ConfirmSAS:  true,
					WaitLabel:   "Waiting for the new device to enter the code...",
					FinishLabel: "Sending sync keys...",
					DoneLabel:   "Device paired",
					Wait:        func() error { return c.WaitForClaimer(ctx, sess) },
					Finish:      func() error { return c.ApprovePairing(ctx, sess) },
					Cancel:      cancel,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Pairing code: %s\n", codeStyle.Render(sess.Code()))
			fmt.Fprintln(out, "Waiting for the new device...")
			if err := c.WaitForClaimer(ctx, sess); err != nil {
				return err
			}
			fmt.Fprintf(out, "Security code: %s\n", codeStyle.Render(sess.SAS()))
			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out, "Does the other device show the same security code?")
				if err != nil || !ok {
					cancel()
					return errSASMismatch
				}
			}
			if err := c.ApprovePairing(ctx, sess); err != nil {
				return err
			}
			fmt.Fprintln(out, green.Render("Device paired"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve without comparing the security code")
	return cmd
}

func newPairClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <code>",
		Short: "Join the account using the code shown on a synced device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			sess, err := c.ClaimPairing(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}

			var bundle *synccrypto.KeyBundle
			var res *engine.BootstrapResult
			wait := func() (err error) {
				bundle, err = c.WaitForKeyBundle(ctx, sess)
				return err
			}
			finish := func() (err error) {
				res, err = c.ConfirmPairing(ctx, sess, bundle)
				return err
			}

			if interactive() {
				err = RunPairTUI(PairTUIOpts{
					Title:       "Join your LedgerSync account",
					SAS:         sess.SAS,
					WaitLabel:   "Compare the security code and approve on the other device...",
					FinishLabel: "Restoring your data...",
					DoneLabel:   "Paired and synced",
					Wait:        wait,
					Finish:      finish,
					Cancel:      func() { c.CancelPairing(context.Background(), sess) },
				})
			} else {
				err = claimPlain(cmd.OutOrStdout(), sess, wait, finish)
			}
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
}

func claimPlain(out io.Writer, sess *pairing.ClaimerSession, wait, finish func() error) error {
	fmt.Fprintf(out, "Security code: %s\n", codeStyle.Render(sess.SAS()))
	fmt.Fprintln(out, "Approve on the other device once the codes match...")
	if err := wait(); err != nil {
		return err
	}
	return finish()
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
