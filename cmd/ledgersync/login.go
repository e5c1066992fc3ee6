package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ledgersync/ledgersync/internal/client"
	"github.com/ledgersync/ledgersync/internal/client/config"
	"github.com/ledgersync/ledgersync/internal/utils"
)

var loginCodePattern = regexp.MustCompile(`^[0-9A-Z]{6,16}$`)

func isValidLoginCode(code string) bool {
	return loginCodePattern.MatchString(code)
}

func init() {
	rootCmd.AddCommand(newLoginCmd())
}

func newLoginCmd() *cobra.Command {
	var email string
	var code string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the LedgerSync relay with an emailed code",
		Long: `Log in to the LedgerSync relay.

Without flags an interactive prompt asks for the email and the code. For
scripts, run once with --email to have a code mailed, then again with
--email and --code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			if cfg.RequireLogin() == nil && email == "" {
				if !quiet {
					fmt.Fprintln(cmd.OutOrStdout(), green.Render("Already logged in"))
					printConfig(cmd, cfg)
				}
				return nil
			}

			ctx := cmd.Context()
			switch {
			case email != "" && code != "":
				if err := client.Login(ctx, cfg, email, code); err != nil {
					return err
				}
			case email != "":
				if err := client.RequestLoginCode(ctx, cfg, email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Login code sent to %s, rerun with --code\n", cyan.Render(email))
				return nil
			default:
				if !isatty.IsTerminal(os.Stdin.Fd()) {
					return fmt.Errorf("no terminal for the login prompt, use --email and --code")
				}
				err := RunLoginTUI(LoginTUIOpts{
					Email:      cfg.Email,
					RelayURL:   cfg.RelayURL,
					DataDir:    cfg.DataDir,
					ConfigPath: cfg.Path,
					RequestCode: func(address string) error {
						return client.RequestLoginCode(ctx, cfg, address)
					},
					VerifyCode: func(address, code string) error {
						return client.Login(ctx, cfg, address, code)
					},
					EmailValidator: utils.IsValidEmail,
					CodeValidator:  isValidLoginCode,
				})
				if err != nil {
					return err
				}
			}

			if !quiet {
				fmt.Fprintln(cmd.OutOrStdout(), green.Render("Logged in"))
				printConfig(cmd, cfg)
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&code, "code", "", "login code from the email")
	cmd.Flags().StringP("relay", "r", config.DefaultRelayURL, "url of the LedgerSync relay")
	cmd.Flags().StringP("datadir", "d", config.DefaultDataDir, "directory for the local database and keys")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "disable output")

	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", gray.Render("Config  "), cyan.Render(cfg.Path))
	fmt.Fprintf(out, "%s %s\n", gray.Render("Email   "), cyan.Render(cfg.Email))
	fmt.Fprintf(out, "%s %s\n", gray.Render("Data    "), cyan.Render(cfg.DataDir))
	fmt.Fprintf(out, "%s %s\n", gray.Render("Relay   "), cyan.Render(cfg.RelayURL))
}
