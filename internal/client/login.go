package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgersync/ledgersync/internal/client/config"
	"github.com/ledgersync/ledgersync/internal/relaysdk"
	"github.com/ledgersync/ledgersync/internal/utils"
)

// RequestLoginCode asks the relay to email a one-time code to email.
func RequestLoginCode(ctx context.Context, cfg *config.Config, email string) error {
	email = utils.NormalizeEmail(email)
	if err := utils.ValidateEmail(email); err != nil {
		return err
	}
	return relaysdk.RequestEmailOTP(ctx, cfg.RelayURL, email)
}

// Login exchanges the emailed code for tokens and persists them in cfg.
func Login(ctx context.Context, cfg *config.Config, email, code string) error {
	email = utils.NormalizeEmail(email)
	tokens, err := relaysdk.VerifyEmailOTP(ctx, cfg.RelayURL, email, strings.TrimSpace(code))
	if err != nil {
		return err
	}

	cfg.Email = email
	cfg.AccessToken = tokens.AccessToken
	cfg.RefreshToken = tokens.RefreshToken
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
