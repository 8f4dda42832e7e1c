package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wlocate/wlocate/internal/auth"
)

func newTokenCmd() *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:   "token <client-id>",
		Short: "Issue an API access token signed with JWT_SIGNING_KEY",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := auth.ConfigFromEnv()
			if !cfg.Enabled() {
				return errors.New("JWT_SIGNING_KEY is not set")
			}
			if expiry > 0 {
				cfg.Expiry = expiry
			}

			token, expiresAt, err := auth.NewJWTService(cfg).GenerateAccessToken(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (default from JWT_TOKEN_EXPIRY)")
	return cmd
}
