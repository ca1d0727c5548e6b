package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoToken = errors.New("no access token available; run \"sessionctl login\" first")

func newTokenCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print an access token",
		Long: `Print an access token for the signed-in user.

In development mode this is the fixed development token. In production
mode the provider's accounts are process-local unless
GOSESSION_PROVIDER_PERSIST_ACCOUNTS=true stores them (with their refresh
tokens) in the storage backend. Without it a token is only available in the
process that signed in; use "sessionctl serve" for a long-running session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			auth, err := opts.open(ctx, cmd, cfg, printNavigator(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer auth.Close()

			tok, err := auth.AccessToken(ctx)
			if err != nil {
				return err
			}
			if tok == "" {
				return errNoToken
			}

			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]string{
					"mode":        auth.Mode().String(),
					"accessToken": tok,
					"tokenType":   "Bearer",
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
}
