package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear persisted session state",
		Args:  cobra.NoArgs,
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

			if err := auth.Logout(ctx); err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), newSessionView(auth.Mode().String(), auth.Session()))
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}
