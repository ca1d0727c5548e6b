package commands

import (
	"github.com/spf13/cobra"
)

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show the persisted session",
		Args:    cobra.NoArgs,
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

			return printSession(cmd.OutOrStdout(), opts.jsonOutput, newSessionView(auth.Mode().String(), auth.Session()))
		},
	}
}
