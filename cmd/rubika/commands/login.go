package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// login: sign in, prompting for the code and passkey.
func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in and register this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if err := a.client.Login(cmd.Context(), p); err != nil {
				return err
			}

			name := a.client.Phone()
			if prof := a.client.Profile(); prof != nil && prof.FirstName != "" {
				name = prof.FirstName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", name)
			return nil
		},
	}
}

// logout: end the session on the server and delete it locally.
func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and delete it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}
