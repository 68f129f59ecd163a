package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}

			if err := a.ctrl.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("failed to remove local session: %w", err)
			}

			fmt.Fprintln(d.Out, "✓ Logged out")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}

			s, err := a.requireSession()
			if err != nil {
				return err
			}

			fmt.Fprintf(d.Out, "%s (id %d)\n", s.User.Name, s.User.ID)
			fmt.Fprintf(d.Out, "Session expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}
