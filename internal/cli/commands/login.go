package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewLoginCmd creates the login command
func NewLoginCmd(d *Deps) *cobra.Command {
	var kodeUser, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the freelance portal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, d, kodeUser, password)
		},
	}

	cmd.Flags().StringVar(&kodeUser, "kode-user", "", "Kode user (or set PORTAL_KODE_USER, will prompt if not provided)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PORTAL_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, d *Deps, kodeUser, password string) error {
	// Check for environment variables (useful for scripts)
	if kodeUser == "" {
		kodeUser = os.Getenv("PORTAL_KODE_USER")
	}
	if password == "" {
		password = os.Getenv("PORTAL_PASSWORD")
	}

	a, err := newApp(d)
	if err != nil {
		return err
	}

	if kodeUser == "" {
		kodeUser, err = d.Prompter.KodeUser()
		if errors.Is(err, errNonInteractive) {
			return fmt.Errorf("kode user is required in non-interactive mode (use --kode-user flag or PORTAL_KODE_USER env var)")
		}
		if err != nil {
			return err
		}
	}

	if password == "" {
		password, err = d.Prompter.Password()
		if errors.Is(err, errNonInteractive) {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or PORTAL_PASSWORD env var)")
		}
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(d.Out, "Logging in to %s...\n", a.cfg.PortalURL)

	s, err := a.ctrl.Login(cmd.Context(), kodeUser, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintln(d.Out, "✓ Login successful!")
	fmt.Fprintf(d.Out, "  User: %s (id %d)\n", s.User.Name, s.User.ID)
	fmt.Fprintf(d.Out, "  Session expires: %s\n", s.ExpiresAt.Local().Format("2006-01-02 15:04"))

	return nil
}
