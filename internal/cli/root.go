package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/laskarbuah/freelance-portal/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree over d
func NewRootCmd(d *commands.Deps) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "portal",
		Short: "Freelance portal - attendance and profile from the terminal",
		Long: `Portal CLI - sign in to the freelance employee portal, check your
attendance schedule, submit attendance with a photo, and manage your profile.

The session is kept locally for 24 hours, in a file or the OS keyring
(PORTAL_SESSION_STORE=file|keyring).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(d.Out, "portal version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewLoginCmd(d))
	rootCmd.AddCommand(commands.NewLogoutCmd(d))
	rootCmd.AddCommand(commands.NewWhoamiCmd(d))
	rootCmd.AddCommand(commands.NewAttendanceCmd(d))
	rootCmd.AddCommand(commands.NewProfileCmd(d))
	rootCmd.AddCommand(commands.NewOpenCmd(d))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd(commands.DefaultDeps()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
