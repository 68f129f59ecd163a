package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/laskarbuah/freelance-portal/internal/portal"
)

// NewProfileCmd creates the profile command group
func NewProfileCmd(d *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile or change its photo",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the profile detail",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}

			profile, err := a.ctrl.Profile(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load profile: %w", err)
			}
			if len(profile) == 0 {
				fmt.Fprintln(d.Out, "No profile found.")
				return nil
			}

			keys := make([]string, 0, len(profile))
			for k := range profile {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := tabwriter.NewWriter(d.Out, 0, 0, 2, ' ', 0)
			for _, k := range keys {
				fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(profile[k]))
			}
			w.Flush()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "photo <file>",
		Short: "Replace the profile photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}
			if _, err := a.requireSession(); err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open photo: %w", err)
			}
			defer f.Close()

			url, err := a.ctrl.UpdateProfilePhoto(cmd.Context(), portal.Photo{Filename: filepath.Base(args[0]), Body: f})
			if err != nil {
				return err
			}

			fmt.Fprintln(d.Out, "✓ Profile photo updated")
			fmt.Fprintf(d.Out, "  URL: %s\n", url)
			return nil
		},
	})

	return cmd
}
