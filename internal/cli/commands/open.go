package commands

import (
	"fmt"
	"path"

	"github.com/spf13/cobra"
)

// NewOpenCmd creates the open command
func NewOpenCmd(d *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Show where a portal page would take you",
		Long: `Show where a portal page would take you with the current session.

Examples:
  $ portal open /dashboard   # → /login when signed out
  $ portal open /login       # → / when signed in`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(d)
			if err != nil {
				return err
			}

			target := path.Clean("/" + args[0])
			decision := a.ctrl.Guard(target)
			if decision.Allowed() {
				fmt.Fprintf(d.Out, "%s%s\n", a.cfg.PortalURL, target)
				return nil
			}

			fmt.Fprintf(d.Out, "%s%s (redirected from %s)\n", a.cfg.PortalURL, decision.Redirect, target)
			return nil
		},
	}
}
