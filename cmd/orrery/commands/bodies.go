package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newBodiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bodies",
		Short: "List the body catalog with first-order precession",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Bodies(cmd.Context())
		},
	}
}
