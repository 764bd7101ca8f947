package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/orrery/internal/app"
)

func (c *CLI) newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [datasets...]",
		Short: "Refresh datasets from their sources into the cache",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			slice, _ := cmd.Flags().GetString("slice")

			return c.app.Fetch(cmd.Context(), args, app.FetchOptions{
				Force: force,
				Slice: slice,
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Fetch even when the cached copy is fresh")
	cmd.Flags().String("slice", "", "Restrict to a year range such as 1990-2000")
	return cmd
}
