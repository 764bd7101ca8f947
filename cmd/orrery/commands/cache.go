package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/orrery/internal/app"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the dataset cache",
	}

	cmd.AddCommand(c.newCacheListCmd())
	cmd.AddCommand(c.newCacheValidateCmd())
	cmd.AddCommand(c.newCacheRepairCmd())
	cmd.AddCommand(c.newCacheClearCmd())
	cmd.AddCommand(c.newCacheWatchCmd())

	return cmd
}

func (c *CLI) newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached keys and their state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.CacheList(cmd.Context())
		},
	}
}

func (c *CLI) newCacheValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [keys...]",
		Short: "Check cached keys without modifying them",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.CacheValidate(cmd.Context(), args)
		},
	}
}

func (c *CLI) newCacheRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair [keys...]",
		Short: "Restore corrupt keys from their newest valid backup",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return c.app.CacheRepair(cmd.Context(), args, app.RepairOptions{Force: force})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Restore the newest backup even over a valid file")
	return cmd
}

func (c *CLI) newCacheClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear [keys...]",
		Short: "Remove cached keys and their backups",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			return c.app.CacheClear(cmd.Context(), args, app.ClearOptions{All: all})
		},
	}
	cmd.Flags().BoolP("all", "a", false, "Remove the whole cache")
	return cmd
}

func (c *CLI) newCacheWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Revalidate cached keys whenever their files change",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debounce, _ := cmd.Flags().GetDuration("debounce")
			repair, _ := cmd.Flags().GetBool("repair")
			return c.app.Watch(cmd.Context(), app.WatchOptions{Debounce: debounce, Repair: repair})
		},
	}
	cmd.Flags().Duration("debounce", 0, "Quiet period before a batch of changes is revalidated (default 250ms)")
	cmd.Flags().Bool("repair", false, "Restore corrupt keys from backup as soon as they are detected")
	return cmd
}
