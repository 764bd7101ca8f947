// Package commands implements the CLI commands for orrery.
package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/orrery/internal/app"
	"go.trai.ch/orrery/internal/build"
)

// skipConfig marks commands that run without loading orrery.yaml.
const skipConfig = "skip-config"

// CLI represents the command line interface for orrery.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
}

// Application represents the application logic interface.
type Application interface {
	Configure(opts app.GlobalOptions) error
	Bodies(ctx context.Context) error
	Orbit(ctx context.Context, bodyID string, opts app.OrbitOptions) error
	Precess(ctx context.Context, bodyID string, opts app.PrecessOptions) error
	Fetch(ctx context.Context, datasets []string, opts app.FetchOptions) error
	CacheList(ctx context.Context) error
	CacheValidate(ctx context.Context, keys []string) error
	CacheRepair(ctx context.Context, keys []string, opts app.RepairOptions) error
	CacheClear(ctx context.Context, keys []string, opts app.ClearOptions) error
	Watch(ctx context.Context, opts app.WatchOptions) error
}

// New creates a new CLI instance with the given app.
func New(a Application) *CLI {
	rootCmd := &cobra.Command{
		Use:           "orrery",
		Short:         "Keplerian orbits, relativistic precession and a self-healing dataset cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Path to orrery.yaml (default: search the working directory and its parents)")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("json", false, "Write logs as JSON")
	flags.StringP("output-mode", "o", "auto", "Output mode: auto, interactive, or linear")
	flags.Bool("ci", false, "Use linear output mode (shorthand for --output-mode=linear)")

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}
	rootCmd.PersistentPreRunE = c.configure

	rootCmd.AddCommand(c.newBodiesCmd())
	rootCmd.AddCommand(c.newOrbitCmd())
	rootCmd.AddCommand(c.newPrecessCmd())
	rootCmd.AddCommand(c.newFetchCmd())
	rootCmd.AddCommand(c.newCacheCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

func (c *CLI) configure(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" || cmd.Name() == "help" {
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	outputMode, _ := cmd.Flags().GetString("output-mode")
	ci, _ := cmd.Flags().GetBool("ci")

	// If --ci is set, override output-mode to "linear"
	if ci {
		outputMode = "linear"
	}

	return c.app.Configure(app.GlobalOptions{
		ConfigPath: configPath,
		LogLevel:   logLevel,
		JSON:       jsonLogs,
		OutputMode: outputMode,
	})
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
