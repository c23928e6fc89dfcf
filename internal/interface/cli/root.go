package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs peictl.
func Execute(ctx context.Context, opts Options) error {
	a := newApp(opts)
	root := newRootCommand(a)
	if opts.Args != nil {
		root.SetArgs(opts.Args)
	}

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "peictl",
		Short: "PEI Hub - Individualized Education Plan tracker",
		Long: `peictl creates and edits Individualized Education Plans (PEI):
goals per development domain, the strategies that support them and a dated
progress log, with analytics over the whole plan.

Storage is chosen with PEI_STORAGE (memory, redis, postgres, sqlite) or
--storage. Settings are read from the environment and from the dotenv
file named by PEI_ENV_FILE (default .env).`,
		Version:       a.opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
	}
	rootCmd.SetOut(a.opts.Stdout)
	rootCmd.SetErr(a.opts.Stderr)

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&a.flags.peiID, "pei", "p", "", "id of the plan to operate on")
	rootCmd.PersistentFlags().StringVar(&a.flags.storage, "storage", "", "storage backend, overrides PEI_STORAGE")
	rootCmd.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level, overrides LOG_LEVEL")
	rootCmd.PersistentFlags().BoolVar(&a.flags.json, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&a.flags.metrics, "metrics", false, "print collected metrics to stderr on exit")

	// Add subcommands
	rootCmd.AddCommand(newPEICommand(a))
	rootCmd.AddCommand(newGoalCommand(a))
	rootCmd.AddCommand(newStrategyCommand(a))
	rootCmd.AddCommand(newProgressCommand(a))
	rootCmd.AddCommand(newAnalyticsCommand(a))
	rootCmd.AddCommand(newDoctorCommand(a))

	return rootCmd
}

// withPlan wraps a RunE that needs the --pei plan loaded.
func withPlan(a *app, run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if _, err := a.loadPlan(cmd.Context()); err != nil {
			return fmt.Errorf("load plan: %w", err)
		}
		return run(cmd, args)
	}
}
