package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edstats/itemgrid/internal/config"
	"github.com/edstats/itemgrid/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "itemgrid",
	Short: "Learner-interaction exports to per-item statistic matrices",
	Long: "Itemgrid converts per-course learner-interaction CSV exports into dense\n" +
		"learner-by-item statistic matrices suitable for item response modeling.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to TOML config file (default: XDG config path)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides ITEMGRID_DB env var)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(coursesCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfig loads the TOML config from --config (highest priority) or the
// default XDG path; a missing file yields the defaults.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then ITEMGRID_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// newLogger builds the run logger; --verbose switches to the development
// encoder with debug-level output. The returned func flushes on exit.
func newLogger(cmd *cobra.Command) (*zap.SugaredLogger, func(), error) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	}
	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), func() { _ = logger.Sync() }, nil
}
