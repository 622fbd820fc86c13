// Package main provides the spamreport binary.
// It runs the spam classification experiment and writes its report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/config"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spamreport",
		Short: "Spam classification experiment",
		Long: `spamreport compares a neural network with penalized logistic regression,
naive Bayes and a random forest on the Spambase data.

Examples:
  spamreport run --data data/spambase.csv      # Full report into ./report
  spamreport run -c experiment.yaml --seed 7   # Custom config and seed
  spamreport explore --out eda                 # Exploratory tables and PCA plot only`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().Int64("seed", 0, "random seed (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("data", "", "Spambase CSV path (overrides config)")
	rootCmd.PersistentFlags().StringP("out", "o", "", "report output directory (overrides config)")
	rootCmd.PersistentFlags().Bool("no-plots", false, "skip PNG plots")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full experiment and write the report",
		RunE:  runReport,
	}
	runCmd.Flags().String("store", "", "SQLite results database (overrides config)")
	runCmd.Flags().Int("workers", 0, "parallel workers for search and bootstrap (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "explore",
		Short: "Write the exploratory analysis only",
		RunE:  runExplore,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("spamreport %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies flag overrides and initializes logging.
func setup(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if flags.Changed("data") {
		cfg.Data.Path, _ = flags.GetString("data")
	}
	if flags.Changed("out") {
		cfg.Report.OutDir, _ = flags.GetString("out")
	}
	if noPlots, _ := flags.GetBool("no-plots"); noPlots {
		cfg.Report.Plots = false
	}
	if flags.Lookup("store") != nil && flags.Changed("store") {
		cfg.Store.Path, _ = flags.GetString("store")
	}
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		cfg.Search.Workers = workers
		cfg.Bootstrap.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runReport(cmd *cobra.Command, _ []string) error {
	return execute(cmd, "run", pipeline.Run)
}

func runExplore(cmd *cobra.Command, _ []string) error {
	return execute(cmd, "explore", pipeline.Explore)
}

func execute(cmd *cobra.Command, name string, run func(context.Context, *config.Config) (*pipeline.State, error)) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting spamreport",
		zap.String("command", name),
		zap.String("version", version),
		zap.Int64("seed", cfg.Seed),
		zap.String("data", cfg.Data.Path))

	st, err := run(ctx, cfg)
	if err != nil {
		logger.Error("spamreport failed", zap.String("command", name), zap.Error(err))
		return err
	}

	logger.Info("report complete",
		zap.String("dir", cfg.Report.OutDir),
		zap.Int("files", len(st.Files)),
		zap.String("run_id", st.Bundle.RunID))
	for _, f := range st.Files {
		fmt.Fprintln(cmd.OutOrStdout(), f)
	}
	return nil
}
