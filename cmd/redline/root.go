package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/redline/internal/cli"
	"github.com/aretw0/redline/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "redline",
	Short: "Redline reviews contracts clause by clause",
	Long: `Redline walks a contract through a domain checklist, runs the analysis skills
for each clause, drafts edits with a language model and pauses for a human
decision before anything is committed.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default "+config.DefaultFile+")")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// loadApp builds the full review stack for a command.
func loadApp(ctx context.Context, cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(cfg.Log)
	if err != nil {
		logger.Warn("Invalid log level, using info", "err", err)
	}
	return cli.NewApp(ctx, cfg, logger)
}
