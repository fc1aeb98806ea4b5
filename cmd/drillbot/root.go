package main

import (
	"github.com/spf13/cobra"
	"github.com/vytor/drillbot/internal/config"
	"github.com/vytor/drillbot/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "drillbot",
	Short:         "Spaced-repetition drilling over chat",
	Long:          "drillbot drills students on their recorded mistakes one multiple-choice question at a time.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		logger.Default().Error("%v", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Database file or DSN (overrides DB_PATH)")
	rootCmd.PersistentFlags().String("db-driver", "", "sqlite3 or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(scanCmd)
}

// loadConfig reads the environment, applies flag overrides, validates the
// result and installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBPath = v
	}
	if v, _ := cmd.Flags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}

	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithFormat(logger.ParseFormat(cfg.LogFormat)),
		logger.WithColors(true),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
