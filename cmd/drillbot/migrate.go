package main

import (
	"github.com/spf13/cobra"
	"github.com/vytor/drillbot/internal/db"
	"github.com/vytor/drillbot/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// Open applies migrations.
		database, err := db.Open(cfg.DBDriver, cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		logger.Default().Info("migrations up to date")
		return nil
	},
}
