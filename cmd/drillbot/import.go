package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"github.com/vytor/drillbot/internal/db"
	"github.com/vytor/drillbot/internal/importer"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
)

var importCmd = &cobra.Command{
	Use:   "import-questions <file.xlsx|file.csv>",
	Short: "Import multiple-choice questions into the question bank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sheet, _ := cmd.Flags().GetString("sheet")
		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = args[0]
		}

		database, err := db.Open(cfg.DBDriver, cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		ctx := logger.NewContext(cmd.Context(), logger.Default().WithPrefix("import"))
		res, err := importer.New(sqlstore.NewStore(database.DB), source).ImportFile(ctx, args[0], sheet)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	importCmd.Flags().String("sheet", "", "Worksheet to read (defaults to the first sheet)")
	importCmd.Flags().String("source", "", "Source label stored with each question (defaults to the file path)")
}
