package commands

import (
	"github.com/spf13/cobra"

	"photomemo/internal/config"
	"photomemo/internal/db"
	"photomemo/internal/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update tables and indexes, then exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		log := logging.New(cfg.Log)

		gdb, err := db.Connect(cfg.DatabaseURL, log)
		if err != nil {
			return err
		}
		if err := db.AutoMigrateAndIndexes(gdb); err != nil {
			return err
		}
		log.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
