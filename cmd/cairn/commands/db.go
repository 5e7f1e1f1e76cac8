package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cairnstack/cairn/db"
	"github.com/cairnstack/cairn/logger"
)

// DBCmd manages the cairn database.
var DBCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the cairn database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		conn, err := db.Open(cfg.GetDatabasePath(), logger.Logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		if err := db.Migrate(conn, logger.Logger); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	DBCmd.AddCommand(dbMigrateCmd)
}
