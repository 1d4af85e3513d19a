package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/samarth/db"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the samarth database",
	Long: `db - Manage the samarth database

The database holds question traces and model usage. Migrations run
automatically whenever a command opens it.

Examples:
  samarth db migrate              # Apply pending migrations and list them`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.GetDatabasePath()
	database, err := openDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()

	versions, err := db.AppliedVersions(database)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n", path)
	for _, v := range versions {
		fmt.Fprintf(out, "  ✓ %s\n", v)
	}
	return nil
}
