package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/lesson-media/internal/config"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

// dbMigrateCmd applies or rolls back the embedded schema migrations
var dbMigrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Run schema migrations",
	Long:      `Apply (up) or roll back (down) the lessons, media_resources and transcript schema.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if err := config.MigrateDatabase(cfg.DatabaseURL, args[0]); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%s)\n", args[0])
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
