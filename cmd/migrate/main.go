package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/terrahaven/api-server-go/database"
	"github.com/terrahaven/api-server-go/models"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the TerraHaven database schema",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		slog.SetDefault(logger)
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Run auto-migration for all platform tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(database.NewConfig())
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return database.Migrate(db)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report which platform tables exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.Connect(database.NewConfig())
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		tables := []string{
			models.AccessRequest{}.TableName(),
			models.Listing{}.TableName(),
			models.ClientConsent{}.TableName(),
		}
		for _, table := range tables {
			exists := db.Migrator().HasTable(table)
			fmt.Printf("%-20s %v\n", table, exists)
		}
		return nil
	},
}

func main() {
	rootCmd.AddCommand(upCmd, statusCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Migration command failed", "error", err)
		os.Exit(1)
	}
}
