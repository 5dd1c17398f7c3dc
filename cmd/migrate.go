package cmd

import (
	"os"

	"github.com/einstein-academy/course-registration/internal/config"
	"github.com/einstein-academy/course-registration/internal/infrastructure/database"
	"github.com/einstein-academy/course-registration/pkg/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations for the snapshot store",
	Long: `Apply the schema migrations for the optional Postgres snapshot store
(students, courses and the allocation outcome audit table).`,
	Run: func(cmd *cobra.Command, args []string) {
		runMigrations()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrations() {
	cfg := config.Get()

	db, err := database.NewConnection(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.Username,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.HealthCheck(db); err != nil {
		logger.Error("Database health check failed: %v", err)
		os.Exit(1)
	}

	if err := database.RunMigrations(db); err != nil {
		logger.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}

	logger.Info("Migrations applied")
}
