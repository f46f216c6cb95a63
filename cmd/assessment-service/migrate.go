package main

import (
	"fmt"

	"github.com/SAP-F-2025/skills-assessment-service/internal/config"
	"github.com/SAP-F-2025/skills-assessment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/skills-assessment-service/internal/utils"
	"github.com/SAP-F-2025/skills-assessment-service/pkg"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the results schema",
	Long: `Run gorm auto-migration for the tests (results) and test_results (answer log) tables.

Examples:
  # Migrate the database from DATABASE_URL
  assessment-service migrate`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := utils.NewLogger(cfg.Environment)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Database migrated")
	return nil
}
