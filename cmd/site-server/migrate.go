package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"site-server/internal/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply the embedded SQL migrations to the database named by DB_URL.

Migrations already recorded in schema_migrations are skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DB_URL is required")
			}

			database, err := db.New(cmd.Context(), cfg.DatabaseURL, log)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			if err := database.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("migrations complete")
			return nil
		},
	}
}
