// Command krossadmin manages levels and backups for a KrossWordle database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"krosswordle/internal/config"
	"krosswordle/internal/database"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "krossadmin:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "krossadmin",
		Short:         "Manage KrossWordle levels and backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.Load().ConfigureLogging()
		},
	}
	root.AddCommand(newLevelsCmd(), newBackupCmd())
	return root
}

// openDB connects using the environment configuration and applies pending migrations
func openDB(ctx context.Context) (*database.DB, error) {
	cfg := config.Load()
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.RunMigrations(ctx, cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Debug().Str("type", cfg.DatabaseType).Msg("database ready")
	return db, nil
}
