package main

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/ledgersync/internal/cli"
	"github.com/Veraticus/ledgersync/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the ledger schema to the latest version.

Every other command migrates on startup as well; this one is for
preparing a database ahead of time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.Info("Running database migrations",
				"driver", cfg.Database.Driver,
				"dsn", redactDSN(cfg.Database.DSN))

			store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println(cli.FormatSuccess("Database migrations completed"))
			return nil
		},
	}
}
