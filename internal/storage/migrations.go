package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx, dialect) error
	Description string
	Version     int
}

// execAll runs DDL statements in order, substituting the dialect's timestamp type.
func execAll(tx *sql.Tx, d dialect, queries []string) error {
	for _, query := range queries {
		query = strings.ReplaceAll(query, "{{timestamp}}", d.timestamp)
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Linked accounts and ledger transactions",
		Up: func(tx *sql.Tx, d dialect) error {
			return execAll(tx, d, []string{
				`CREATE TABLE IF NOT EXISTS linked_accounts (
					id TEXT PRIMARY KEY,
					provider TEXT NOT NULL,
					external_id TEXT NOT NULL,
					name TEXT NOT NULL,
					institution_name TEXT NOT NULL DEFAULT '',
					account_type TEXT NOT NULL,
					balance_amount TEXT NOT NULL DEFAULT '0',
					balance_currency TEXT NOT NULL DEFAULT '',
					last_synced_at {{timestamp}},
					created_at {{timestamp}} NOT NULL,
					updated_at {{timestamp}} NOT NULL,
					UNIQUE (provider, external_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_linked_accounts_last_synced_at ON linked_accounts(last_synced_at)`,

				`CREATE TABLE IF NOT EXISTS ledger_transactions (
					id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL REFERENCES linked_accounts(id),
					external_id TEXT NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					booking_date DATE,
					status TEXT NOT NULL DEFAULT '',
					created_at {{timestamp}} NOT NULL,
					UNIQUE (account_id, external_id)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_ledger_transactions_booking ON ledger_transactions(account_id, booking_date)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Pending consent requests",
		Up: func(tx *sql.Tx, d dialect) error {
			return execAll(tx, d, []string{
				`CREATE TABLE IF NOT EXISTS consent_requests (
					interaction_key TEXT PRIMARY KEY,
					request_id TEXT NOT NULL UNIQUE,
					institution_id TEXT NOT NULL DEFAULT '',
					institution_name TEXT NOT NULL,
					institution_country TEXT NOT NULL,
					psu_type TEXT NOT NULL,
					auth_method TEXT NOT NULL DEFAULT '',
					validity_days INTEGER NOT NULL DEFAULT 0,
					created_at {{timestamp}} NOT NULL,
					expires_at {{timestamp}} NOT NULL
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Scheduler state",
		Up: func(tx *sql.Tx, d dialect) error {
			return execAll(tx, d, []string{
				`CREATE TABLE IF NOT EXISTS scheduler_state (
					name TEXT PRIMARY KEY,
					next_run_at {{timestamp}} NOT NULL,
					last_run_at {{timestamp}}
				)`,
			})
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if s.inTx {
		return fmt.Errorf("migrations cannot be run within a transaction")
	}

	createVersions := strings.ReplaceAll(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at {{timestamp}} NOT NULL
	)`, "{{timestamp}}", s.dialect.timestamp)
	if _, err := s.db.ExecContext(ctx, createVersions); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	currentVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx, s.dialect); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		record := s.dialect.rebind(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`)
		if _, execErr := tx.ExecContext(ctx, record, migration.Version, migration.Description, time.Now().UTC()); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.schemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

func (s *SQLStorage) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
