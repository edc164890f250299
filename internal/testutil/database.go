// Package testutil provides shared fixtures for ledger tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/service"
	"github.com/Veraticus/ledgersync/internal/storage"
)

// TestDB is a migrated in-memory ledger.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database.
// It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// MustLinkAccount seeds a linked account or fails the test.
func (db *TestDB) MustLinkAccount(externalID, name string) *model.LinkedAccount {
	db.t.Helper()

	acc, err := db.Storage.UpsertAccount(context.Background(), &model.LinkedAccount{
		Provider:        model.ProviderEnableBanking,
		ExternalID:      externalID,
		Name:            name,
		InstitutionName: "Test Bank",
		AccountType:     model.AccountTypeBank,
	})
	if err != nil {
		db.t.Fatalf("failed to link account %q: %v", externalID, err)
	}
	return acc
}

// MustSetLastSynced moves an account's checkpoint or fails the test.
func (db *TestDB) MustSetLastSynced(accountID string, at time.Time) {
	db.t.Helper()
	if err := db.Storage.SetLastSyncedAt(context.Background(), accountID, at); err != nil {
		db.t.Fatalf("failed to set checkpoint: %v", err)
	}
}

// WithTransaction executes fn within a transaction that is always rolled back.
func (db *TestDB) WithTransaction(fn func(tx service.Transaction) error) error {
	tx, err := db.Storage.BeginTx(context.Background())
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	return fn(tx)
}
