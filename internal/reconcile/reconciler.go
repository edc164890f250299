// Package reconcile applies provider data to the ledger. It is the only
// package that writes accounts and transactions.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/service"
)

// Result summarizes one reconciliation.
type Result struct {
	Balance        *model.Money
	Inserted       int
	Skipped        int
	BalanceUpdated bool
}

// Reconciler writes provider data into the ledger store.
type Reconciler struct {
	store  service.Storage
	logger *slog.Logger
}

// New creates a Reconciler.
func New(store service.Storage) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: common.Component("reconcile"),
	}
}

// LinkAccount creates or refreshes the local account for a provider
// account uid. Relinking never duplicates the account.
func (r *Reconciler) LinkAccount(ctx context.Context, externalID, institutionName string) (*model.LinkedAccount, error) {
	acc, err := r.store.UpsertAccount(ctx, &model.LinkedAccount{
		Provider:        model.ProviderEnableBanking,
		ExternalID:      externalID,
		Name:            fmt.Sprintf("%s Account", institutionName),
		InstitutionName: institutionName,
		AccountType:     model.AccountTypeBank,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to link account %s: %w", externalID, err)
	}
	return acc, nil
}

// Reconcile applies balances and transactions to account in a single store
// transaction. Running it twice with the same input changes nothing the
// second time.
func (r *Reconciler) Reconcile(ctx context.Context, account *model.LinkedAccount, balances []enablebanking.Balance, transactions []enablebanking.Transaction) (*Result, error) {
	booked, err := BookedBalance(balances)
	if err != nil {
		return nil, err
	}

	entries := make([]model.LedgerTransaction, 0, len(transactions))
	for _, t := range transactions {
		entry, convErr := ToLedger(account.ID, t)
		if convErr != nil {
			return nil, convErr
		}
		entries = append(entries, entry)
	}

	tx, err := r.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result := &Result{}
	if booked != nil {
		if err := tx.UpdateAccountBalance(ctx, account.ID, *booked); err != nil {
			return nil, fmt.Errorf("failed to update balance: %w", err)
		}
		result.Balance = booked
		result.BalanceUpdated = true
	}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		entry := &entries[i]
		if seen[entry.ExternalID] {
			result.Skipped++
			continue
		}
		seen[entry.ExternalID] = true

		created, err := tx.InsertTransactionIfAbsent(ctx, entry)
		if err != nil {
			return nil, err
		}
		if created {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	r.logger.Info("Reconciled account",
		"account_id", account.ID,
		"inserted", result.Inserted,
		"skipped", result.Skipped,
		"balance_updated", result.BalanceUpdated)

	return result, nil
}

// MarkSynced advances the account's checkpoint.
func (r *Reconciler) MarkSynced(ctx context.Context, accountID string, at time.Time) error {
	if err := r.store.SetLastSyncedAt(ctx, accountID, at); err != nil {
		return fmt.Errorf("failed to mark account %s synced: %w", accountID, err)
	}
	return nil
}
