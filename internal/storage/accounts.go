package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/google/uuid"
)

const accountColumns = `id, provider, external_id, name, institution_name, account_type,
	balance_amount, balance_currency, last_synced_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.LinkedAccount, error) {
	var (
		acc        model.LinkedAccount
		lastSynced sql.NullTime
	)
	err := row.Scan(
		&acc.ID,
		&acc.Provider,
		&acc.ExternalID,
		&acc.Name,
		&acc.InstitutionName,
		&acc.AccountType,
		&acc.Balance.Amount,
		&acc.Balance.Currency,
		&lastSynced,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		acc.LastSyncedAt = &t
	}
	return &acc, nil
}

// UpsertAccount links an account, keyed by (provider, external id).
// Balance and checkpoint of an existing row are left alone.
func (s *SQLStorage) UpsertAccount(ctx context.Context, account *model.LinkedAccount) (*model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateAccount(account); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := account.ID
	if id == "" {
		id = uuid.NewString()
	}

	var lastSynced sql.NullTime
	if account.LastSyncedAt != nil {
		lastSynced = sql.NullTime{Time: account.LastSyncedAt.UTC(), Valid: true}
	}

	_, err := s.exec(ctx, `
		INSERT INTO linked_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, external_id) DO UPDATE SET
			name = excluded.name,
			institution_name = excluded.institution_name,
			account_type = excluded.account_type,
			updated_at = excluded.updated_at`,
		id,
		account.Provider,
		account.ExternalID,
		account.Name,
		account.InstitutionName,
		account.AccountType,
		account.Balance.Amount,
		account.Balance.Currency,
		lastSynced,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account %s: %w", account.ExternalID, err)
	}

	return s.GetAccountByExternalID(ctx, account.Provider, account.ExternalID)
}

// GetAccount loads an account by local id.
func (s *SQLStorage) GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	acc, err := scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM linked_accounts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// GetAccountByExternalID loads an account by its provider identity.
func (s *SQLStorage) GetAccountByExternalID(ctx context.Context, provider, externalID string) (*model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(externalID, "externalID"); err != nil {
		return nil, err
	}

	acc, err := scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM linked_accounts WHERE provider = ? AND external_id = ?`,
		provider, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s/%s: %w", provider, externalID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// ListAccounts returns every account linked through provider, oldest first.
func (s *SQLStorage) ListAccounts(ctx context.Context, provider string) ([]model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx,
		`SELECT `+accountColumns+` FROM linked_accounts WHERE provider = ? ORDER BY created_at, id`,
		provider)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.LinkedAccount
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	return accounts, rows.Err()
}

// UpdateAccountBalance overwrites the stored balance.
func (s *SQLStorage) UpdateAccountBalance(ctx context.Context, accountID string, balance model.Money) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	res, err := s.exec(ctx,
		`UPDATE linked_accounts SET balance_amount = ?, balance_currency = ?, updated_at = ? WHERE id = ?`,
		balance.Amount, balance.Currency, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	return requireOneRow(res, accountID)
}

// SetLastSyncedAt advances the incremental sync checkpoint.
func (s *SQLStorage) SetLastSyncedAt(ctx context.Context, accountID string, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return err
	}

	res, err := s.exec(ctx,
		`UPDATE linked_accounts SET last_synced_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to set last synced time: %w", err)
	}
	return requireOneRow(res, accountID)
}

func requireOneRow(res sql.Result, accountID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %s: %w", accountID, common.ErrNotFound)
	}
	return nil
}
