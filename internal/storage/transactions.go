package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/google/uuid"
)

// InsertTransactionIfAbsent is get-or-create on (account_id, external_id).
// It reports true when a new row was written.
func (s *SQLStorage) InsertTransactionIfAbsent(ctx context.Context, txn *model.LedgerTransaction) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateTransaction(txn); err != nil {
		return false, err
	}

	id := txn.ID
	if id == "" {
		id = uuid.NewString()
	}

	var bookingDate sql.NullTime
	if !txn.BookingDate.IsZero() {
		bookingDate = sql.NullTime{Time: txn.BookingDate.UTC(), Valid: true}
	}

	res, err := s.exec(ctx, `
		INSERT INTO ledger_transactions (
			id, account_id, external_id, amount, currency,
			description, booking_date, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, external_id) DO NOTHING`,
		id,
		txn.AccountID,
		txn.ExternalID,
		txn.Amount.Amount,
		txn.Amount.Currency,
		txn.Description,
		bookingDate,
		txn.Status,
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", txn.ExternalID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n > 0 {
		txn.ID = id
	}
	return n > 0, nil
}

// GetTransactions returns an account's ledger ordered by booking date.
func (s *SQLStorage) GetTransactions(ctx context.Context, accountID string) ([]model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(accountID, "accountID"); err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, `
		SELECT id, account_id, external_id, amount, currency, description, booking_date, status, created_at
		FROM ledger_transactions
		WHERE account_id = ?
		ORDER BY booking_date, external_id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.LedgerTransaction
	for rows.Next() {
		var (
			txn         model.LedgerTransaction
			bookingDate sql.NullTime
		)
		if err := rows.Scan(
			&txn.ID,
			&txn.AccountID,
			&txn.ExternalID,
			&txn.Amount.Amount,
			&txn.Amount.Currency,
			&txn.Description,
			&bookingDate,
			&txn.Status,
			&txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if bookingDate.Valid {
			txn.BookingDate = bookingDate.Time
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}

// CountTransactions returns how many ledger rows an account has.
func (s *SQLStorage) CountTransactions(ctx context.Context, accountID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions WHERE account_id = ?`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}
