// Package storage provides the ledger persistence layer on SQLite or PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidAccount     = errors.New("invalid account")
	ErrInvalidTransaction = errors.New("invalid transaction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %w: %s", common.ErrValidation, ErrEmptyString, paramName)
	}
	return nil
}

func validateAccount(acc *model.LinkedAccount) error {
	if acc == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if strings.TrimSpace(acc.Provider) == "" {
		return fmt.Errorf("%w: %w: missing provider", common.ErrValidation, ErrInvalidAccount)
	}
	if strings.TrimSpace(acc.ExternalID) == "" {
		return fmt.Errorf("%w: %w: missing external ID", common.ErrValidation, ErrInvalidAccount)
	}
	if strings.TrimSpace(acc.Name) == "" {
		return fmt.Errorf("%w: %w: missing name", common.ErrValidation, ErrInvalidAccount)
	}
	if strings.TrimSpace(acc.AccountType) == "" {
		return fmt.Errorf("%w: %w: missing account type", common.ErrValidation, ErrInvalidAccount)
	}
	return nil
}

func validateTransaction(txn *model.LedgerTransaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.AccountID == "" {
		return fmt.Errorf("%w: %w: missing account ID", common.ErrValidation, ErrInvalidTransaction)
	}
	if txn.ExternalID == "" {
		return fmt.Errorf("%w: %w: missing external ID", common.ErrValidation, ErrInvalidTransaction)
	}
	if txn.Amount.Currency == "" {
		return fmt.Errorf("%w: %w: missing currency", common.ErrValidation, ErrInvalidTransaction)
	}
	return nil
}
