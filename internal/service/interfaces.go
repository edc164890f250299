// Package service defines the interfaces shared between the sync components.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/ledgersync/internal/model"
)

// LedgerReader is the read side of the ledger. Everything except the
// reconciler only ever sees this view.
type LedgerReader interface {
	GetAccount(ctx context.Context, id string) (*model.LinkedAccount, error)
	GetAccountByExternalID(ctx context.Context, provider, externalID string) (*model.LinkedAccount, error)
	ListAccounts(ctx context.Context, provider string) ([]model.LinkedAccount, error)
	GetTransactions(ctx context.Context, accountID string) ([]model.LedgerTransaction, error)
	CountTransactions(ctx context.Context, accountID string) (int, error)
}

// LedgerWriter holds the mutations the reconciler performs.
type LedgerWriter interface {
	UpsertAccount(ctx context.Context, account *model.LinkedAccount) (*model.LinkedAccount, error)
	UpdateAccountBalance(ctx context.Context, accountID string, balance model.Money) error
	SetLastSyncedAt(ctx context.Context, accountID string, at time.Time) error
	// InsertTransactionIfAbsent reports whether a new row was created.
	InsertTransactionIfAbsent(ctx context.Context, txn *model.LedgerTransaction) (bool, error)
}

// ConsentStore keeps issued consent requests until their callback arrives.
type ConsentStore interface {
	SaveConsent(ctx context.Context, key string, consent model.ConsentRequest) error
	// TakeConsent reads and deletes in one step.
	TakeConsent(ctx context.Context, key string) (*model.ConsentRequest, error)
}

// SchedulerStateStore persists recurring job cadence.
type SchedulerStateStore interface {
	GetSchedulerState(ctx context.Context, name string) (*model.SchedulerState, error)
	SaveSchedulerState(ctx context.Context, state model.SchedulerState) error
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	LedgerReader
	LedgerWriter
	ConsentStore
	SchedulerStateStore

	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	LedgerReader
	LedgerWriter
	Commit() error
	Rollback() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// WithDefaults fills unset fields.
func (o RetryOptions) WithDefaults() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Multiplier <= 0 {
		o.Multiplier = 2.0
	}
	return o
}
