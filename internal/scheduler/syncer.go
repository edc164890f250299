package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/reconcile"
	"github.com/Veraticus/ledgersync/internal/service"
)

// DefaultLookback is how far back a never-synced account is fetched.
const DefaultLookback = 30 * 24 * time.Hour

// AccountSyncer pulls one account's data and reconciles it.
type AccountSyncer struct {
	fetcher    enablebanking.AccountFetcher
	accounts   service.LedgerReader
	reconciler *reconcile.Reconciler
	inFlight   map[string]struct{}
	logger     *slog.Logger
	now        func() time.Time
	retry      service.RetryOptions
	lookback   time.Duration
	mu         sync.Mutex
}

// NewAccountSyncer creates a syncer. A zero lookback uses DefaultLookback.
func NewAccountSyncer(fetcher enablebanking.AccountFetcher, accounts service.LedgerReader, reconciler *reconcile.Reconciler, retry service.RetryOptions, lookback time.Duration) *AccountSyncer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &AccountSyncer{
		fetcher:    fetcher,
		accounts:   accounts,
		reconciler: reconciler,
		inFlight:   make(map[string]struct{}),
		logger:     common.Component("account_syncer"),
		now:        time.Now,
		retry:      retry,
		lookback:   lookback,
	}
}

// SyncAccount fetches everything since the account's checkpoint and
// reconciles it. The checkpoint only moves when the whole attempt succeeds,
// and then to the time this sync started.
func (s *AccountSyncer) SyncAccount(ctx context.Context, accountID string) (*reconcile.Result, error) {
	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	start := s.now()
	query := enablebanking.TransactionQuery{DateFrom: acc.SyncWindowStart(start, s.lookback)}
	return s.run(ctx, acc, start, query)
}

// ImportAccount performs the first import of a freshly linked account,
// asking for the longest history the bank offers.
func (s *AccountSyncer) ImportAccount(ctx context.Context, acc *model.LinkedAccount) (*reconcile.Result, error) {
	return s.run(ctx, acc, s.now(), enablebanking.TransactionQuery{})
}

func (s *AccountSyncer) run(ctx context.Context, acc *model.LinkedAccount, start time.Time, query enablebanking.TransactionQuery) (*reconcile.Result, error) {
	if !s.acquire(acc.ID) {
		return nil, fmt.Errorf("%w: %s", common.ErrSyncInProgress, acc.ID)
	}
	defer s.release(acc.ID)

	logger := s.logger.With("account_id", acc.ID, "external_id", acc.ExternalID)
	logger.Info("Syncing account", "date_from", query.DateFrom)

	var result *reconcile.Result
	err := common.WithRetry(ctx, func(ctx context.Context, attempt int) error {
		transactions, err := s.fetcher.GetTransactions(ctx, acc.ExternalID, query)
		if err != nil {
			return err
		}
		balances, err := s.fetcher.GetBalances(ctx, acc.ExternalID)
		if err != nil {
			return err
		}

		res, err := s.reconciler.Reconcile(ctx, acc, balances, transactions)
		if err != nil {
			return err
		}
		result = res

		logger.Debug("Sync attempt succeeded", "attempt", attempt)
		return nil
	}, s.retry)
	if err != nil {
		logger.Error("Account sync failed", "error", err)
		return nil, fmt.Errorf("sync account %s: %w", acc.ID, err)
	}

	if err := s.reconciler.MarkSynced(ctx, acc.ID, start); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *AccountSyncer) acquire(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[accountID]; busy {
		return false
	}
	s.inFlight[accountID] = struct{}{}
	return true
}

func (s *AccountSyncer) release(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, accountID)
}
