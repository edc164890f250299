// Package linking turns a confirmed account selection into linked ledger
// accounts and runs their first import.
package linking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/reconcile"
	"github.com/Veraticus/ledgersync/internal/selection"
)

// AccountImporter performs the first full-history import of an account.
type AccountImporter interface {
	ImportAccount(ctx context.Context, acc *model.LinkedAccount) (*reconcile.Result, error)
}

// ScheduleArmer makes sure the daily sync is scheduled.
type ScheduleArmer interface {
	EnsureScheduled(ctx context.Context) (time.Time, error)
}

// FailedAccount is a chosen account that could not be linked or imported.
type FailedAccount struct {
	Err        error
	ExternalID string
}

// ImportResult reports what Confirm did with each chosen account.
// ImportFailed accounts are linked but get their data on the next sweep.
type ImportResult struct {
	NextSync     time.Time
	Linked       []model.LinkedAccount
	ImportFailed []FailedAccount
	Failed       []FailedAccount
}

// Importer confirms account selections.
type Importer struct {
	cache      selection.Cache
	reconciler *reconcile.Reconciler
	importer   AccountImporter
	scheduler  ScheduleArmer
	logger     *slog.Logger
}

// NewImporter creates an Importer.
func NewImporter(cache selection.Cache, reconciler *reconcile.Reconciler, importer AccountImporter, scheduler ScheduleArmer) *Importer {
	return &Importer{
		cache:      cache,
		reconciler: reconciler,
		importer:   importer,
		scheduler:  scheduler,
		logger:     common.Component("linking"),
	}
}

// Confirm links the chosen accounts from the selection held under key.
// The selection is consumed whatever the outcome.
func (i *Importer) Confirm(ctx context.Context, key string, chosen []string) (*ImportResult, error) {
	if len(chosen) == 0 {
		return nil, fmt.Errorf("%w: no accounts selected", common.ErrValidation)
	}

	sel, err := i.cache.TakeOnce(ctx, key)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	seen := make(map[string]bool, len(chosen))
	for _, uid := range chosen {
		if seen[uid] {
			continue
		}
		seen[uid] = true

		if _, ok := sel.Find(uid); !ok {
			result.Failed = append(result.Failed, FailedAccount{
				ExternalID: uid,
				Err:        fmt.Errorf("%w: account %s was not offered by the bank", common.ErrValidation, uid),
			})
			continue
		}

		acc, err := i.reconciler.LinkAccount(ctx, uid, sel.InstitutionName)
		if err != nil {
			i.logger.Error("Failed to link account", "external_id", uid, "error", err)
			result.Failed = append(result.Failed, FailedAccount{ExternalID: uid, Err: err})
			continue
		}
		result.Linked = append(result.Linked, *acc)

		if _, err := i.importer.ImportAccount(ctx, acc); err != nil {
			i.logger.Warn("Initial import failed, next sweep will retry",
				"account_id", acc.ID,
				"error", err)
			result.ImportFailed = append(result.ImportFailed, FailedAccount{ExternalID: uid, Err: err})
		}
	}

	if len(result.Linked) == 0 {
		errs := make([]error, 0, len(result.Failed))
		for _, f := range result.Failed {
			errs = append(errs, f.Err)
		}
		return result, fmt.Errorf("no accounts linked: %w", errors.Join(errs...))
	}

	next, err := i.scheduler.EnsureScheduled(ctx)
	if err != nil {
		i.logger.Error("Failed to schedule daily sync", "error", err)
	} else {
		result.NextSync = next
	}

	i.logger.Info("Accounts linked",
		"institution", sel.InstitutionName,
		"linked", len(result.Linked),
		"failed", len(result.Failed))

	return result, nil
}
