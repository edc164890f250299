package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
)

// GetSchedulerState loads the persisted cadence for a named job.
func (s *SQLStorage) GetSchedulerState(ctx context.Context, name string) (*model.SchedulerState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		state   model.SchedulerState
		lastRun sql.NullTime
	)
	err := s.queryRow(ctx,
		`SELECT name, next_run_at, last_run_at FROM scheduler_state WHERE name = ?`, name).
		Scan(&state.Name, &state.NextRunAt, &lastRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scheduler state %s: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduler state: %w", err)
	}
	if lastRun.Valid {
		t := lastRun.Time
		state.LastRunAt = &t
	}
	return &state, nil
}

// SaveSchedulerState upserts the cadence for a named job.
func (s *SQLStorage) SaveSchedulerState(ctx context.Context, state model.SchedulerState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(state.Name, "name"); err != nil {
		return err
	}

	var lastRun sql.NullTime
	if state.LastRunAt != nil {
		lastRun = sql.NullTime{Time: state.LastRunAt.UTC(), Valid: true}
	}

	_, err := s.exec(ctx, `
		INSERT INTO scheduler_state (name, next_run_at, last_run_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			next_run_at = excluded.next_run_at,
			last_run_at = excluded.last_run_at`,
		state.Name, state.NextRunAt.UTC(), lastRun)
	if err != nil {
		return fmt.Errorf("failed to save scheduler state: %w", err)
	}
	return nil
}
