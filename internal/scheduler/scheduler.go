package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/Veraticus/ledgersync/internal/reconcile"
	"github.com/Veraticus/ledgersync/internal/service"
)

// SweepJobName keys the persisted state of the daily sweep.
const SweepJobName = "enable_banking.daily_sync"

const (
	defaultJitterMin = time.Minute
	defaultJitterMax = 30 * time.Minute
	retryLoopDelay   = time.Minute
)

// Store is what the scheduler needs from the ledger.
type Store interface {
	service.SchedulerStateStore
	ListAccounts(ctx context.Context, provider string) ([]model.LinkedAccount, error)
}

// Syncer syncs one account.
type Syncer interface {
	SyncAccount(ctx context.Context, accountID string) (*reconcile.Result, error)
}

// Config holds configuration for the scheduler.
type Config struct {
	Location   *time.Location
	DailyAt    ScheduleTime
	JitterMin  time.Duration
	JitterMax  time.Duration
	JobTimeout time.Duration
	Workers    int
	QueueSize  int
}

// Scheduler runs the daily sweep and dispatches per-account syncs.
type Scheduler struct {
	store   Store
	syncer  Syncer
	pool    *WorkerPool
	logger  *slog.Logger
	now     func() time.Time
	jitter  func() time.Duration
	cancel  context.CancelFunc
	timers  map[*time.Timer]struct{}
	cfg     Config
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// New creates a scheduler. Call Start to begin the loop.
func New(store Store, syncer Syncer, cfg Config) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.JitterMin <= 0 {
		cfg.JitterMin = defaultJitterMin
	}
	if cfg.JitterMax <= 0 {
		cfg.JitterMax = defaultJitterMax
	}
	if cfg.JitterMax < cfg.JitterMin {
		return nil, fmt.Errorf("%w: jitter max %s is below jitter min %s", common.ErrConfiguration, cfg.JitterMax, cfg.JitterMin)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	s := &Scheduler{
		store:  store,
		syncer: syncer,
		pool:   NewWorkerPool(cfg.Workers, cfg.QueueSize, cfg.JobTimeout),
		logger: common.Component("scheduler"),
		now:    time.Now,
		timers: make(map[*time.Timer]struct{}),
		cfg:    cfg,
	}
	s.jitter = s.randomJitter
	return s, nil
}

// randomJitter picks a uniform delay in [JitterMin, JitterMax].
func (s *Scheduler) randomJitter() time.Duration {
	span := s.cfg.JitterMax - s.cfg.JitterMin
	if span <= 0 {
		return s.cfg.JitterMin
	}
	return s.cfg.JitterMin + rand.N(span+1)
}

// EnsureScheduled makes sure a next run is persisted and returns it. An
// existing schedule is left alone, so arming twice is harmless.
func (s *Scheduler) EnsureScheduled(ctx context.Context) (time.Time, error) {
	state, err := s.store.GetSchedulerState(ctx, SweepJobName)
	if err == nil {
		return state.NextRunAt, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return time.Time{}, fmt.Errorf("failed to load schedule: %w", err)
	}

	next := s.cfg.DailyAt.Next(s.now().In(s.cfg.Location))
	if err := s.store.SaveSchedulerState(ctx, model.SchedulerState{Name: SweepJobName, NextRunAt: next}); err != nil {
		return time.Time{}, fmt.Errorf("failed to save schedule: %w", err)
	}

	s.logger.Info("Daily sync scheduled", "next_run", next)
	return next, nil
}

// Start launches the worker pool and the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.pool.Start()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Scheduler started", "daily_at", s.cfg.DailyAt.String())
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	for {
		wait := s.step(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// step runs the sweep if it is due and returns how long to sleep.
func (s *Scheduler) step(ctx context.Context) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduler loop panicked", "panic", r)
			wait = retryLoopDelay
		}
	}()

	next, err := s.EnsureScheduled(ctx)
	if err != nil {
		s.logger.Error("Failed to load schedule", "error", err)
		return retryLoopDelay
	}

	if until := next.Sub(s.now()); until > 0 {
		return until
	}

	if _, err := s.RunSweep(ctx); err != nil {
		s.logger.Error("Daily sweep failed", "error", err)
		return retryLoopDelay
	}
	return 0
}

// RunSweep persists tomorrow's run, then dispatches every linked account
// after its own random delay. It returns the number of accounts dispatched.
func (s *Scheduler) RunSweep(ctx context.Context) (int, error) {
	now := s.now().In(s.cfg.Location)
	next := s.cfg.DailyAt.Next(now)
	ranAt := now
	if err := s.store.SaveSchedulerState(ctx, model.SchedulerState{
		Name:      SweepJobName,
		NextRunAt: next,
		LastRunAt: &ranAt,
	}); err != nil {
		return 0, fmt.Errorf("failed to persist next run: %w", err)
	}

	accounts, err := s.store.ListAccounts(ctx, model.ProviderEnableBanking)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, acc := range accounts {
		delay := s.jitter()
		s.dispatchAfter(delay, acc.ID)
		s.logger.Debug("Account sync dispatched", "account_id", acc.ID, "delay", delay)
	}

	s.logger.Info("Daily sweep dispatched", "accounts", len(accounts), "next_run", next)
	return len(accounts), nil
}

func (s *Scheduler) dispatchAfter(delay time.Duration, accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		s.mu.Unlock()

		if err := s.pool.Submit(&syncJob{syncer: s.syncer, accountID: accountID}); err != nil {
			s.logger.Error("Failed to submit account sync", "account_id", accountID, "error", err)
		}
	})
	s.timers[timer] = struct{}{}
}

// Pending returns how many dispatches are still waiting on their delay.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown stops the loop, drops dispatches that have not fired yet and
// drains the worker pool.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.logger.Info("Scheduler shutting down")

	if s.cancel != nil {
		s.cancel()
	}

	s.mu.Lock()
	s.stopped = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.mu.Unlock()

	s.wg.Wait()
	s.pool.Shutdown(timeout)
}

type syncJob struct {
	syncer    Syncer
	accountID string
}

func (j *syncJob) Description() string { return "account sync" }

func (j *syncJob) AccountID() string { return j.accountID }

func (j *syncJob) Execute(ctx context.Context) error {
	_, err := j.syncer.SyncAccount(ctx, j.accountID)
	if errors.Is(err, common.ErrSyncInProgress) {
		return nil
	}
	return err
}
