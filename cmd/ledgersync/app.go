package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/Veraticus/ledgersync/internal/consent"
	"github.com/Veraticus/ledgersync/internal/enablebanking"
	"github.com/Veraticus/ledgersync/internal/linking"
	"github.com/Veraticus/ledgersync/internal/reconcile"
	"github.com/Veraticus/ledgersync/internal/scheduler"
	"github.com/Veraticus/ledgersync/internal/selection"
	"github.com/Veraticus/ledgersync/internal/storage"
	"github.com/redis/go-redis/v9"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// app holds the components a command needs. Fields are only set when the
// corresponding open* call succeeded.
type app struct {
	store      *storage.SQLStorage
	client     *enablebanking.Client
	cache      selection.Cache
	redis      *redis.Client
	memory     *selection.MemoryCache
	reconciler *reconcile.Reconciler
	syncer     *scheduler.AccountSyncer
}

func openStore(ctx context.Context) (*app, error) {
	store, err := storage.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &app{
		store:      store,
		reconciler: reconcile.New(store),
	}, nil
}

func openClient() (*enablebanking.Client, error) {
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}
	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := enablebanking.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Enable Banking client: %w", err)
	}

	slog.Debug("Enable Banking client ready",
		"environment", cfg.EnableBanking.Environment,
		"base_url", cfg.EnableBanking.BaseURL)
	return client, nil
}

// openApp opens the store and the provider client.
func openApp(ctx context.Context) (*app, error) {
	client, err := openClient()
	if err != nil {
		return nil, err
	}

	a, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.client = client
	a.syncer = scheduler.NewAccountSyncer(client, a.store, a.reconciler, cfg.RetryOptions(), cfg.Sync.Lookback)
	return a, nil
}

// openCache picks Redis when redis.addr is set. The in-memory cache only
// lives as long as this process.
func (a *app) openCache(ctx context.Context) error {
	if cfg.Redis.Addr == "" {
		a.memory = selection.NewMemoryCache(selection.DefaultTTL)
		a.cache = a.memory
		return nil
	}
	rdb, err := selection.NewRedisClient(ctx, cfg.RedisOptions())
	if err != nil {
		return err
	}
	a.redis = rdb
	a.cache = selection.NewRedisCache(rdb, selection.DefaultTTL)
	return nil
}

func (a *app) sharedCache() bool {
	return a.redis != nil
}

func (a *app) newScheduler() (*scheduler.Scheduler, error) {
	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		return nil, err
	}
	return scheduler.New(a.store, a.syncer, schedCfg)
}

func (a *app) newImporter() (*linking.Importer, error) {
	sched, err := a.newScheduler()
	if err != nil {
		return nil, err
	}
	return linking.NewImporter(a.cache, a.reconciler, a.syncer, sched), nil
}

func (a *app) newExchange() *consent.Exchange {
	return consent.NewExchange(a.client, a.cache)
}

func (a *app) Close() {
	if a.memory != nil {
		a.memory.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("Failed to close redis client", "error", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
}

// redactDSN hides the password in URL-style DSNs before logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
