package selection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/ledgersync/internal/common"
	"github.com/Veraticus/ledgersync/internal/model"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures NewRedisClient.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// RedisCache keeps selections in Redis as JSON with a TTL. TakeOnce uses
// GETDEL so two concurrent readers cannot both win.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache over client. A zero ttl uses DefaultTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, sel model.PendingSelection) (string, error) {
	key, err := NewKey()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(sel)
	if err != nil {
		return "", fmt.Errorf("failed to encode selection: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store selection: %w", err)
	}
	return key, nil
}

// TakeOnce implements Cache.
func (c *RedisCache) TakeOnce(ctx context.Context, key string) (*model.PendingSelection, error) {
	data, err := c.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrSelectionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take selection: %w", err)
	}

	var sel model.PendingSelection
	if err := json.Unmarshal(data, &sel); err != nil {
		return nil, fmt.Errorf("failed to decode selection: %w", err)
	}
	return &sel, nil
}

var _ Cache = (*RedisCache)(nil)
