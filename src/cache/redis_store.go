package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	"github.com/go-redis/redis/v8"
)

const scanBatch = 500

// RedisStore keeps cache entries in Redis.
type RedisStore struct {
	client *redis.Client
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewRedisStore(cfg models.MRedisConfig, log *logger.Logger) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}), log)
}

func NewRedisStoreFromClient(client *redis.Client, log *logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewLogger(nil, "RedisStore")
	}
	return &RedisStore{client: client, Logger: log}
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Name() string {
	return "redis"
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := rs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := rs.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			out[i] = []byte(s)
		}
	}
	return out, nil
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return rs.client.SetEX(ctx, key, value, ttl).Err()
}

// -----------------------------------------------------------------------------

// SetMany pipelines one SETEX per entry.
func (rs *RedisStore) SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := rs.client.Pipeline()
	for k, v := range entries {
		pipe.SetEX(ctx, k, v, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return rs.client.Del(ctx, keys...).Result()
}

// -----------------------------------------------------------------------------

// DeletePattern walks the keyspace with SCAN; KEYS would block the server.
func (rs *RedisStore) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := rs.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return deleted, fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := rs.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, fmt.Errorf("del %s: %w", pattern, err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Ping(ctx context.Context) error {
	return rs.client.Ping(ctx).Err()
}

// -----------------------------------------------------------------------------

func (rs *RedisStore) Close() error {
	rs.Logger.Info("Closing Redis connection.")
	return rs.client.Close()
}
