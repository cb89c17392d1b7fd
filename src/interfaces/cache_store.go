package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// ICacheStore is the key/value backend behind the cache manager.
// Every write is a single SETEX so a partial pipeline never leaves a key half written.
// -----------------------------------------------------------------------------

type ICacheStore interface {

	// Name identifies the backend in status output.
	Name() string

	// -----------------------------------------------------------------------------

	// Get returns found=false on a miss, never an error.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// -----------------------------------------------------------------------------

	// MGet returns one entry per key, nil for misses.
	MGet(ctx context.Context, keys []string) ([][]byte, error)

	// -----------------------------------------------------------------------------

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	// SetMany writes all entries with the same ttl in one round-trip.
	SetMany(ctx context.Context, entries map[string][]byte, ttl time.Duration) error

	// -----------------------------------------------------------------------------

	Delete(ctx context.Context, keys ...string) (int64, error)

	// -----------------------------------------------------------------------------

	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) (int64, error)

	// -----------------------------------------------------------------------------

	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	Close() error
}
