package cache

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"
)

// Manager is the read-through/write-through cache in front of the routers.
// Store failures are logged and count as misses; they never reach the caller.
type Manager struct {
	Store  interfaces.ICacheStore
	Config models.MCacheConfig
	Keys   Keys
	Logger *logger.Logger

	// MarketOpen selects the quote TTL; nil treats every market as open.
	MarketOpen func(symbol string) bool

	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
	errors  atomic.Int64
}

// -----------------------------------------------------------------------------

// NewManager returns a manager over store. A disabled config or nil store
// yields a manager where every read misses and every write is dropped.
func NewManager(store interfaces.ICacheStore, cfg models.MCacheConfig, m *metrics.Metrics, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewLogger(nil, "CacheManager")
	}
	if !cfg.Enabled {
		store = nil
	}
	return &Manager{
		Store:   store,
		Config:  cfg,
		Keys:    Keys{Prefix: cfg.KeyPrefix},
		Logger:  log,
		metrics: m,
	}
}

// NewStore builds the configured backend.
func NewStore(cfg models.MCacheConfig, log *logger.Logger) interfaces.ICacheStore {
	if cfg.Backend == "redis" {
		return NewRedisStore(cfg.Redis, log.Named("RedisStore"))
	}
	return NewMemoryStore(cfg.MaxListSize)
}

// -----------------------------------------------------------------------------

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func (cm *Manager) quoteTTL(symbol string) time.Duration {
	if cm.MarketOpen != nil && cm.Config.ClosedMarketQuoteTTLSec > 0 && !cm.MarketOpen(symbol) {
		return seconds(cm.Config.ClosedMarketQuoteTTLSec)
	}
	return seconds(cm.Config.QuoteTTLSeconds)
}

// -----------------------------------------------------------------------------
// Counters
// -----------------------------------------------------------------------------

func (cm *Manager) hit(n int) {
	if n > 0 {
		cm.hits.Add(int64(n))
		cm.metrics.CacheOperation("hit", n)
	}
}

func (cm *Manager) miss(n int) {
	if n > 0 {
		cm.misses.Add(int64(n))
		cm.metrics.CacheOperation("miss", n)
	}
}

func (cm *Manager) set(n int) {
	if n > 0 {
		cm.sets.Add(int64(n))
		cm.metrics.CacheOperation("set", n)
	}
}

func (cm *Manager) deleted(n int64) {
	if n > 0 {
		cm.deletes.Add(n)
		cm.metrics.CacheOperation("delete", int(n))
	}
}

func (cm *Manager) fail(op, key string, err error) {
	cm.errors.Add(1)
	cm.metrics.CacheOperation("error", 1)
	cm.Logger.Warning("Cache %s %s failed: %v", op, key, err)
}

// -----------------------------------------------------------------------------
// Generic get/set
// -----------------------------------------------------------------------------

func (cm *Manager) get(ctx context.Context, key string, dest any) bool {
	if cm.Store == nil {
		return false
	}

	data, found, err := cm.Store.Get(ctx, key)
	if err != nil {
		cm.fail("get", key, err)
		cm.miss(1)
		return false
	}
	if !found {
		cm.miss(1)
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		cm.fail("decode", key, err)
		cm.miss(1)
		return false
	}
	cm.hit(1)
	return true
}

func (cm *Manager) put(ctx context.Context, key string, value any, ttl time.Duration) {
	if cm.Store == nil || ttl <= 0 {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		cm.fail("encode", key, err)
		return
	}
	if err := cm.Store.Set(ctx, key, data, ttl); err != nil {
		cm.fail("set", key, err)
		return
	}
	cm.set(1)
}

// -----------------------------------------------------------------------------
// Quotes
// -----------------------------------------------------------------------------

func (cm *Manager) GetQuote(ctx context.Context, symbol string) (models.MQuote, bool) {
	var q models.MQuote
	ok := cm.get(ctx, cm.Keys.Quote(symbol), &q)
	return q, ok
}

func (cm *Manager) SetQuote(ctx context.Context, q models.MQuote) {
	cm.put(ctx, cm.Keys.Quote(q.Symbol), q, cm.quoteTTL(q.Symbol))
}

// -----------------------------------------------------------------------------

// GetQuotes reads all symbols with one MGET. Missing symbols are absent from the map.
func (cm *Manager) GetQuotes(ctx context.Context, symbols []string) map[string]models.MQuote {
	out := make(map[string]models.MQuote, len(symbols))
	if cm.Store == nil || len(symbols) == 0 {
		return out
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = cm.Keys.Quote(s)
	}

	values, err := cm.Store.MGet(ctx, keys)
	if err != nil {
		cm.fail("mget", cm.Keys.Quote("*"), err)
		cm.miss(len(symbols))
		return out
	}

	for i, data := range values {
		if data == nil {
			continue
		}
		var q models.MQuote
		if err := json.Unmarshal(data, &q); err != nil {
			cm.fail("decode", keys[i], err)
			continue
		}
		out[symbols[i]] = q
	}
	cm.hit(len(out))
	cm.miss(len(symbols) - len(out))
	return out
}

// -----------------------------------------------------------------------------

// SetQuotes pipelines the writes, one batch per TTL.
func (cm *Manager) SetQuotes(ctx context.Context, quotes []models.MQuote) {
	if cm.Store == nil || len(quotes) == 0 {
		return
	}

	byTTL := make(map[time.Duration]map[string][]byte)
	for _, q := range quotes {
		key := cm.Keys.Quote(q.Symbol)
		data, err := json.Marshal(q)
		if err != nil {
			cm.fail("encode", key, err)
			continue
		}
		ttl := cm.quoteTTL(q.Symbol)
		if ttl <= 0 {
			continue
		}
		if byTTL[ttl] == nil {
			byTTL[ttl] = make(map[string][]byte)
		}
		byTTL[ttl][key] = data
	}

	for ttl, entries := range byTTL {
		if err := cm.Store.SetMany(ctx, entries, ttl); err != nil {
			cm.fail("setmany", cm.Keys.Quote("*"), err)
			continue
		}
		cm.set(len(entries))
	}
}

// -----------------------------------------------------------------------------
// Bars
// -----------------------------------------------------------------------------

func (cm *Manager) GetHistorical(ctx context.Context, symbol string, tf models.TimeFrame, start, end time.Time) ([]models.MOHLCV, bool) {
	var bars []models.MOHLCV
	ok := cm.get(ctx, cm.Keys.Historical(symbol, tf, start, end), &bars)
	return bars, ok
}

func (cm *Manager) SetHistorical(ctx context.Context, symbol string, tf models.TimeFrame, start, end time.Time, bars []models.MOHLCV) {
	if len(bars) == 0 {
		return
	}
	cm.put(ctx, cm.Keys.Historical(symbol, tf, start, end), bars, seconds(cm.Config.HistoricalTTLSeconds))
}

// -----------------------------------------------------------------------------

func (cm *Manager) GetLatestBar(ctx context.Context, symbol string, tf models.TimeFrame) (models.MOHLCV, bool) {
	var bar models.MOHLCV
	ok := cm.get(ctx, cm.Keys.LatestBar(symbol, tf), &bar)
	return bar, ok
}

func (cm *Manager) SetLatestBar(ctx context.Context, bar models.MOHLCV) {
	cm.put(ctx, cm.Keys.LatestBar(bar.Symbol, bar.TimeFrame), bar, seconds(cm.Config.LatestBarTTLSeconds))
}

// -----------------------------------------------------------------------------
// Metadata (company info, search results)
// -----------------------------------------------------------------------------

func (cm *Manager) GetMeta(ctx context.Context, key string, dest any) bool {
	return cm.get(ctx, cm.Keys.Meta(key), dest)
}

func (cm *Manager) SetMeta(ctx context.Context, key string, value any) {
	cm.put(ctx, cm.Keys.Meta(key), value, seconds(cm.Config.MetadataTTLSeconds))
}

// -----------------------------------------------------------------------------
// Invalidation
// -----------------------------------------------------------------------------

// InvalidateSymbol drops every entry of symbol, or only its tf bars when tf is set.
func (cm *Manager) InvalidateSymbol(ctx context.Context, symbol string, tf models.TimeFrame) int64 {
	if cm.Store == nil {
		return 0
	}

	var total int64
	for _, pattern := range cm.Keys.SymbolPatterns(symbol, tf) {
		n, err := cm.Store.DeletePattern(ctx, pattern)
		if err != nil {
			cm.fail("invalidate", pattern, err)
			continue
		}
		total += n
	}
	cm.deleted(total)
	cm.Logger.Debug("Invalidated %d entries for %s %s", total, symbol, tf)
	return total
}

// InvalidateAll wipes every key under the prefix.
func (cm *Manager) InvalidateAll(ctx context.Context) int64 {
	if cm.Store == nil {
		return 0
	}

	n, err := cm.Store.DeletePattern(ctx, cm.Keys.All())
	if err != nil {
		cm.fail("invalidate", cm.Keys.All(), err)
		return 0
	}
	cm.deleted(n)
	cm.Logger.Info("Cache wiped: %d entries", n)
	return n
}

// -----------------------------------------------------------------------------

func (cm *Manager) Stats(ctx context.Context) models.MCacheStats {
	stats := models.MCacheStats{
		Backend: "disabled",
		Hits:    cm.hits.Load(),
		Misses:  cm.misses.Load(),
		Sets:    cm.sets.Load(),
		Deletes: cm.deletes.Load(),
		Errors:  cm.errors.Load(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	if cm.Store != nil {
		stats.Backend = cm.Store.Name()
		stats.Healthy = cm.Store.Ping(ctx) == nil
	}
	return stats
}

// -----------------------------------------------------------------------------

func (cm *Manager) Close() error {
	if cm.Store == nil {
		return nil
	}
	return cm.Store.Close()
}
