package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func testConfig() models.MCacheConfig {
	return models.MCacheConfig{
		Enabled:                 true,
		Backend:                 "memory",
		KeyPrefix:               "market",
		QuoteTTLSeconds:         15,
		ClosedMarketQuoteTTLSec: 900,
		HistoricalTTLSeconds:    3600,
		LatestBarTTLSeconds:     3600,
		MetadataTTLSeconds:      86400,
		MaxListSize:             100,
	}
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestManager() (*Manager, *MemoryStore, *clock) {
	c := &clock{t: time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(100)
	store.Now = c.now
	return NewManager(store, testConfig(), nil, nil), store, c
}

// failingStore errors on every call.
type failingStore struct{ *MemoryStore }

var errDown = errors.New("connection refused")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errDown }
func (failingStore) MGet(context.Context, []string) ([][]byte, error)   { return nil, errDown }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errDown
}
func (failingStore) SetMany(context.Context, map[string][]byte, time.Duration) error {
	return errDown
}
func (failingStore) DeletePattern(context.Context, string) (int64, error) { return 0, errDown }
func (failingStore) Ping(context.Context) error                           { return errDown }

func TestKeySchema(t *testing.T) {
	t.Parallel()

	k := Keys{Prefix: "market"}
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 21, 0, 0, 0, time.FixedZone("X", 3600))

	require.Equal(t, "market:quote:AAPL", k.Quote("aapl"))
	require.Equal(t, "market:historical:SAP.DE:1day:20240102T000000:20240105T200000", k.Historical("SAP.DE", models.TimeFrame1Day, start, end))
	require.Equal(t, "market:bar:AAPL:1min:latest", k.LatestBar("AAPL", models.TimeFrame1Min))
	require.Equal(t, "market:meta:search:apple", k.Meta("search:apple"))
}

func TestQuoteRoundTripAndTTL(t *testing.T) {
	t.Parallel()

	// Arrange
	cm, _, c := newTestManager()
	q := models.MQuote{Symbol: "AAPL", Price: 190.1, Provider: "yahoo", Timestamp: c.t}

	// Act
	cm.SetQuote(t.Context(), q)
	got, ok := cm.GetQuote(t.Context(), "AAPL")

	// Assert
	require.True(t, ok)
	require.Equal(t, 190.1, got.Price)
	require.True(t, q.Timestamp.Equal(got.Timestamp))

	c.t = c.t.Add(16 * time.Second)
	_, ok = cm.GetQuote(t.Context(), "AAPL")
	require.False(t, ok, "open-market quote expires after 15s")

	stats := cm.Stats(t.Context())
	require.Equal(t, int64(1), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(1), stats.Sets)
	require.InDelta(t, 0.5, stats.HitRate, 1e-9)
	require.True(t, stats.Healthy)
	require.Equal(t, "memory", stats.Backend)
}

func TestClosedMarketQuoteLivesLonger(t *testing.T) {
	t.Parallel()

	cm, _, c := newTestManager()
	cm.MarketOpen = func(symbol string) bool { return symbol != "7203.T" }

	cm.SetQuotes(t.Context(), []models.MQuote{{Symbol: "7203.T", Price: 2500}, {Symbol: "AAPL", Price: 190}})
	c.t = c.t.Add(10 * time.Minute)

	got := cm.GetQuotes(t.Context(), []string{"7203.T", "AAPL"})
	require.Contains(t, got, "7203.T")
	require.NotContains(t, got, "AAPL")
}

func TestGetQuotesReturnsPartialHits(t *testing.T) {
	t.Parallel()

	cm, _, _ := newTestManager()
	cm.SetQuotes(t.Context(), []models.MQuote{{Symbol: "AAPL", Price: 1}, {Symbol: "MSFT", Price: 2}})

	got := cm.GetQuotes(t.Context(), []string{"AAPL", "MSFT", "GOOG"})

	require.Len(t, got, 2)
	require.Equal(t, 2.0, got["MSFT"].Price)
	stats := cm.Stats(t.Context())
	require.Equal(t, int64(2), stats.Hits)
	require.Equal(t, int64(1), stats.Misses)
	require.Equal(t, int64(2), stats.Sets)
}

func TestHistoricalAndLatestBar(t *testing.T) {
	t.Parallel()

	cm, _, c := newTestManager()
	start, end := c.t.AddDate(0, 0, -5), c.t
	bars := []models.MOHLCV{{Symbol: "AAPL", Timestamp: start, Close: 1, TimeFrame: models.TimeFrame1Day}}

	cm.SetHistorical(t.Context(), "AAPL", models.TimeFrame1Day, start, end, bars)
	cm.SetLatestBar(t.Context(), bars[0])

	got, ok := cm.GetHistorical(t.Context(), "AAPL", models.TimeFrame1Day, start, end)
	require.True(t, ok)
	require.Len(t, got, 1)

	_, ok = cm.GetHistorical(t.Context(), "AAPL", models.TimeFrame1Day, start.Add(time.Hour), end)
	require.False(t, ok, "different range, different key")

	bar, ok := cm.GetLatestBar(t.Context(), "AAPL", models.TimeFrame1Day)
	require.True(t, ok)
	require.Equal(t, 1.0, bar.Close)
}

func TestInvalidation(t *testing.T) {
	t.Parallel()

	// Arrange
	cm, store, c := newTestManager()
	ctx := t.Context()
	start, end := c.t.AddDate(0, 0, -5), c.t
	for _, s := range []string{"AAPL", "MSFT"} {
		cm.SetQuote(ctx, models.MQuote{Symbol: s, Price: 1})
		cm.SetHistorical(ctx, s, models.TimeFrame1Day, start, end, []models.MOHLCV{{Close: 1}})
		cm.SetHistorical(ctx, s, models.TimeFrame1Min, start, end, []models.MOHLCV{{Close: 1}})
		cm.SetLatestBar(ctx, models.MOHLCV{Symbol: s, TimeFrame: models.TimeFrame1Day, Close: 1})
	}
	cm.SetMeta(ctx, "info:AAPL", map[string]string{"name": "Apple"})
	require.Equal(t, 9, store.Len())

	// Act + Assert: timeframe scoped
	require.Equal(t, int64(2), cm.InvalidateSymbol(ctx, "AAPL", models.TimeFrame1Day))
	_, ok := cm.GetHistorical(ctx, "AAPL", models.TimeFrame1Min, start, end)
	require.True(t, ok)

	// whole symbol
	require.Equal(t, int64(2), cm.InvalidateSymbol(ctx, "aapl", ""))
	_, ok = cm.GetQuote(ctx, "AAPL")
	require.False(t, ok)
	_, ok = cm.GetQuote(ctx, "MSFT")
	require.True(t, ok)

	// full wipe
	require.Equal(t, int64(5), cm.InvalidateAll(ctx))
	require.Zero(t, store.Len())
	require.Equal(t, int64(9), cm.Stats(ctx).Deletes)
}

func TestStoreErrorsDegradeToMisses(t *testing.T) {
	t.Parallel()

	cm := NewManager(&failingStore{MemoryStore: NewMemoryStore(0)}, testConfig(), nil, nil)
	ctx := t.Context()

	cm.SetQuote(ctx, models.MQuote{Symbol: "AAPL", Price: 1})
	cm.SetQuotes(ctx, []models.MQuote{{Symbol: "AAPL", Price: 1}})
	_, ok := cm.GetQuote(ctx, "AAPL")
	require.False(t, ok)
	require.Empty(t, cm.GetQuotes(ctx, []string{"AAPL", "MSFT"}))
	require.Zero(t, cm.InvalidateAll(ctx))

	stats := cm.Stats(ctx)
	require.False(t, stats.Healthy)
	require.Equal(t, int64(5), stats.Errors)
	require.Equal(t, int64(3), stats.Misses)
	require.Zero(t, stats.Sets)
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false
	cm := NewManager(NewMemoryStore(10), cfg, nil, nil)

	cm.SetQuote(t.Context(), models.MQuote{Symbol: "AAPL", Price: 1})
	_, ok := cm.GetQuote(t.Context(), "AAPL")

	require.False(t, ok)
	require.Equal(t, "disabled", cm.Stats(t.Context()).Backend)
}

func TestMemoryStoreEvictsSoonestExpiry(t *testing.T) {
	t.Parallel()

	ms := NewMemoryStore(2)
	ctx := t.Context()
	require.NoError(t, ms.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, ms.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, ms.Set(ctx, "c", []byte("3"), time.Hour))

	_, ok, _ := ms.Get(ctx, "a")
	require.False(t, ok)
	v, ok, _ := ms.Get(ctx, "c")
	require.True(t, ok)
	require.Equal(t, "3", string(v))
	require.Equal(t, 2, ms.Len())
}

func TestGlobMatchesRedisSemantics(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pattern, key string
		match        bool
	}{
		{"market:*", "market:quote:EUR/USD", true},
		{"market:quote:?APL", "market:quote:AAPL", true},
		{`market:quote:\*`, "market:quote:*", true},
		{`market:quote:\*`, "market:quote:AAPL", false},
		{"market:bar:[AM]*", "market:bar:MSFT:1day:latest", true},
		{"market:bar:[^AM]*", "market:bar:MSFT:1day:latest", false},
		{"other:*", "market:quote:AAPL", false},
	}
	for _, tc := range cases {
		re, err := globToRegexp(tc.pattern)
		require.NoError(t, err)
		require.Equal(t, tc.match, re.MatchString(tc.key), "%s vs %s", tc.pattern, tc.key)
	}
}
