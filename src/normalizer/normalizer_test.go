package normalizer

import (
	"encoding/json"
	"testing"
	"time"

	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

var fixedNow = time.Date(2024, 3, 4, 15, 30, 0, 0, time.UTC)

func newTestNormalizer(mappings ...models.MSymbolMapping) *Normalizer {
	n := NewNormalizer(NewSymbolMapper(mappings), nil, nil)
	n.Now = func() time.Time { return fixedNow }
	return n
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"$1,234.50", 1234.5, true},
		{"12.5%", 12.5, true},
		{"1.2B", 1.2e9, true},
		{"850k", 850e3, true},
		{"3.1M", 3.1e6, true},
		{"2T", 2e12, true},
		{"(3.25)", -3.25, true},
		{"€ 99", 99, true},
		{json.Number("42.1"), 42.1, true},
		{int64(7), 7, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"abc", 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseNumber(tc.in)
		require.Equal(t, tc.ok, ok, "%v", tc.in)
		if tc.ok {
			require.InDelta(t, tc.want, got, 1e-6, "%v", tc.in)
		}
	}
}

func TestParseTimestampEpochScales(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	for _, v := range []any{
		want.Unix(),
		want.UnixMilli(),
		want.UnixMicro(),
		want.UnixNano(),
		float64(want.Unix()),
		"1704205800",
		"1704205800000",
	} {
		got, ok := ParseTimestamp(v)
		require.True(t, ok, "%v", v)
		require.True(t, want.Equal(got), "%v -> %v", v, got)
		require.Equal(t, time.UTC, got.Location())
	}
}

func TestParseTimestampLayoutsAreUTC(t *testing.T) {
	t.Parallel()

	got, ok := ParseTimestamp("2024-01-02T09:30:00-05:00")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), got)
	require.Equal(t, time.UTC, got.Location())

	got, ok = ParseTimestamp("2024-01-02 14:30:00")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), got)

	got, ok = ParseTimestamp("2024-01-02")
	require.True(t, ok)
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), got)

	_, ok = ParseTimestamp("yesterday")
	require.False(t, ok)
	_, ok = ParseTimestamp(int64(0))
	require.False(t, ok)
}

func TestQuoteFromMapProbesAliases(t *testing.T) {
	t.Parallel()

	// Arrange: a finnhub-shaped payload
	raw := map[string]any{"c": 189.5, "h": 191.0, "l": 187.2, "o": 188.0, "pc": 186.0, "d": 3.5, "dp": 1.88, "t": float64(1704205800)}
	n := newTestNormalizer()

	// Act
	q, err := n.QuoteFromMap(raw, "finnhub", "AAPL")

	// Assert
	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, 189.5, q.Price)
	require.Equal(t, 191.0, *q.DayHigh)
	require.Equal(t, 187.2, *q.DayLow)
	require.Equal(t, 186.0, q.PreviousClose)
	require.Equal(t, 3.5, q.Change)
	require.Equal(t, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), q.Timestamp)
	require.Nil(t, q.Bid)
}

func TestQuoteFromMapUsesMappingAndDerivesChange(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer(models.MSymbolMapping{Canonical: "BRK.B", Provider: "vendor", ProviderSymbol: "BRK-B"})
	raw := map[string]any{"Symbol": "BRK-B", "LastPrice": "410.00", "previousClose": "400", "Currency": "usd"}

	q, err := n.QuoteFromMap(raw, "vendor", "")

	require.NoError(t, err)
	require.Equal(t, "BRK.B", q.Symbol)
	require.Equal(t, 410.0, q.Price)
	require.InDelta(t, 10.0, q.Change, 1e-9)
	require.InDelta(t, 2.5, q.ChangePercent, 1e-9)
	require.Equal(t, "USD", q.Currency)

	_, err = n.QuoteFromMap(map[string]any{"symbol": "AAPL"}, "vendor", "")
	require.Error(t, err)
}

func TestBarFromMap(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	raw := map[string]any{"t": int64(1704205800000), "o": "10", "h": "12", "l": "9.5", "c": "11", "v": "1.5K", "vw": 10.8}

	b, err := n.BarFromMap(raw, "AAPL", "vendor", models.TimeFrame1Min)

	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC), b.Timestamp)
	require.Equal(t, 11.0, b.Close)
	require.Equal(t, 1500.0, b.Volume)
	require.Equal(t, 10.8, *b.VWAP)

	_, err = n.BarFromMap(map[string]any{"c": 1}, "AAPL", "vendor", models.TimeFrame1Min)
	require.Error(t, err)
}

func TestQuoteValidationFlagsWithoutRejecting(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()

	cases := []struct {
		name string
		q    models.MQuote
		kind string
	}{
		{"non-positive price", models.MQuote{Symbol: "X", Price: 0}, WarnNonPositivePrice},
		{"inverted bid ask", models.MQuote{Symbol: "X", Price: 10, Bid: ptr(10.2), Ask: ptr(10.1)}, WarnInvertedBidAsk},
		{"wide spread", models.MQuote{Symbol: "X", Price: 10, Bid: ptr(9), Ask: ptr(11)}, WarnWideSpread},
		{"inverted day range", models.MQuote{Symbol: "X", Price: 10, DayLow: ptr(12), DayHigh: ptr(9)}, WarnInvalidDayRange},
		{"outside day range", models.MQuote{Symbol: "X", Price: 15, DayLow: ptr(9), DayHigh: ptr(12)}, WarnOutsideDayRange},
		{"stale", models.MQuote{Symbol: "X", Price: 10, Timestamp: fixedNow.Add(-6 * time.Minute)}, WarnStaleQuote},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := n.Quote(tc.q)

			require.True(t, HasWarning(got.Warnings, tc.kind), "%v", got.Warnings)
			require.Equal(t, tc.q.Price, got.Price)
		})
	}

	clean := n.Quote(models.MQuote{Symbol: "X", Price: 10, Bid: ptr(9.99), Ask: ptr(10.01), Timestamp: fixedNow.Add(-time.Minute)})
	require.Empty(t, clean.Warnings)
}

func TestQuoteDefaultsTimestampToNowUTC(t *testing.T) {
	t.Parallel()

	n := newTestNormalizer()
	tokyo := time.FixedZone("JST", 9*3600)

	q := n.Quote(models.MQuote{Symbol: "7203.T", Price: 2500})
	require.Equal(t, fixedNow, q.Timestamp)

	q = n.Quote(models.MQuote{Symbol: "7203.T", Price: 2500, Timestamp: fixedNow.In(tokyo)})
	require.Equal(t, time.UTC, q.Timestamp.Location())
}

func TestInvertedBarIsFlaggedAndKept(t *testing.T) {
	t.Parallel()

	// Arrange
	n := newTestNormalizer()
	bars := []models.MOHLCV{{Symbol: "AAPL", Timestamp: fixedNow, Open: 102, High: 100, Low: 105, Close: 103, Volume: 10}}

	// Act
	got := n.Bars("AAPL", bars)

	// Assert
	require.Len(t, got, 1)
	require.True(t, HasWarning(got[0].Warnings, WarnInvalidRange), "%v", got[0].Warnings)
	require.Equal(t, 105.0, got[0].Low)
}

func TestBarValidationKinds(t *testing.T) {
	t.Parallel()

	require.True(t, HasWarning(ValidateOHLCV(models.MOHLCV{Open: 5, High: 5, Low: 5, Close: 5, Volume: 100}), WarnZeroRange))
	require.True(t, HasWarning(ValidateOHLCV(models.MOHLCV{Open: 20, High: 12, Low: 10, Close: 11}), WarnOpenOutside))
	require.True(t, HasWarning(ValidateOHLCV(models.MOHLCV{Open: 11, High: 12, Low: 10, Close: 9}), WarnCloseOutside))
	require.True(t, HasWarning(ValidateOHLCV(models.MOHLCV{Open: 11, High: 20, Low: 10, Close: 12}), WarnExtremeRange))
	require.True(t, HasWarning(ValidateOHLCV(models.MOHLCV{Open: 11, High: 12, Low: 10, Close: 11, Volume: -1}), WarnNegativeVolume))
	require.Empty(t, ValidateOHLCV(models.MOHLCV{Open: 11, High: 12, Low: 10, Close: 11, Volume: 100}))
}

func TestBarsSortedAscendingAndDeduplicated(t *testing.T) {
	t.Parallel()

	// Arrange: out of order with one duplicate timestamp
	n := newTestNormalizer()
	t0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	bar := func(day int, c float64) models.MOHLCV {
		return models.MOHLCV{Timestamp: t0.AddDate(0, 0, day), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1}
	}
	in := []models.MOHLCV{bar(2, 12), bar(0, 10), bar(1, 11), bar(2, 13)}

	// Act
	got := n.Bars("AAPL", in)

	// Assert
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].Timestamp.Before(got[i].Timestamp))
	}
	require.Equal(t, 13.0, got[2].Close)
	require.Equal(t, 12.0, in[0].Close, "input slice untouched")
}

func TestSymbolMapperRoundTrip(t *testing.T) {
	t.Parallel()

	sm := NewSymbolMapper([]models.MSymbolMapping{
		{Canonical: "brk.b", Provider: "Finnhub", ProviderSymbol: "BRK-B"},
	})

	ps, ok := sm.ToProvider("BRK.B", "finnhub")
	require.True(t, ok)
	require.Equal(t, "BRK-B", ps)

	c, ok := sm.ToCanonical("FINNHUB", "BRK-B")
	require.True(t, ok)
	require.Equal(t, "BRK.B", c)

	_, ok = sm.ToProvider("BRK.B", "yahoo")
	require.False(t, ok)

	// replacing a mapping drops the old reverse entry
	sm.Add(models.MSymbolMapping{Canonical: "BRK.B", Provider: "finnhub", ProviderSymbol: "BRK.B"})
	_, ok = sm.ToCanonical("finnhub", "BRK-B")
	require.False(t, ok)
	require.Len(t, sm.Mappings(), 1)
}

func TestCleanSymbol(t *testing.T) {
	t.Parallel()

	require.Equal(t, "AAPL", CleanSymbol(" $aapl "))
	require.Equal(t, "SAP.DE", CleanSymbol("sap..de"))
	require.Equal(t, "^GSPC", CleanSymbol("^gspc"))
	require.Equal(t, "EURUSD=X", CleanSymbol("eurusd=x"))
	require.Equal(t, "BTC-USD", CleanSymbol("btc-usd*"))
}
