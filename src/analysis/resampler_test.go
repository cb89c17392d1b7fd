package analysis

import (
	"testing"
	"time"

	"market-data-hub/src/models"

	"github.com/stretchr/testify/require"
)

func daily(d int, open, high, low, close, volume, vwap float64) models.MOHLCV {
	return models.MOHLCV{
		Symbol:    "AAPL",
		Timestamp: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		VWAP:      &vwap,
		Provider:  "archive",
		TimeFrame: models.TimeFrame1Day,
	}
}

func TestBucketStart(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 1, 10, 15, 47, 12, 0, time.FixedZone("EST", -5*3600)) // 20:47:12 UTC, Wednesday

	tests := []struct {
		tf   models.TimeFrame
		want time.Time
	}{
		{models.TimeFrame5Min, time.Date(2024, 1, 10, 20, 45, 0, 0, time.UTC)},
		{models.TimeFrame1Hour, time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)},
		{models.TimeFrame1Day, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)},
		{models.TimeFrame1Week, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)},
		{models.TimeFrame1Month, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(string(tt.tf), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, BucketStart(ts, tt.tf))
		})
	}
}

func TestResampleBarsToWeeks(t *testing.T) {
	t.Parallel()

	// Arrange: Fri 5th closes week 1, Mon 8th..Tue 9th open week 2, out of order
	in := []models.MOHLCV{
		daily(9, 12, 15, 11, 14, 300, 13),
		daily(5, 10, 11, 9, 10.5, 100, 10),
		daily(8, 10.5, 13, 10, 12, 100, 11),
	}

	// Act
	out := ResampleBars(in, models.TimeFrame1Week)

	// Assert
	require.Len(t, out, 2)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), out[0].Timestamp)
	require.Equal(t, 10.5, out[0].Close)

	w := out[1]
	require.Equal(t, time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), w.Timestamp)
	require.Equal(t, models.TimeFrame1Week, w.TimeFrame)
	require.Equal(t, 10.5, w.Open)
	require.Equal(t, 15.0, w.High)
	require.Equal(t, 10.0, w.Low)
	require.Equal(t, 14.0, w.Close)
	require.Equal(t, 400.0, w.Volume)
	require.NotNil(t, w.VWAP)
	require.InDelta(t, 12.5, *w.VWAP, 1e-9)
	require.Nil(t, w.TradeCount)

	require.Equal(t, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), in[0].Timestamp, "input reordered")
}

func TestResampleBarsDropsPartialVWAPAndSumsTrades(t *testing.T) {
	t.Parallel()

	a := daily(2, 1, 2, 1, 2, 10, 1.5)
	b := daily(3, 2, 3, 2, 3, 10, 2.5)
	b.VWAP = nil
	n := int64(7)
	b.TradeCount = &n

	out := ResampleBars([]models.MOHLCV{a, b}, models.TimeFrame1Month)

	require.Len(t, out, 1)
	require.Nil(t, out[0].VWAP)
	require.NotNil(t, out[0].TradeCount)
	require.Equal(t, int64(7), *out[0].TradeCount)
	require.Empty(t, ResampleBars(nil, models.TimeFrame1Month))
}

func TestSourceTimeFrames(t *testing.T) {
	t.Parallel()

	require.Equal(t, []models.TimeFrame{models.TimeFrame1Day}, SourceTimeFrames(models.TimeFrame1Week))
	require.Equal(t, models.TimeFrame30Min, SourceTimeFrames(models.TimeFrame1Hour)[0])
	require.Empty(t, SourceTimeFrames(models.TimeFrame1Day))
	require.Empty(t, SourceTimeFrames(models.TimeFrame1Min))
}
