package analysis

import (
	"slices"
	"time"

	"market-data-hub/src/models"
)

// sources lists the timeframes a coarser bar can be rebuilt from, closest first.
// Daily bars are never rebuilt from intraday ones: session hours differ per venue.
var sources = map[models.TimeFrame][]models.TimeFrame{
	models.TimeFrame5Min:   {models.TimeFrame1Min},
	models.TimeFrame15Min:  {models.TimeFrame5Min, models.TimeFrame1Min},
	models.TimeFrame30Min:  {models.TimeFrame15Min, models.TimeFrame5Min, models.TimeFrame1Min},
	models.TimeFrame1Hour:  {models.TimeFrame30Min, models.TimeFrame15Min, models.TimeFrame5Min, models.TimeFrame1Min},
	models.TimeFrame1Week:  {models.TimeFrame1Day},
	models.TimeFrame1Month: {models.TimeFrame1Day},
}

// -----------------------------------------------------------------------------

// SourceTimeFrames returns the finer timeframes tf can be resampled from.
func SourceTimeFrames(tf models.TimeFrame) []models.TimeFrame {
	return sources[tf]
}

// -----------------------------------------------------------------------------

// BucketStart returns the UTC open of the tf bar containing t. Weeks start on
// Monday.
func BucketStart(t time.Time, tf models.TimeFrame) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch tf {
	case models.TimeFrame1Day:
		return day
	case models.TimeFrame1Week:
		return day.AddDate(0, 0, -((int(t.Weekday()) + 6) % 7))
	case models.TimeFrame1Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if d := tf.Duration(); d > 0 {
		return t.Truncate(d)
	}
	return t
}

// -----------------------------------------------------------------------------

// ResampleBars folds bars into tf buckets: first open, highest high, lowest
// low, last close, summed volume. VWAP is volume weighted and only kept when
// every input bar carries one. The input is not modified.
func ResampleBars(bars []models.MOHLCV, tf models.TimeFrame) []models.MOHLCV {
	if len(bars) == 0 {
		return nil
	}
	sorted := slices.Clone(bars)
	slices.SortStableFunc(sorted, func(a, b models.MOHLCV) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var out []models.MOHLCV
	var acc bucket
	for _, b := range sorted {
		start := BucketStart(b.Timestamp, tf)
		if acc.open && !acc.bar.Timestamp.Equal(start) {
			out = append(out, acc.finish())
			acc = bucket{}
		}
		if !acc.open {
			acc.start(b, start, tf)
			continue
		}
		acc.add(b)
	}
	return append(out, acc.finish())
}

// -----------------------------------------------------------------------------

type bucket struct {
	open      bool
	bar       models.MOHLCV
	vwapSum   float64
	vwapOK    bool
	trades    int64
	hasTrades bool
}

func (k *bucket) start(b models.MOHLCV, start time.Time, tf models.TimeFrame) {
	k.open = true
	k.vwapOK = true
	k.bar = models.MOHLCV{
		Symbol:    b.Symbol,
		Timestamp: start,
		Open:      b.Open,
		High:      b.High,
		Low:       b.Low,
		TimeFrame: tf,
	}
	k.add(b)
}

func (k *bucket) add(b models.MOHLCV) {
	k.bar.High = max(k.bar.High, b.High)
	k.bar.Low = min(k.bar.Low, b.Low)
	k.bar.Close = b.Close
	k.bar.Volume += b.Volume
	k.bar.Provider = b.Provider
	k.bar.AdjustedClose = b.AdjustedClose

	if b.VWAP == nil {
		k.vwapOK = false
	} else {
		k.vwapSum += *b.VWAP * b.Volume
	}
	if b.TradeCount != nil {
		k.trades += *b.TradeCount
		k.hasTrades = true
	}
}

func (k *bucket) finish() models.MOHLCV {
	out := k.bar
	if k.vwapOK && out.Volume > 0 {
		vwap := k.vwapSum / out.Volume
		out.VWAP = &vwap
	}
	if k.hasTrades {
		trades := k.trades
		out.TradeCount = &trades
	}
	return out
}
