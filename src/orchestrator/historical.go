package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"market-data-hub/src/analysis"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/router"
	"market-data-hub/src/utils"
)

// WarnArchived marks bars served from the archive because no provider could.
const WarnArchived = "archived"

// WarnResampled marks archived bars rebuilt from a finer timeframe.
const WarnResampled = "resampled"

// latestBarLookback is the minimum window searched for the latest bar; it
// spans a long weekend for daily bars.
const latestBarLookback = 96 * time.Hour

// -----------------------------------------------------------------------------

// GetHistorical returns bars in [start, end] ascending by timestamp, one per
// timestamp, with validation warnings attached.
func (o *Orchestrator) GetHistorical(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType, forceRefresh bool) (bars []models.MOHLCV, err error) {
	began := o.now()
	defer func() { o.observe("get_historical", began, err) }()

	symbol = normalizer.CleanSymbol(symbol)
	if err := validateRange(symbol, start, end, tf); err != nil {
		return nil, err
	}

	if !forceRefresh {
		if cached, ok := o.Cache.GetHistorical(ctx, symbol, tf, start, end); ok {
			return cached, nil
		}
	}

	key := fmt.Sprintf("historical:%s:%s:%s:%d:%d", symbol, tf, mt, start.Unix(), end.Unix())
	v, shared, err := o.shared(ctx, key, func(ctx context.Context) (any, error) {
		bars, err := o.fetchBars(ctx, symbol, start, end, tf, mt)
		if err != nil {
			if archived := o.fromArchive(ctx, symbol, start, end, tf, err); len(archived) > 0 {
				return archived, nil
			}
			return nil, err
		}

		o.Cache.SetHistorical(ctx, symbol, tf, start, end, bars)
		o.Cache.SetLatestBar(ctx, bars[len(bars)-1])
		o.archive(bars)

		if o.Config.Orchestrator.GapDetection {
			if gaps := o.findGaps(symbol, tf, mt, bars); len(gaps) > 0 {
				o.Logger.Warning("get_historical %s %s: %d gaps, first %s -> %s (%d bars missing)",
					symbol, tf, len(gaps), gaps[0].From.Format(time.RFC3339), gaps[0].To.Format(time.RFC3339), gaps[0].Missing)
			}
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		return models.CloneBars(v.([]models.MOHLCV)), nil
	}
	return v.([]models.MOHLCV), nil
}

// -----------------------------------------------------------------------------

func validateRange(symbol string, start, end time.Time, tf models.TimeFrame) error {
	switch {
	case symbol == "":
		return fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	case tf.Duration() <= 0:
		return fmt.Errorf("%w: unknown timeframe %q", ErrInvalidRequest, tf)
	case !end.After(start):
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidRequest, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// -----------------------------------------------------------------------------

// fetchBars goes to the routed providers and normalizes the series. Index
// names are fetched under their listed symbol and relabelled.
func (o *Orchestrator) fetchBars(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType) ([]models.MOHLCV, error) {
	target := o.Routers.ResolveIndex(symbol, mt)
	r, resolved := o.Routers.Select(target, mt, router.CapHistorical)
	id := requestID()
	o.Logger.Debug("[%s] get_historical %s as %s %s %s..%s via router %s", id, symbol, target, tf,
		start.Format(time.RFC3339), end.Format(time.RFC3339), r.Name())

	raw, err := r.GetHistorical(ctx, target, start, end, tf, resolved)
	if err != nil {
		return nil, err
	}
	for i := range raw {
		raw[i].Symbol = symbol
	}
	bars := o.Normalizer.Bars(symbol, raw)
	o.Logger.Debug("[%s] get_historical %s: %d bars from %s", id, symbol, len(bars), bars[0].Provider)
	return bars, nil
}

// -----------------------------------------------------------------------------

// archive writes bars behind the response.
func (o *Orchestrator) archive(bars []models.MOHLCV) {
	if o.Archive == nil || !o.Config.Orchestrator.ArchiveHistorical || len(bars) == 0 {
		return
	}
	batch := append([]models.MOHLCV(nil), bars...)
	o.goBackground(func(ctx context.Context) {
		if err := o.Archive.SaveBars(ctx, batch); err != nil {
			o.Logger.Warning("Archiving %d bars of %s failed: %v", len(batch), batch[0].Symbol, err)
		}
	})
}

// -----------------------------------------------------------------------------

// fromArchive serves archived bars when every provider failed.
func (o *Orchestrator) fromArchive(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, cause error) []models.MOHLCV {
	if o.Archive == nil || !o.Config.Orchestrator.ArchiveFallback || ctx.Err() != nil {
		return nil
	}
	bars, err := o.Archive.LoadBars(ctx, symbol, tf, start, end)
	if err != nil {
		o.Logger.Warning("Archive fallback for %s failed: %v", symbol, err)
		return nil
	}
	resampled := false
	if len(bars) == 0 {
		bars = o.resampleArchived(ctx, symbol, start, end, tf)
		resampled = len(bars) > 0
	}
	if len(bars) == 0 {
		return nil
	}

	bars = o.Normalizer.Bars(symbol, bars)
	for i := range bars {
		bars[i].Warnings = append(bars[i].Warnings, WarnArchived)
		if resampled {
			bars[i].Warnings = append(bars[i].Warnings, WarnResampled)
		}
	}
	o.Logger.Warning("get_historical %s: serving %d archived bars after: %v", symbol, len(bars), cause)
	return bars
}

// -----------------------------------------------------------------------------

// resampleArchived rebuilds tf bars from the closest finer archived timeframe.
func (o *Orchestrator) resampleArchived(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame) []models.MOHLCV {
	from := analysis.BucketStart(start, tf)
	for _, src := range analysis.SourceTimeFrames(tf) {
		fine, err := o.Archive.LoadBars(ctx, symbol, src, from, end)
		if err != nil {
			o.Logger.Warning("Archive fallback for %s %s failed: %v", symbol, src, err)
			return nil
		}
		if len(fine) > 0 {
			o.Logger.Debug("Resampling %d archived %s bars of %s to %s", len(fine), src, symbol, tf)
			return analysis.ResampleBars(fine, tf)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// GetHistoricalBatch fetches the same range for many symbols in parallel.
// Failed symbols are logged and left out.
func (o *Orchestrator) GetHistoricalBatch(ctx context.Context, symbols []string, start, end time.Time, tf models.TimeFrame, mt models.MarketType, forceRefresh bool) (map[string][]models.MOHLCV, error) {
	wanted := dedupeSymbols(symbols)
	out := make(map[string][]models.MOHLCV, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}
	if err := validateRange(wanted[0], start, end, tf); err != nil {
		return nil, err
	}

	id := requestID()
	var mu sync.Mutex
	var wg sync.WaitGroup
	omitted := 0

	for _, sym := range wanted {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			defer o.sem.Release(1)

			bars, err := o.GetHistorical(ctx, sym, start, end, tf, mt, forceRefresh)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.Logger.Warning("[%s] get_historical_batch: omitting %s: %v", id, sym, err)
				omitted++
				return
			}
			out[sym] = bars
		}(sym)
	}
	wg.Wait()

	o.Metrics.BatchOmitted("get_historical_batch", omitted)
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// GetLatestBar returns the most recent bar of symbol. The lookback covers ten
// bars or four days, whichever is longer.
func (o *Orchestrator) GetLatestBar(ctx context.Context, symbol string, tf models.TimeFrame, mt models.MarketType, forceRefresh bool) (bar models.MOHLCV, err error) {
	began := o.now()
	defer func() { o.observe("get_latest_bar", began, err) }()

	symbol = normalizer.CleanSymbol(symbol)
	end := o.now().UTC()
	start := end.Add(-max(10*tf.Duration(), latestBarLookback))
	if err := validateRange(symbol, start, end, tf); err != nil {
		return models.MOHLCV{}, err
	}

	if !forceRefresh {
		if cached, ok := o.Cache.GetLatestBar(ctx, symbol, tf); ok {
			return cached, nil
		}
	}

	v, shared, err := o.shared(ctx, "bar:"+symbol+":"+string(tf)+":"+string(mt), func(ctx context.Context) (any, error) {
		bars, err := o.fetchBars(ctx, symbol, start, end, tf, mt)
		if err != nil {
			return nil, err
		}
		latest := bars[len(bars)-1]
		o.Cache.SetLatestBar(ctx, latest)
		return latest, nil
	})
	if err != nil {
		return models.MOHLCV{}, err
	}
	if shared {
		return v.(models.MOHLCV).Clone(), nil
	}
	return v.(models.MOHLCV), nil
}

// -----------------------------------------------------------------------------
// Gap detection
// -----------------------------------------------------------------------------

// maxIntradaySteps bounds the per-gap minute walk.
const maxIntradaySteps = 50_000

// DetectGaps fetches the range and reports where bars are missing.
func (o *Orchestrator) DetectGaps(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType) ([]models.MGap, error) {
	bars, err := o.GetHistorical(ctx, symbol, start, end, tf, mt, false)
	if err != nil {
		return nil, err
	}
	return o.findGaps(normalizer.CleanSymbol(symbol), tf, mt, bars), nil
}

// findGaps reads an index name on the calendar of its listed symbol.
func (o *Orchestrator) findGaps(symbol string, tf models.TimeFrame, mt models.MarketType, bars []models.MOHLCV) []models.MGap {
	gaps := FindGaps(o.Routers.ResolveIndex(symbol, mt), tf, bars)
	for i := range gaps {
		gaps[i].Symbol = symbol
	}
	return gaps
}

// -----------------------------------------------------------------------------

// FindGaps reports stretches of trading time without bars between
// consecutive bars, using the exchange calendar of the symbol. Bars must be
// ascending.
func FindGaps(symbol string, tf models.TimeFrame, bars []models.MOHLCV) []models.MGap {
	step := tf.Duration()
	if step <= 0 || len(bars) < 2 {
		return nil
	}
	cal := utils.GetCalendar(symbol)

	var gaps []models.MGap
	for i := 1; i < len(bars); i++ {
		from, to := bars[i-1].Timestamp, bars[i].Timestamp
		if to.Sub(from) <= step {
			continue
		}

		missing := 0
		switch {
		case tf.IsIntraday():
			n := 0
			for t := from.Add(step); t.Before(to) && n < maxIntradaySteps; t = t.Add(step) {
				if cal.IsOpenOnMinute(t) {
					missing++
				}
				n++
			}
		case tf == models.TimeFrame1Day:
			missing = cal.TradingDaysBetween(sessionDay(from, cal.Timezone), sessionDay(to, cal.Timezone))
		default:
			// weeks and months: count whole periods skipped
			missing = int((to.Sub(from)+step/2)/step) - 1
		}

		if missing > 0 {
			gaps = append(gaps, models.MGap{
				Symbol:    symbol,
				TimeFrame: tf,
				From:      from,
				To:        to,
				Missing:   missing,
			})
		}
	}
	return gaps
}

// -----------------------------------------------------------------------------

// sessionDay pins a daily bar to noon of its trading date. Midnight UTC stamps
// carry the date itself, others are read in the exchange's zone.
func sessionDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := t.UTC()
	if d.Hour() != 0 || d.Minute() != 0 || d.Second() != 0 {
		d = t.In(loc)
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, 12, 0, 0, 0, loc)
}
