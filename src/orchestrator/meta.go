package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/router"
)

// SearchSymbols asks the global router; results are cached as metadata.
func (o *Orchestrator) SearchSymbols(ctx context.Context, query string, mt models.MarketType) (results []models.MSymbolSearchResult, err error) {
	start := o.now()
	defer func() { o.observe("search_symbols", start, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidRequest)
	}

	key := "search:" + strings.ToLower(query) + ":" + string(mt)
	if o.Cache.GetMeta(ctx, key, &results) {
		return results, nil
	}

	v, shared, err := o.shared(ctx, key, func(ctx context.Context) (any, error) {
		found, err := o.Routers.Global.SearchSymbols(ctx, query, mt)
		if err != nil {
			return nil, err
		}
		o.Cache.SetMeta(ctx, key, found)
		return found, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		return slices.Clone(v.([]models.MSymbolSearchResult)), nil
	}
	return v.([]models.MSymbolSearchResult), nil
}

// -----------------------------------------------------------------------------

func (o *Orchestrator) GetCompanyInfo(ctx context.Context, symbol string, mt models.MarketType) (info models.MCompanyInfo, err error) {
	start := o.now()
	defer func() { o.observe("get_company_info", start, err) }()

	symbol = normalizer.CleanSymbol(symbol)
	if symbol == "" {
		return models.MCompanyInfo{}, fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	}

	key := "info:" + symbol
	if o.Cache.GetMeta(ctx, key, &info) {
		return info, nil
	}

	v, _, err := o.shared(ctx, key, func(ctx context.Context) (any, error) {
		r, resolved := o.Routers.Select(symbol, mt, router.CapCompanyInfo)
		info, err := r.GetCompanyInfo(ctx, symbol, resolved)
		if err != nil {
			return nil, err
		}
		if info.UpdatedAt.IsZero() {
			info.UpdatedAt = o.now().UTC()
		}
		o.Cache.SetMeta(ctx, key, info)
		return info, nil
	})
	if err != nil {
		return models.MCompanyInfo{}, err
	}
	return v.(models.MCompanyInfo), nil
}

// -----------------------------------------------------------------------------

// InvalidateSymbol drops cached data of symbol, only one timeframe when tf is
// set. Returns the number of keys removed.
func (o *Orchestrator) InvalidateSymbol(ctx context.Context, symbol string, tf models.TimeFrame) int64 {
	symbol = normalizer.CleanSymbol(symbol)
	if symbol == "" {
		return 0
	}
	n := o.Cache.InvalidateSymbol(ctx, symbol, tf)
	o.Logger.Info("Invalidated %d cache keys of %s.", n, symbol)
	return n
}

// -----------------------------------------------------------------------------

// GetStatus aggregates router, cache, budget, rate limit and market state.
func (o *Orchestrator) GetStatus(ctx context.Context) models.MStatus {
	now := o.now()

	var providers []models.MProviderSnapshot
	for _, r := range o.Routers.All() {
		providers = append(providers, r.Snapshot(now)...)
	}

	return models.MStatus{
		Timestamp:  now.UTC(),
		Providers:  providers,
		Cache:      o.Cache.Stats(ctx),
		Budgets:    o.Budget.Snapshot(now),
		RateLimits: o.Limiter.Snapshot(now),
		Markets:    o.Scheduler.Sessions(now),
		Streaming:  o.Streaming(),
	}
}
