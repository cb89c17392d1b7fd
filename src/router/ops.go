package router

import (
	"context"
	"fmt"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/models"
	"market-data-hub/src/utils"
)

// -----------------------------------------------------------------------------
// Typed operations over Do. Every result leaves with the canonical symbol.
// -----------------------------------------------------------------------------

func (r *Router) GetQuote(ctx context.Context, symbol string, mt models.MarketType) (models.MQuote, error) {
	req := Requirement{Operation: "get_quote", Symbol: symbol, MarketType: mt, Capability: CapQuote}

	q, provider, err := Do(ctx, r, req, func(ctx context.Context, a Attempt) (models.MQuote, error) {
		return a.Provider.GetQuote(ctx, a.Symbol)
	})
	if err != nil {
		return models.MQuote{}, err
	}

	q.Symbol = symbol
	if q.Provider == "" {
		q.Provider = provider
	}
	if q.MarketType == "" {
		q.MarketType = mt
	}
	return q, nil
}

// -----------------------------------------------------------------------------

// GetQuotes asks one batch-capable provider for all symbols, chunked by its
// MaxBatchSize. The result may be partial; symbols the vendor omitted are absent.
func (r *Router) GetQuotes(ctx context.Context, symbols []string, mt models.MarketType) (map[string]models.MQuote, error) {
	if len(symbols) == 0 {
		return map[string]models.MQuote{}, nil
	}
	req := Requirement{Operation: "get_quotes", Symbol: fmt.Sprintf("[%d symbols]", len(symbols)), MarketType: mt, Capability: CapBatchQuote}

	result, _, err := Do(ctx, r, req, func(ctx context.Context, a Attempt) (map[string]models.MQuote, error) {
		toCanonical := make(map[string]string, len(symbols))
		wanted := make(map[string]bool, len(symbols))
		providerSymbols := make([]string, 0, len(symbols))
		for _, s := range symbols {
			ps := r.ToProvider(s, a.Config)
			toCanonical[ps] = s
			wanted[s] = true
			providerSymbols = append(providerSymbols, ps)
		}

		size := a.Config.MaxBatchSize
		if size <= 0 {
			size = utils.DefaultMaxBatchSize
		}

		out := make(map[string]models.MQuote, len(symbols))
		for start := 0; start < len(providerSymbols); start += size {
			end := min(start+size, len(providerSymbols))

			quotes, err := a.Provider.GetQuotes(ctx, providerSymbols[start:end])
			if err != nil {
				// nothing yet: let the router fail over to another provider
				if len(out) == 0 {
					return nil, err
				}
				r.Logger.Warning("get_quotes: chunk %d-%d failed on %s, keeping %d quotes: %v", start, end, a.Config.Name, len(out), err)
				break
			}

			for _, q := range quotes {
				canonical, ok := toCanonical[q.Symbol]
				if !ok {
					canonical = r.FromProvider(q.Symbol, a.Config)
				}
				if !wanted[canonical] {
					continue
				}
				q.Symbol = canonical
				if q.Provider == "" {
					q.Provider = a.Config.Name
				}
				if q.MarketType == "" {
					q.MarketType = mt
				}
				out[canonical] = q
			}
		}
		if len(out) == 0 {
			return nil, helpers.NewDataNotAvailableError(a.Config.Name, req.Symbol)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// -----------------------------------------------------------------------------

func (r *Router) GetHistorical(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType) ([]models.MOHLCV, error) {
	req := Requirement{Operation: "get_historical", Symbol: symbol, MarketType: mt, Capability: CapHistorical}

	bars, provider, err := Do(ctx, r, req, func(ctx context.Context, a Attempt) ([]models.MOHLCV, error) {
		bars, err := a.Provider.GetHistorical(ctx, a.Symbol, start, end, tf)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return nil, helpers.NewDataNotAvailableError(a.Config.Name, symbol)
		}
		return bars, nil
	})
	if err != nil {
		return nil, err
	}

	for i := range bars {
		bars[i].Symbol = symbol
		if bars[i].TimeFrame == "" {
			bars[i].TimeFrame = tf
		}
		if bars[i].Provider == "" {
			bars[i].Provider = provider
		}
	}
	return bars, nil
}

// -----------------------------------------------------------------------------

func (r *Router) SearchSymbols(ctx context.Context, query string, mt models.MarketType) ([]models.MSymbolSearchResult, error) {
	req := Requirement{Operation: "search_symbols", Symbol: query, MarketType: mt, Capability: CapSearch}

	results, _, err := Do(ctx, r, req, func(ctx context.Context, a Attempt) ([]models.MSymbolSearchResult, error) {
		searcher := a.Provider.(interfaces.ISymbolSearcher)
		found, err := searcher.SearchSymbols(ctx, query)
		if err != nil {
			return nil, err
		}
		for i := range found {
			found[i].Symbol = r.FromProvider(found[i].Symbol, a.Config)
			if found[i].Provider == "" {
				found[i].Provider = a.Config.Name
			}
		}
		return found, nil
	})
	return results, err
}

// -----------------------------------------------------------------------------

func (r *Router) GetCompanyInfo(ctx context.Context, symbol string, mt models.MarketType) (models.MCompanyInfo, error) {
	req := Requirement{Operation: "get_company_info", Symbol: symbol, MarketType: mt, Capability: CapCompanyInfo}

	info, provider, err := Do(ctx, r, req, func(ctx context.Context, a Attempt) (models.MCompanyInfo, error) {
		return a.Provider.(interfaces.ICompanyInfoProvider).GetCompanyInfo(ctx, a.Symbol)
	})
	if err != nil {
		return models.MCompanyInfo{}, err
	}

	info.Symbol = symbol
	if info.Provider == "" {
		info.Provider = provider
	}
	return info, nil
}

// -----------------------------------------------------------------------------

// OpenStream subscribes symbols on one streaming provider and relays its quotes
// with canonical symbols until ctx is done.
func (r *Router) OpenStream(ctx context.Context, symbols []string, mt models.MarketType) (<-chan models.MQuote, string, error) {
	req := Requirement{Operation: "stream_quotes", Symbol: fmt.Sprintf("[%d symbols]", len(symbols)), MarketType: mt, Capability: CapStreaming}

	type opened struct {
		ch  <-chan models.MQuote
		cfg models.MProviderConfig
		toC map[string]string
	}

	o, provider, err := Do(ctx, r, req, func(callCtx context.Context, a Attempt) (opened, error) {
		sp := a.Provider.(interfaces.IStreamingProvider)

		toCanonical := make(map[string]string, len(symbols))
		providerSymbols := make([]string, 0, len(symbols))
		for _, s := range symbols {
			ps := r.ToProvider(s, a.Config)
			toCanonical[ps] = s
			providerSymbols = append(providerSymbols, ps)
		}

		if err := sp.Subscribe(callCtx, providerSymbols); err != nil {
			return opened{}, err
		}
		// the stream outlives the dispatch timeout, so it is bound to ctx
		ch, err := sp.StreamQuotes(ctx)
		if err != nil {
			return opened{}, err
		}
		return opened{ch: ch, cfg: a.Config, toC: toCanonical}, nil
	})
	if err != nil {
		return nil, "", err
	}

	out := make(chan models.MQuote, 256)
	go func() {
		defer close(out)
		for q := range o.ch {
			if c, ok := o.toC[q.Symbol]; ok {
				q.Symbol = c
			} else {
				q.Symbol = r.FromProvider(q.Symbol, o.cfg)
			}
			if q.Provider == "" {
				q.Provider = provider
			}
			select {
			case out <- q:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, provider, nil
}
