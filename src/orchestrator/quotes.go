package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/router"
)

// GetQuote serves a quote from cache, else from the routed providers with
// failover. Concurrent misses for the same symbol share one vendor call.
func (o *Orchestrator) GetQuote(ctx context.Context, symbol string, mt models.MarketType, forceRefresh bool) (q models.MQuote, err error) {
	start := o.now()
	defer func() { o.observe("get_quote", start, err) }()

	symbol = normalizer.CleanSymbol(symbol)
	if symbol == "" {
		return models.MQuote{}, fmt.Errorf("%w: empty symbol", ErrInvalidRequest)
	}

	if !forceRefresh {
		if cached, ok := o.Cache.GetQuote(ctx, symbol); ok {
			return cached, nil
		}
	}
	return o.fetchQuote(ctx, symbol, mt)
}

// -----------------------------------------------------------------------------

// fetchQuote resolves index names to their listed symbol before routing; the
// quote comes back under the caller's spelling.
func (o *Orchestrator) fetchQuote(ctx context.Context, symbol string, mt models.MarketType) (models.MQuote, error) {
	v, shared, err := o.shared(ctx, "quote:"+symbol+":"+string(mt), func(ctx context.Context) (any, error) {
		target := o.Routers.ResolveIndex(symbol, mt)
		r, resolved := o.Routers.Select(target, mt, router.CapQuote)
		id := requestID()
		o.Logger.Debug("[%s] get_quote %s as %s (%s) via router %s", id, symbol, target, resolved, r.Name())

		q, err := r.GetQuote(ctx, target, resolved)
		if err != nil {
			return nil, err
		}
		q.Symbol = symbol
		q = o.Normalizer.Quote(q)
		o.Cache.SetQuote(ctx, q)
		o.Logger.Debug("[%s] get_quote %s served by %s", id, symbol, q.Provider)
		return q, nil
	})
	if err != nil {
		return models.MQuote{}, err
	}
	q := v.(models.MQuote)
	if shared {
		o.Logger.Debug("get_quote %s: coalesced with an in-flight request", symbol)
		q = q.Clone()
	}
	return q, nil
}

// -----------------------------------------------------------------------------

type batchKey struct {
	r  *router.Router
	mt models.MarketType
}

// GetQuotes never fails because of individual symbols: cache hits first,
// then one batch call per router and market type, then single-symbol calls
// in parallel for what is still missing. Symbols nobody could serve are
// logged and left out.
func (o *Orchestrator) GetQuotes(ctx context.Context, symbols []string, mt models.MarketType, forceRefresh bool) (out map[string]models.MQuote, err error) {
	start := o.now()
	defer func() { o.observe("get_quotes", start, err) }()

	wanted := dedupeSymbols(symbols)
	out = make(map[string]models.MQuote, len(wanted))
	if len(wanted) == 0 {
		return out, nil
	}

	if !forceRefresh {
		for sym, q := range o.Cache.GetQuotes(ctx, wanted) {
			out[sym] = q
		}
	}

	// batches ask for listed symbols; callers get their own spelling back
	targetOf := make(map[string]string)
	groups := make(map[batchKey][]string)
	var order []batchKey
	for _, sym := range wanted {
		if _, ok := out[sym]; ok {
			continue
		}
		targetOf[sym] = o.Routers.ResolveIndex(sym, mt)
		r, resolved := o.Routers.Select(targetOf[sym], mt, router.CapQuote)
		k := batchKey{r: r, mt: resolved}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], sym)
	}

	id := requestID()
	var fresh []models.MQuote
	var singles []batchKey
	singleSymbols := make(map[batchKey][]string)

	for _, k := range order {
		syms := groups[k]
		if len(syms) == 1 || !k.r.HasCapable(router.Requirement{MarketType: k.mt, Capability: router.CapBatchQuote}) {
			singles = append(singles, k)
			singleSymbols[k] = syms
			continue
		}

		// two spellings of one index share a vendor symbol; the second goes single
		var targets, rest []string
		callerOf := make(map[string]string, len(syms))
		for _, sym := range syms {
			if _, dup := callerOf[targetOf[sym]]; dup {
				rest = append(rest, sym)
				continue
			}
			callerOf[targetOf[sym]] = sym
			targets = append(targets, targetOf[sym])
		}

		got, err := k.r.GetQuotes(ctx, targets, k.mt)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			o.Logger.Warning("[%s] get_quotes: batch of %d on router %s failed, falling back to single calls: %v", id, len(targets), k.r.Name(), err)
		}
		for _, target := range targets {
			sym := callerOf[target]
			q, ok := got[target]
			if !ok {
				rest = append(rest, sym)
				continue
			}
			q.Symbol = sym
			q = o.Normalizer.Quote(q)
			out[sym] = q
			fresh = append(fresh, q)
		}
		if len(rest) > 0 {
			singles = append(singles, k)
			singleSymbols[k] = rest
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	var omitted []string

fanOut:
	for _, k := range singles {
		for _, sym := range singleSymbols[k] {
			if err := o.sem.Acquire(ctx, 1); err != nil {
				break fanOut
			}
			wg.Add(1)
			go func(sym string, mt models.MarketType) {
				defer wg.Done()
				defer o.sem.Release(1)

				q, err := o.fetchQuote(ctx, sym, mt)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					o.Logger.Warning("[%s] get_quotes: omitting %s: %v", id, sym, err)
					omitted = append(omitted, sym)
					return
				}
				out[sym] = q
			}(sym, k.mt)
		}
	}
	wg.Wait()

	if len(fresh) > 0 {
		o.Cache.SetQuotes(ctx, fresh)
	}
	if len(omitted) > 0 {
		o.Metrics.BatchOmitted("get_quotes", len(omitted))
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------

// StreamQuotes relays normalized quotes from one streaming provider until ctx
// is done or the orchestrator closes. Every quote refreshes the cache and is
// broadcast to the exchanger when one is attached.
func (o *Orchestrator) StreamQuotes(ctx context.Context, symbols []string, mt models.MarketType) (<-chan models.MQuote, error) {
	wanted := dedupeSymbols(symbols)
	if len(wanted) == 0 {
		return nil, fmt.Errorf("%w: no symbols to stream", ErrInvalidRequest)
	}

	r := o.streamRouter(wanted, mt)

	streamCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.lifetime(), cancel)

	in, provider, err := r.OpenStream(streamCtx, wanted, mt)
	if err != nil {
		stop()
		cancel()
		return nil, err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		stop()
		cancel()
		return nil, fmt.Errorf("orchestrator closed")
	}
	o.streams++
	o.wg.Add(1)
	o.mu.Unlock()

	o.Logger.Info("Streaming %s from %s.", strings.Join(wanted, ","), provider)

	out := make(chan models.MQuote, 256)
	go func() {
		defer o.wg.Done()
		defer close(out)
		defer stop()
		defer cancel()
		defer func() {
			o.mu.Lock()
			o.streams--
			o.mu.Unlock()
			o.Logger.Info("Stream from %s ended.", provider)
		}()

		for q := range in {
			q = o.Normalizer.Quote(q)
			o.Cache.SetQuote(streamCtx, q)
			if o.Exchanger != nil {
				o.Exchanger.Broadcast(q)
			}
			select {
			case out <- q:
			case <-streamCtx.Done():
				return
			}
		}
	}()
	return out, nil
}

// -----------------------------------------------------------------------------

// streamRouter prefers the regional router when every symbol routes there.
func (o *Orchestrator) streamRouter(symbols []string, mt models.MarketType) *router.Router {
	var chosen *router.Router
	for _, sym := range symbols {
		r, _ := o.Routers.Select(sym, mt, router.CapStreaming)
		if chosen != nil && r != chosen {
			return o.Routers.Global
		}
		chosen = r
	}
	return chosen
}

// -----------------------------------------------------------------------------

// startBroadcastStream keeps the configured symbols flowing to the exchanger.
// The stream is reopened with a pause when the provider drops it.
func (o *Orchestrator) startBroadcastStream(symbols []string) {
	o.goBackgroundLoop(func(ctx context.Context) {
		for ctx.Err() == nil {
			ch, err := o.StreamQuotes(ctx, symbols, "")
			if err != nil {
				o.Logger.Warning("Broadcast stream unavailable: %v", err)
			} else {
				for range ch {
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(30 * time.Second):
			}
		}
	})
}

// -----------------------------------------------------------------------------

// goBackgroundLoop runs fn for the orchestrator's lifetime, tracked by Close.
func (o *Orchestrator) goBackgroundLoop(fn func(ctx context.Context)) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		fn(o.lifetime())
	}()
}

// -----------------------------------------------------------------------------

// Streaming reports whether at least one stream is open.
func (o *Orchestrator) Streaming() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams > 0
}

// -----------------------------------------------------------------------------

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = normalizer.CleanSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
