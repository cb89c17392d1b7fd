package router

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"
	"market-data-hub/src/ratelimit"
	"market-data-hub/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Capabilities a request can require from a provider
// -----------------------------------------------------------------------------

type Capability int

const (
	CapQuote Capability = iota
	CapBatchQuote
	CapHistorical
	CapSearch
	CapCompanyInfo
	CapStreaming
)

// Requirement describes one logical request for selection.
type Requirement struct {
	Operation  string
	Symbol     string // canonical; empty for symbol-less calls
	MarketType models.MarketType
	Capability Capability
}

// Attempt is handed to the vendor call: the chosen provider and the symbol spelled its way.
type Attempt struct {
	Provider interfaces.IProvider
	Config   models.MProviderConfig
	Symbol   string
}

// SymbolFormatter translates canonical symbols to a vendor's spelling and back.
type SymbolFormatter interface {
	ToProvider(canonical string, cfg models.MProviderConfig) string
	FromProvider(providerSymbol string, cfg models.MProviderConfig) string
}

// Deps are the collaborators of a router. Only Logger is required.
type Deps struct {
	Limiter   *ratelimit.RateLimiter
	Budget    *ratelimit.BudgetTracker
	Formatter SymbolFormatter
	Events    interfaces.IEventPublisher
	Metrics   *metrics.Metrics
	Logger    *logger.Logger

	// Clock, Sleep and Rand default to the real ones.
	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  *rand.Rand
}

// -----------------------------------------------------------------------------

// Router selects providers for requests and fails over between them.
type Router struct {
	name     string
	cfg      models.MRouterConfig
	statuses []*ProviderStatus
	byName   map[string]*ProviderStatus
	rrIndex  int

	limiter   *ratelimit.RateLimiter
	budget    *ratelimit.BudgetTracker
	formatter SymbolFormatter
	events    interfaces.IEventPublisher
	metrics   *metrics.Metrics
	Logger    *logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand

	mu sync.Mutex
}

// -----------------------------------------------------------------------------

func New(name string, cfg models.MRouterConfig, deps Deps) *Router {
	if cfg.Strategy == "" {
		cfg.Strategy = models.StrategyPriority
	}
	if cfg.LatencyWindow <= 0 {
		cfg.LatencyWindow = utils.DefaultLatencyWindow
	}
	if cfg.DefaultRetryAfterSec <= 0 {
		cfg.DefaultRetryAfterSec = int(utils.DefaultRetryAfter / time.Second)
	}

	r := &Router{
		name:      name,
		cfg:       cfg,
		byName:    make(map[string]*ProviderStatus),
		limiter:   deps.Limiter,
		budget:    deps.Budget,
		formatter: deps.Formatter,
		events:    deps.Events,
		metrics:   deps.Metrics,
		Logger:    deps.Logger,
		now:       deps.Clock,
		sleep:     deps.Sleep,
		rng:       deps.Rand,
	}
	if r.Logger == nil {
		r.Logger = logger.NewLogger(nil, "Router."+name)
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.sleep == nil {
		r.sleep = helpers.SleepContext
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	return r
}

// -----------------------------------------------------------------------------

func (r *Router) Name() string {
	return r.name
}

func (r *Router) Config() models.MRouterConfig {
	return r.cfg
}

// -----------------------------------------------------------------------------

// Register wraps p in a fresh ProviderStatus owned by this router.
func (r *Router) Register(p interfaces.IProvider) error {
	st := newProviderStatus(p, r.cfg.LatencyWindow)
	if st.Config.Name == "" {
		st.Config.Name = p.Name()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[st.Config.Name]; ok {
		return helpers.NewConfigurationError(fmt.Sprintf("provider %s already registered on router %s", st.Config.Name, r.name), nil)
	}
	r.statuses = append(r.statuses, st)
	r.byName[st.Config.Name] = st

	if r.limiter != nil {
		r.limiter.Register(st.Config)
	}
	if r.budget != nil {
		r.budget.Register(st.Config)
	}
	r.metrics.SetProviderState(r.name, st.Config.Name, int(StateHealthy))
	r.Logger.Info("Registered provider %s (priority %d).", st.Config.Name, st.Config.Priority)
	return nil
}

// -----------------------------------------------------------------------------

// Providers returns the registered adapters in registration order.
func (r *Router) Providers() []interfaces.IProvider {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]interfaces.IProvider, len(r.statuses))
	for i, st := range r.statuses {
		out[i] = st.Provider
	}
	return out
}

// -----------------------------------------------------------------------------

// Formatter returns the symbol formatter, nil when symbols pass through unchanged.
func (r *Router) Formatter() SymbolFormatter {
	return r.formatter
}

// -----------------------------------------------------------------------------

// ToProvider spells a canonical symbol for cfg.
func (r *Router) ToProvider(canonical string, cfg models.MProviderConfig) string {
	if r.formatter == nil || canonical == "" {
		return canonical
	}
	return r.formatter.ToProvider(canonical, cfg)
}

// -----------------------------------------------------------------------------

// FromProvider restores the canonical spelling of a vendor symbol.
func (r *Router) FromProvider(providerSymbol string, cfg models.MProviderConfig) string {
	if r.formatter == nil || providerSymbol == "" {
		return providerSymbol
	}
	return r.formatter.FromProvider(providerSymbol, cfg)
}

// -----------------------------------------------------------------------------

func supports(st *ProviderStatus, req Requirement) bool {
	cfg := st.Config
	if !cfg.SupportsMarket(req.MarketType) {
		return false
	}
	switch req.Capability {
	case CapQuote:
		return cfg.SupportsData(models.DataQuote)
	case CapBatchQuote:
		return cfg.SupportsBatch && cfg.SupportsData(models.DataQuote)
	case CapHistorical:
		return cfg.SupportsHistorical && cfg.SupportsData(models.DataOHLCV)
	case CapSearch:
		_, ok := st.Provider.(interfaces.ISymbolSearcher)
		return ok
	case CapCompanyInfo:
		_, ok := st.Provider.(interfaces.ICompanyInfoProvider)
		return ok
	case CapStreaming:
		_, ok := st.Provider.(interfaces.IStreamingProvider)
		return ok && cfg.SupportsWebsocket
	}
	return false
}

// -----------------------------------------------------------------------------

// available is the selection filter without the capability check. Caller holds mu.
func (r *Router) available(st *ProviderStatus, now time.Time) bool {
	if !IsAvailable(st, now) {
		return false
	}
	if r.limiter != nil && !r.limiter.Allow(st.Config.Name, now) {
		return false
	}
	if r.budget != nil && !r.budget.CanSpend(st.Config.Name, now) {
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// Candidates returns the providers eligible for req right now, in strategy order.
func (r *Router) Candidates(req Requirement) []interfaces.IProvider {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var eligible []*ProviderStatus
	for _, st := range r.statuses {
		if supports(st, req) && r.available(st, now) {
			eligible = append(eligible, st)
		}
	}
	ordered := r.order(eligible, r.rrIndex)
	out := make([]interfaces.IProvider, len(ordered))
	for i, st := range ordered {
		out[i] = st.Provider
	}
	return out
}

// -----------------------------------------------------------------------------

// HasCapable reports whether any registered provider could serve req, available or not.
func (r *Router) HasCapable(req Requirement) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range r.statuses {
		if supports(st, req) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------

// selectNext picks the best untried candidate and reports how many providers
// were capable at all.
func (r *Router) selectNext(req Requirement, tried map[string]bool, offset int) (*ProviderStatus, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	capable := 0
	var eligible []*ProviderStatus
	for _, st := range r.statuses {
		if !supports(st, req) {
			continue
		}
		capable++
		if tried[st.Config.Name] || !r.available(st, now) {
			continue
		}
		eligible = append(eligible, st)
	}
	if len(eligible) == 0 {
		return nil, capable
	}
	return r.order(eligible, offset)[0], capable
}

// -----------------------------------------------------------------------------

func (r *Router) nextRoundRobin() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	offset := r.rrIndex
	if r.cfg.Strategy == models.StrategyRoundRobin {
		r.rrIndex++
	}
	return offset
}

// -----------------------------------------------------------------------------

func (r *Router) cost(st *ProviderStatus) decimal.Decimal {
	if r.budget != nil {
		return r.budget.Cost(st.Config.Name)
	}
	return decimal.NewFromFloat(st.Config.CostPerRequest)
}

// -----------------------------------------------------------------------------
// Failover loop
// -----------------------------------------------------------------------------

// Do runs call against providers selected for req until one succeeds.
// It returns the value and the name of the provider that produced it.
func Do[T any](ctx context.Context, r *Router, req Requirement, call func(ctx context.Context, a Attempt) (T, error)) (T, string, error) {
	var zero T

	maxAttempts := r.cfg.MaxRetries + 1
	retryDelay := time.Duration(r.cfg.RetryDelayMs) * time.Millisecond
	offset := r.nextRoundRobin()

	tried := make(map[string]bool)
	var attempted []string
	var lastErr error
	notAvailable, rateLimited, capable := 0, 0, 0

	for len(attempted) < maxAttempts {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		st, n := r.selectNext(req, tried, offset)
		capable = n
		if st == nil {
			break
		}

		name := st.Config.Name
		tried[name] = true
		attempted = append(attempted, name)

		attempt := Attempt{Provider: st.Provider, Config: st.Config, Symbol: r.ToProvider(req.Symbol, st.Config)}
		if attempt.Symbol != req.Symbol {
			r.Logger.Debug("%s %s: dispatching to %s as %s", req.Operation, req.Symbol, name, attempt.Symbol)
		}

		now := r.now()
		if r.limiter != nil {
			r.limiter.Record(name, now)
		}
		if r.budget != nil {
			r.budget.Record(name, now)
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if st.Config.TimeoutSeconds > 0 {
			callCtx, cancel = context.WithTimeout(ctx, time.Duration(st.Config.TimeoutSeconds)*time.Second)
		}
		start := time.Now()
		v, err := call(callCtx, attempt)
		elapsed := time.Since(start)
		cancel()

		if err == nil {
			r.onSuccess(st, req.Operation, elapsed)
			return v, name, nil
		}

		// the caller gave up: not the provider's fault
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, "", ctxErr
		}

		err = helpers.TagProvider(err, name)
		lastErr = err

		var authErr *helpers.AuthenticationError
		var rlErr *helpers.RateLimitError
		var naErr *helpers.DataNotAvailableError

		switch {
		case errors.As(err, &authErr):
			r.Logger.Error("%s %s: %s rejected credentials: %v", req.Operation, req.Symbol, name, err)
			r.onFailure(ctx, st, req.Operation, "auth_failed", err)
			r.emit(ctx, models.MProviderEvent{Type: models.EventAuthFailed, Provider: name, Message: err.Error()})

		case errors.As(err, &rlErr):
			rateLimited++
			r.onRateLimited(ctx, st, req.Operation, rlErr.RetryAfter, err)

		case errors.As(err, &naErr):
			notAvailable++
			r.Logger.Debug("%s %s: no data on %s, trying next provider.", req.Operation, req.Symbol, name)
			r.metrics.ObserveProviderCall(r.name, name, req.Operation, "not_available", elapsed)

		default:
			r.Logger.Warning("%s %s: %s failed: %v", req.Operation, req.Symbol, name, err)
			r.onFailure(ctx, st, req.Operation, "error", err)
			if len(attempted) < maxAttempts {
				if next, _ := r.selectNext(req, tried, offset); next != nil {
					if err := r.sleep(ctx, retryDelay); err != nil {
						return zero, "", err
					}
				}
			}
		}
	}

	failure := &helpers.NoProviderError{
		Operation: req.Operation,
		Symbol:    req.Symbol,
		Attempted: attempted,
		Last:      lastErr,
	}
	switch {
	case len(attempted) == 0 && capable == 0:
		failure.Kind = helpers.NoProviderExhausted
	case len(attempted) == 0:
		failure.Kind = helpers.NoProviderDegraded
	case notAvailable == len(attempted):
		failure.Kind = helpers.NoProviderSymbolNotFound
	case rateLimited == len(attempted):
		failure.Kind = helpers.NoProviderDegraded
	default:
		failure.Kind = helpers.NoProviderExhausted
	}
	r.Logger.Warning("%v", failure)
	return zero, "", failure
}

// -----------------------------------------------------------------------------
// State transitions
// -----------------------------------------------------------------------------

func (r *Router) onSuccess(st *ProviderStatus, operation string, latency time.Duration) {
	r.mu.Lock()
	st.recordSuccess(latency, r.now())
	r.mu.Unlock()

	r.metrics.ObserveProviderCall(r.name, st.Config.Name, operation, "success", latency)
}

// -----------------------------------------------------------------------------

func (r *Router) onFailure(ctx context.Context, st *ProviderStatus, operation, outcome string, err error) {
	r.mu.Lock()
	opened := st.recordFailure(err, r.now(), r.cfg.CircuitBreakerThreshold)
	consecutive := st.ConsecutiveErrors
	r.mu.Unlock()

	r.metrics.ObserveProviderCall(r.name, st.Config.Name, operation, outcome, 0)
	if opened {
		r.Logger.Warning("Circuit opened for %s after %d consecutive errors.", st.Config.Name, consecutive)
		r.metrics.SetProviderState(r.name, st.Config.Name, int(StateCircuitOpen))
		r.emit(ctx, models.MProviderEvent{Type: models.EventCircuitOpened, Provider: st.Config.Name, Message: err.Error()})
	}
}

// -----------------------------------------------------------------------------

func (r *Router) onRateLimited(ctx context.Context, st *ProviderStatus, operation string, retryAfter time.Duration, err error) {
	if retryAfter <= 0 {
		retryAfter = time.Duration(r.cfg.DefaultRetryAfterSec) * time.Second
	}

	r.mu.Lock()
	now := r.now()
	until := now.Add(retryAfter)
	st.markRateLimited(until, err, now)
	state := st.State
	r.mu.Unlock()

	r.Logger.Info("Provider %s rate limited until %s.", st.Config.Name, until.UTC().Format(time.RFC3339))
	r.metrics.ObserveProviderCall(r.name, st.Config.Name, operation, "rate_limited", 0)
	r.metrics.SetProviderState(r.name, st.Config.Name, int(state))
	r.emit(ctx, models.MProviderEvent{Type: models.EventRateLimited, Provider: st.Config.Name, Until: until, Message: err.Error()})
}

// -----------------------------------------------------------------------------

func (r *Router) emit(ctx context.Context, evt models.MProviderEvent) {
	r.metrics.ProviderEvent(evt.Provider, string(evt.Type))
	if r.events == nil {
		return
	}
	evt.ID = uuid.NewString()
	evt.Router = r.name
	evt.Timestamp = r.now().UTC()
	if err := r.events.Publish(context.WithoutCancel(ctx), evt); err != nil {
		r.Logger.Warning("Failed to publish %s event for %s: %v", evt.Type, evt.Provider, err)
	}
}

// -----------------------------------------------------------------------------
// Health monitor entry points
// -----------------------------------------------------------------------------

// ProbeUnhealthy health-checks every provider with an open circuit and closes
// the circuit on success. Returns the names of recovered providers.
func (r *Router) ProbeUnhealthy(ctx context.Context) []string {
	r.mu.Lock()
	var open []*ProviderStatus
	for _, st := range r.statuses {
		if st.State == StateCircuitOpen {
			open = append(open, st)
		}
	}
	r.mu.Unlock()

	var recovered []string
	for _, st := range open {
		if ctx.Err() != nil {
			break
		}

		probeCtx, cancel := ctx, context.CancelFunc(func() {})
		if st.Config.TimeoutSeconds > 0 {
			probeCtx, cancel = context.WithTimeout(ctx, time.Duration(st.Config.TimeoutSeconds)*time.Second)
		}
		ok := st.Provider.HealthCheck(probeCtx)
		cancel()

		if !ok {
			r.Logger.Debug("Health check still failing for %s.", st.Config.Name)
			continue
		}

		r.mu.Lock()
		st.closeCircuit(r.now())
		state := st.State
		r.mu.Unlock()

		recovered = append(recovered, st.Config.Name)
		r.Logger.Info("Circuit closed for %s (now %s).", st.Config.Name, state)
		r.metrics.SetProviderState(r.name, st.Config.Name, int(state))
		r.emit(ctx, models.MProviderEvent{Type: models.EventCircuitClosed, Provider: st.Config.Name})
	}
	return recovered
}

// -----------------------------------------------------------------------------

// Sweep clears rate limits whose reset time has passed. Returns how many were cleared.
func (r *Router) Sweep(now time.Time) int {
	r.mu.Lock()
	var cleared []string
	for _, st := range r.statuses {
		if st.sweep(now) {
			cleared = append(cleared, st.Config.Name)
		}
	}
	r.mu.Unlock()

	for _, name := range cleared {
		r.metrics.SetProviderState(r.name, name, int(StateHealthy))
		r.Logger.Debug("Rate limit expired for %s.", name)
	}
	return len(cleared)
}

// -----------------------------------------------------------------------------

// Snapshot copies the state of every provider, in registration order.
func (r *Router) Snapshot(now time.Time) []models.MProviderSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.MProviderSnapshot, len(r.statuses))
	for i, st := range r.statuses {
		out[i] = st.snapshot(r.name, now)
		if out[i].Available && !r.available(st, now) {
			out[i].Available = false
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// State returns the current state of provider name.
func (r *Router) State(name string) (ProviderState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.byName[name]
	if !ok {
		return StateHealthy, false
	}
	return st.State, true
}
