package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-data-hub/src/cache"
	"market-data-hub/src/health"
	"market-data-hub/src/helpers"
	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/ratelimit"
	"market-data-hub/src/regional"
	"market-data-hub/src/router"
	"market-data-hub/src/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidRequest is returned for arguments no provider could ever serve.
var ErrInvalidRequest = errors.New("invalid request")

var _ interfaces.IMarketDataService = (*Orchestrator)(nil)

// Options carries the collaborators built outside the orchestrator. Only
// Providers is required.
type Options struct {
	Providers  []interfaces.IProvider
	CacheStore interfaces.ICacheStore // nil: built from the cache config
	Archive    interfaces.IDatabase
	Events     interfaces.IEventPublisher
	Exchanger  interfaces.IDataExchanger
	Metrics    *metrics.Metrics
	HealthSink health.IStatusSink

	Clock func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// -----------------------------------------------------------------------------

// Orchestrator is the single entry point into market data: cache, routing
// with failover, normalization, archive and streaming.
type Orchestrator struct {
	Config     models.MConfig
	Logger     *logger.Logger
	Routers    *regional.Set
	Cache      *cache.Manager
	Normalizer *normalizer.Normalizer
	Mapper     *normalizer.SymbolMapper
	Monitor    *health.Monitor
	Limiter    *ratelimit.RateLimiter
	Budget     *ratelimit.BudgetTracker
	Scheduler  *utils.MarketScheduler
	Archive    interfaces.IDatabase
	Events     interfaces.IEventPublisher
	Exchanger  interfaces.IDataExchanger
	Metrics    *metrics.Metrics

	providers []interfaces.IProvider
	flight    singleflight.Group
	sem       *semaphore.Weighted
	now       func() time.Time

	mu         sync.Mutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	streams    int
	closed     bool
}

// -----------------------------------------------------------------------------

// New wires routers for the configured regions plus a global router, each
// with its own status per provider, sharing limiter, budget and formatter.
func New(cfg models.MConfig, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.NewLogger(&cfg, "Orchestrator")
	}
	if len(opts.Providers) == 0 {
		return nil, helpers.NewConfigurationError("no providers configured", nil)
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	limiter := ratelimit.NewRateLimiter(log.Named("RateLimiter"))
	budget := ratelimit.NewBudgetTracker(log.Named("Budget"))
	mapper := normalizer.NewSymbolMapper(cfg.SymbolMappings)
	formatter := regional.NewFormatter(mapper)

	deps := func(name string) router.Deps {
		return router.Deps{
			Limiter:   limiter,
			Budget:    budget,
			Formatter: formatter,
			Events:    opts.Events,
			Metrics:   opts.Metrics,
			Logger:    log.Named("Router." + name),
			Clock:     opts.Clock,
			Sleep:     opts.Sleep,
		}
	}

	global := router.New("global", cfg.Router, deps("global"))
	var regions []*regional.RegionalRouter
	for _, region := range cfg.Regions {
		regions = append(regions, regional.New(region, cfg.Router, deps(string(region))))
	}

	for _, p := range opts.Providers {
		if err := global.Register(p); err != nil {
			return nil, err
		}
		for _, rr := range regions {
			if !rr.Accepts(p) {
				continue
			}
			if err := rr.Register(p); err != nil {
				return nil, err
			}
		}
	}

	routers := regional.NewSet(global, regions...)
	scheduler := utils.NewRegionScheduler(cfg.Regions, log.Named("Markets"))

	store := opts.CacheStore
	if store == nil && cfg.Cache.Enabled {
		store = cache.NewStore(cfg.Cache, log)
	}
	cm := cache.NewManager(store, cfg.Cache, opts.Metrics, log.Named("Cache"))
	cm.MarketOpen = func(symbol string) bool {
		return scheduler.IsSymbolOpen(symbol, now())
	}

	targets := make([]health.ITarget, 0, len(routers.All()))
	for _, r := range routers.All() {
		targets = append(targets, r)
	}
	interval := time.Duration(cfg.Router.HealthCheckIntervalSec) * time.Second
	monitor := health.NewMonitor(interval, opts.HealthSink, log.Named("HealthMonitor"), targets...)

	parallel := cfg.Orchestrator.MaxParallelRequests
	if parallel <= 0 {
		parallel = utils.DefaultMaxParallelRequests
	}

	norm := normalizer.NewNormalizer(mapper, opts.Metrics, log.Named("Normalizer"))
	norm.Now = now

	return &Orchestrator{
		Config:     cfg,
		Logger:     log,
		Routers:    routers,
		Cache:      cm,
		Normalizer: norm,
		Mapper:     mapper,
		Monitor:    monitor,
		Limiter:    limiter,
		Budget:     budget,
		Scheduler:  scheduler,
		Archive:    opts.Archive,
		Events:     opts.Events,
		Exchanger:  opts.Exchanger,
		Metrics:    opts.Metrics,
		providers:  opts.Providers,
		sem:        semaphore.NewWeighted(int64(parallel)),
		now:        now,
	}, nil
}

// -----------------------------------------------------------------------------

// Initialize opens the archive, vendor sessions and the health loop. Provider
// failures are logged; the circuit breaker takes it from there.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	if o.ctx != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already initialized")
	}
	o.ctx, o.cancelFunc = context.WithCancel(context.Background())
	o.mu.Unlock()

	o.initArchive(ctx)

	ready := 0
	for _, p := range o.providers {
		if err := p.Initialize(ctx); err != nil {
			o.Logger.Error("Provider %s failed to initialize: %v", p.Name(), err)
			continue
		}
		ready++
	}
	if ready == 0 {
		o.cancelFunc()
		return helpers.NewConfigurationError("no provider could be initialized", nil)
	}
	o.Logger.Info("%d/%d providers initialized, %d routers.", ready, len(o.providers), len(o.Routers.All()))

	if stats := o.Cache.Stats(ctx); !stats.Healthy {
		o.Logger.Warning("Cache backend %s unreachable, serving without cache.", stats.Backend)
	}

	if err := o.Monitor.Start(o.ctx, &o.wg); err != nil {
		return err
	}
	// first cycle publishes serving status before the first tick
	o.Monitor.CheckNow(ctx)

	if o.Exchanger != nil && len(o.Config.Orchestrator.StreamSymbols) > 0 {
		o.startBroadcastStream(o.Config.Orchestrator.StreamSymbols)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (o *Orchestrator) initArchive(ctx context.Context) {
	if o.Archive == nil {
		return
	}

	err := helpers.RetryWithBackoff(ctx, o.Logger, "archive init", 3, 500*time.Millisecond, func() error {
		return o.Archive.Initialize(ctx)
	})
	if err != nil {
		o.Logger.Error("Archive unavailable, continuing without it: %v", err)
		o.Archive = nil
		return
	}

	if len(o.Config.SymbolMappings) > 0 {
		if err := o.Archive.SaveSymbolMappings(ctx, o.Config.SymbolMappings); err != nil {
			o.Logger.Warning("Saving symbol mappings failed: %v", err)
		}
	}
	stored, err := o.Archive.LoadSymbolMappings(ctx)
	if err != nil {
		o.Logger.Warning("Loading symbol mappings failed: %v", err)
	}
	for _, m := range stored {
		o.Mapper.Add(m)
	}
	o.Logger.Info("Archive ready, %d symbol mappings loaded.", len(stored))

	if resolver, ok := o.Archive.(interfaces.ISymbolResolver); ok && len(o.Config.Orchestrator.StreamSymbols) > 0 {
		symbols, err := resolver.ResolveSymbols(ctx, o.Config.Orchestrator.StreamSymbols)
		if err != nil {
			o.Logger.Warning("Resolving stream symbols failed: %v", err)
		} else {
			o.Config.Orchestrator.StreamSymbols = symbols
		}
	}

	o.goBackground(func(ctx context.Context) {
		if err := o.Archive.CleanupOldData(ctx); err != nil {
			o.Logger.Warning("Archive cleanup failed: %v", err)
		}
	})
}

// -----------------------------------------------------------------------------

// Close stops the health loop and streams, then closes adapters, cache,
// archive and the event publisher.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	cancel := o.cancelFunc
	o.mu.Unlock()

	o.Monitor.Stop()
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	var errs []error
	for _, p := range o.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	if err := o.Cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	if o.Archive != nil {
		if err := o.Archive.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close archive: %w", err))
		}
	}
	if o.Events != nil {
		if err := o.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}

	o.Logger.Info("Orchestrator closed.")
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// lifetime returns the context background work is bound to.
func (o *Orchestrator) lifetime() context.Context {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.ctx == nil {
		return context.Background()
	}
	return o.ctx
}

// goBackground runs fn tracked by Close, bounded to a minute.
func (o *Orchestrator) goBackground(fn func(ctx context.Context)) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.wg.Add(1)
	o.mu.Unlock()

	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(o.lifetime(), time.Minute)
		defer cancel()
		fn(ctx)
	}()
}

// -----------------------------------------------------------------------------

func requestID() string {
	return uuid.NewString()[:8]
}

// -----------------------------------------------------------------------------

func (o *Orchestrator) observe(operation string, start time.Time, err error) {
	o.Metrics.ObserveRequest(operation, err, o.now().Sub(start))
}
