package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ITarget is one router as seen by the monitor.
type ITarget interface {
	Name() string
	ProbeUnhealthy(ctx context.Context) []string
	Sweep(now time.Time) int
	Snapshot(now time.Time) []models.MProviderSnapshot
}

// IStatusSink receives serving status per provider; *grpc/health.Server satisfies it.
type IStatusSink interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// Report summarises one check cycle.
type Report struct {
	Recovered map[string][]string // router -> providers whose circuit closed
	Cleared   int                 // expired rate limits cleared
	Available map[string]bool     // provider -> available on at least one router
}

// ServiceName is the health service name reported for a provider.
func ServiceName(provider string) string {
	return "provider/" + provider
}

// -----------------------------------------------------------------------------

// Monitor periodically re-probes open circuits and sweeps expired rate limits
// on every registered router.
type Monitor struct {
	Targets  map[string]ITarget
	Interval time.Duration
	Sink     IStatusSink
	Logger   *logger.Logger
	Clock    func() time.Time

	mu         sync.RWMutex
	ctx        context.Context
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// -----------------------------------------------------------------------------

func NewMonitor(interval time.Duration, sink IStatusSink, log *logger.Logger, targets ...ITarget) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = logger.NewLogger(nil, "HealthMonitor")
	}
	m := &Monitor{
		Targets:  make(map[string]ITarget),
		Interval: interval,
		Sink:     sink,
		Logger:   log,
		Clock:    time.Now,
	}
	for _, t := range targets {
		m.Targets[t.Name()] = t
	}
	return m
}

// -----------------------------------------------------------------------------

func (m *Monitor) AddTarget(t ITarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Targets[t.Name()]; exists {
		return fmt.Errorf("router %s already monitored", t.Name())
	}
	m.Targets[t.Name()] = t
	m.Logger.Info("Monitoring router %s", t.Name())
	return nil
}

// -----------------------------------------------------------------------------

func (m *Monitor) RemoveTarget(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Targets[name]; !exists {
		return fmt.Errorf("router %s not monitored", name)
	}
	delete(m.Targets, name)
	return nil
}

// -----------------------------------------------------------------------------

func (m *Monitor) targets() []ITarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]ITarget, 0, len(m.Targets))
	for _, t := range m.Targets {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// -----------------------------------------------------------------------------

// Start runs the check loop until Stop or parentCtx is done.
func (m *Monitor) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("health monitor is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.done = make(chan struct{})

	wg.Add(1)
	go func(done chan struct{}) {
		defer wg.Done()
		defer close(done)
		m.loop(ctx)
	}(m.done)

	m.Logger.Info("Health monitor started (every %v).", m.Interval)
	return nil
}

// -----------------------------------------------------------------------------

func (m *Monitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// Stop cancels the loop and waits for the running check to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		return
	}
	m.cancelFunc()
	done := m.done
	m.ctx, m.cancelFunc, m.done = nil, nil, nil
	m.mu.Unlock()

	<-done
	m.Logger.Info("Health monitor stopped.")
}

// -----------------------------------------------------------------------------

func (m *Monitor) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ctx != nil
}

// -----------------------------------------------------------------------------

// CheckNow runs one cycle: probe open circuits, sweep expired rate limits,
// then publish serving status per provider.
func (m *Monitor) CheckNow(ctx context.Context) Report {
	report := Report{
		Recovered: make(map[string][]string),
		Available: make(map[string]bool),
	}

	for _, t := range m.targets() {
		if ctx.Err() != nil {
			return report
		}
		if recovered := t.ProbeUnhealthy(ctx); len(recovered) > 0 {
			report.Recovered[t.Name()] = recovered
			m.Logger.Info("Router %s: recovered %v", t.Name(), recovered)
		}

		now := m.Clock()
		report.Cleared += t.Sweep(now)

		for _, snap := range t.Snapshot(now) {
			report.Available[snap.Provider] = report.Available[snap.Provider] || snap.Available
		}
	}

	m.publish(report.Available)
	return report
}

// -----------------------------------------------------------------------------

func (m *Monitor) publish(available map[string]bool) {
	if m.Sink == nil {
		return
	}

	anyServing := false
	for provider, ok := range available {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if ok {
			status = healthpb.HealthCheckResponse_SERVING
			anyServing = true
		} else {
			m.Logger.Warning("Provider %s unavailable on every router.", provider)
		}
		m.Sink.SetServingStatus(ServiceName(provider), status)
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if anyServing {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	m.Sink.SetServingStatus("", overall)
}
