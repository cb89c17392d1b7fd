package router

import (
	"time"

	"market-data-hub/src/interfaces"
	"market-data-hub/src/models"
	"market-data-hub/src/utils"
)

// ProviderState is the single routing state of a provider.
type ProviderState int

const (
	StateHealthy ProviderState = iota
	StateRateLimited
	StateCircuitOpen
)

func (s ProviderState) String() string {
	switch s {
	case StateRateLimited:
		return "RATE_LIMITED"
	case StateCircuitOpen:
		return "CIRCUIT_OPEN"
	default:
		return "HEALTHY"
	}
}

// -----------------------------------------------------------------------------
// ProviderStatus wraps one adapter inside one router.
// It is created at registration and only mutated under the owning router's lock.
// -----------------------------------------------------------------------------

type ProviderStatus struct {
	Provider interfaces.IProvider
	Config   models.MProviderConfig

	State          ProviderState
	RateLimitReset time.Time

	ConsecutiveErrors int
	TotalErrors       int64
	TotalSuccesses    int64
	TotalLatency      time.Duration
	Latencies         *utils.LatencyWindow

	LastError     error
	LastErrorAt   time.Time
	LastSuccessAt time.Time
}

// -----------------------------------------------------------------------------

func newProviderStatus(p interfaces.IProvider, window int) *ProviderStatus {
	return &ProviderStatus{
		Provider:  p,
		Config:    p.Config(),
		State:     StateHealthy,
		Latencies: utils.NewLatencyWindow(window),
	}
}

// -----------------------------------------------------------------------------

// IsAvailable reports whether the provider may be selected at now.
// An elapsed rate limit counts as available; Sweep is what clears the flag.
func IsAvailable(s *ProviderStatus, now time.Time) bool {
	switch s.State {
	case StateHealthy:
		return true
	case StateRateLimited:
		return !now.Before(s.RateLimitReset)
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

func (s *ProviderStatus) recordSuccess(latency time.Duration, now time.Time) {
	s.ConsecutiveErrors = 0
	s.TotalSuccesses++
	s.TotalLatency += latency
	s.Latencies.Observe(latency)
	s.LastSuccessAt = now
}

// -----------------------------------------------------------------------------

// recordFailure counts a fault and reports whether it opened the circuit.
func (s *ProviderStatus) recordFailure(err error, now time.Time, threshold int) bool {
	s.ConsecutiveErrors++
	s.TotalErrors++
	s.LastError = err
	s.LastErrorAt = now

	if s.State != StateCircuitOpen && threshold > 0 && s.ConsecutiveErrors >= threshold {
		s.State = StateCircuitOpen
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// markRateLimited keeps an open circuit open; the reset is remembered either way.
func (s *ProviderStatus) markRateLimited(until time.Time, err error, now time.Time) {
	if until.After(s.RateLimitReset) {
		s.RateLimitReset = until
	}
	s.LastError = err
	s.LastErrorAt = now
	if s.State != StateCircuitOpen {
		s.State = StateRateLimited
	}
}

// -----------------------------------------------------------------------------

// closeCircuit runs after a successful probe.
func (s *ProviderStatus) closeCircuit(now time.Time) {
	s.ConsecutiveErrors = 0
	s.LastSuccessAt = now
	if now.Before(s.RateLimitReset) {
		s.State = StateRateLimited
		return
	}
	s.State = StateHealthy
	s.RateLimitReset = time.Time{}
}

// -----------------------------------------------------------------------------

// sweep clears an elapsed rate limit and reports whether it did.
func (s *ProviderStatus) sweep(now time.Time) bool {
	if s.State == StateRateLimited && !now.Before(s.RateLimitReset) {
		s.State = StateHealthy
		s.RateLimitReset = time.Time{}
		return true
	}
	return false
}

// -----------------------------------------------------------------------------

// AvgLatencyMs is the rolling average, zero before the first success.
func (s *ProviderStatus) AvgLatencyMs() float64 {
	return s.Latencies.AverageMs()
}

// -----------------------------------------------------------------------------

func (s *ProviderStatus) snapshot(router string, now time.Time) models.MProviderSnapshot {
	snap := models.MProviderSnapshot{
		Router:            router,
		Provider:          s.Config.Name,
		State:             s.State.String(),
		Available:         IsAvailable(s, now),
		Priority:          s.Config.Priority,
		ConsecutiveErrors: s.ConsecutiveErrors,
		TotalErrors:       s.TotalErrors,
		TotalSuccesses:    s.TotalSuccesses,
		AvgLatencyMs:      s.AvgLatencyMs(),
		P95LatencyMs:      s.Latencies.PercentileMs(0.95),
		RateLimitReset:    s.RateLimitReset,
		LastErrorAt:       s.LastErrorAt,
		LastSuccessAt:     s.LastSuccessAt,
	}
	if s.LastError != nil {
		snap.LastError = s.LastError.Error()
	}
	return snap
}
