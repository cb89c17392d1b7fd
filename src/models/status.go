package models

import "time"

// MProviderSnapshot is a read-only copy of a provider's routing state.
type MProviderSnapshot struct {
	Router            string    `json:"router"`
	Provider          string    `json:"provider"`
	State             string    `json:"state"`
	Available         bool      `json:"available"`
	Priority          int       `json:"priority"`
	ConsecutiveErrors int       `json:"consecutive_errors"`
	TotalErrors       int64     `json:"total_errors"`
	TotalSuccesses    int64     `json:"total_successes"`
	AvgLatencyMs      float64   `json:"avg_latency_ms"`
	P95LatencyMs      float64   `json:"p95_latency_ms"`
	RateLimitReset    time.Time `json:"rate_limit_reset,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	LastErrorAt       time.Time `json:"last_error_at,omitempty"`
	LastSuccessAt     time.Time `json:"last_success_at,omitempty"`
}

type MCacheStats struct {
	Backend string  `json:"backend"`
	Healthy bool    `json:"healthy"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Deletes int64   `json:"deletes"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

type MBudgetSnapshot struct {
	Provider       string `json:"provider"`
	CostPerRequest string `json:"cost_per_request"`
	DailyBudget    string `json:"daily_budget"`
	SpentToday     string `json:"spent_today"`
	Remaining      string `json:"remaining"`
	Exhausted      bool   `json:"exhausted"`
}

type MRateLimitSnapshot struct {
	Provider          string `json:"provider"`
	RequestsPerMinute int    `json:"requests_per_minute"`
	RequestsPerDay    int    `json:"requests_per_day"`
	UsedThisMinute    int    `json:"used_this_minute"`
	UsedToday         int    `json:"used_today"`
	Allowed           bool   `json:"allowed"`
}

type MMarketSession struct {
	Country  Country `json:"country"`
	Region   Region  `json:"region"`
	Exchange string  `json:"exchange"`
	Open     bool    `json:"open"`
	Fallback bool    `json:"fallback,omitempty"`
}

// MStatus aggregates router, cache, budget and market state.
type MStatus struct {
	Timestamp  time.Time            `json:"timestamp"`
	Providers  []MProviderSnapshot  `json:"providers"`
	Cache      MCacheStats          `json:"cache"`
	Budgets    []MBudgetSnapshot    `json:"budgets"`
	RateLimits []MRateLimitSnapshot `json:"rate_limits"`
	Markets    []MMarketSession     `json:"markets"`
	Streaming  bool                 `json:"streaming"`
}

// -----------------------------------------------------------------------------
// Provider events
// -----------------------------------------------------------------------------

type ProviderEventType string

const (
	EventCircuitOpened ProviderEventType = "circuit_opened"
	EventCircuitClosed ProviderEventType = "circuit_closed"
	EventRateLimited   ProviderEventType = "rate_limited"
	EventAuthFailed    ProviderEventType = "auth_failed"
)

type MProviderEvent struct {
	ID        string            `json:"id"`
	Type      ProviderEventType `json:"type"`
	Router    string            `json:"router"`
	Provider  string            `json:"provider"`
	Message   string            `json:"message,omitempty"`
	Until     time.Time         `json:"until,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
