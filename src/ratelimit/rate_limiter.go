package ratelimit

import (
	"sort"
	"sync"
	"time"

	"market-data-hub/src/logger"
	"market-data-hub/src/models"
)

// -----------------------------------------------------------------------------
// RateLimiter keeps fixed per-minute and per-UTC-day request windows per provider.
// It never blocks: the router asks Allow before dispatch and Record after.
// -----------------------------------------------------------------------------

type window struct {
	perMinute int
	perDay    int

	minuteStart time.Time
	minuteCount int
	day         time.Time
	dayCount    int
}

type RateLimiter struct {
	windows map[string]*window
	Logger  *logger.Logger
	mu      sync.Mutex
}

// -----------------------------------------------------------------------------

func NewRateLimiter(l *logger.Logger) *RateLimiter {
	return &RateLimiter{
		windows: make(map[string]*window),
		Logger:  l,
	}
}

// -----------------------------------------------------------------------------

// Register sets the limits of a provider. Zero means unlimited.
// Registering an already known provider keeps its counters.
func (rl *RateLimiter) Register(cfg models.MProviderConfig) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if w, ok := rl.windows[cfg.Name]; ok {
		w.perMinute = cfg.RequestsPerMinute
		w.perDay = cfg.RequestsPerDay
		return
	}
	rl.windows[cfg.Name] = &window{
		perMinute: cfg.RequestsPerMinute,
		perDay:    cfg.RequestsPerDay,
	}
}

// -----------------------------------------------------------------------------

func (w *window) roll(now time.Time) {
	now = now.UTC()
	minute := now.Truncate(time.Minute)
	if !minute.Equal(w.minuteStart) {
		w.minuteStart = minute
		w.minuteCount = 0
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !day.Equal(w.day) {
		w.day = day
		w.dayCount = 0
	}
}

func (w *window) allowed() bool {
	if w.perMinute > 0 && w.minuteCount >= w.perMinute {
		return false
	}
	if w.perDay > 0 && w.dayCount >= w.perDay {
		return false
	}
	return true
}

// -----------------------------------------------------------------------------

// Allow reports whether one more request fits both windows. Unknown providers are unlimited.
func (rl *RateLimiter) Allow(provider string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[provider]
	if !ok {
		return true
	}
	w.roll(now)
	return w.allowed()
}

// -----------------------------------------------------------------------------

// Record counts one dispatched request.
func (rl *RateLimiter) Record(provider string, now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[provider]
	if !ok {
		return
	}
	w.roll(now)
	w.minuteCount++
	w.dayCount++

	if !w.allowed() {
		rl.Logger.Info("Provider %s reached its request window (%d/min, %d/day).", provider, w.minuteCount, w.dayCount)
	}
}

// -----------------------------------------------------------------------------

// ResetAt returns when the exhausted window of provider reopens, zero if not exhausted.
func (rl *RateLimiter) ResetAt(provider string, now time.Time) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[provider]
	if !ok {
		return time.Time{}
	}
	w.roll(now)
	if w.perDay > 0 && w.dayCount >= w.perDay {
		return w.day.AddDate(0, 0, 1)
	}
	if w.perMinute > 0 && w.minuteCount >= w.perMinute {
		return w.minuteStart.Add(time.Minute)
	}
	return time.Time{}
}

// -----------------------------------------------------------------------------

func (rl *RateLimiter) Snapshot(now time.Time) []models.MRateLimitSnapshot {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	out := make([]models.MRateLimitSnapshot, 0, len(rl.windows))
	for name, w := range rl.windows {
		w.roll(now)
		out = append(out, models.MRateLimitSnapshot{
			Provider:          name,
			RequestsPerMinute: w.perMinute,
			RequestsPerDay:    w.perDay,
			UsedThisMinute:    w.minuteCount,
			UsedToday:         w.dayCount,
			Allowed:           w.allowed(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
