package utils

import (
	"slices"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// LatencyWindow keeps the last N call latencies of a provider. Writes wrap
// around a fixed slice; the running sum keeps the average O(1).
// -----------------------------------------------------------------------------

type LatencyWindow struct {
	mu      sync.RWMutex
	samples []time.Duration
	next    int
	count   int
	sum     time.Duration
}

// NewLatencyWindow falls back to DefaultLatencyWindow for a non-positive size.
func NewLatencyWindow(size int) *LatencyWindow {
	if size <= 0 {
		size = DefaultLatencyWindow
	}
	return &LatencyWindow{samples: make([]time.Duration, size)}
}

// -----------------------------------------------------------------------------

// Observe records d, evicting the oldest sample once the window is full.
func (w *LatencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.count == len(w.samples) {
		w.sum -= w.samples[w.next]
	} else {
		w.count++
	}
	w.samples[w.next] = d
	w.sum += d
	w.next = (w.next + 1) % len(w.samples)
}

// -----------------------------------------------------------------------------

// AverageMs is the mean in milliseconds, 0 when empty.
func (w *LatencyWindow) AverageMs() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.count == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.count) / float64(time.Millisecond)
}

// PercentileMs returns the nearest-rank percentile q in (0, 1], 0 when empty.
func (w *LatencyWindow) PercentileMs(q float64) float64 {
	sorted := w.Samples()
	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	rank := int(q*float64(len(sorted))+0.999999) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return float64(sorted[rank]) / float64(time.Millisecond)
}

// -----------------------------------------------------------------------------

// Samples returns the window oldest first.
func (w *LatencyWindow) Samples() []time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]time.Duration, w.count)
	start := (w.next - w.count + len(w.samples)) % len(w.samples)
	for i := range out {
		out[i] = w.samples[(start+i)%len(w.samples)]
	}
	return out
}

func (w *LatencyWindow) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

func (w *LatencyWindow) Size() int {
	return len(w.samples)
}

// Reset drops every sample.
func (w *LatencyWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next, w.count, w.sum = 0, 0, 0
}
