package router

import (
	"sort"

	"market-data-hub/src/models"
)

// order sorts candidates for one selection. Candidates arrive in registration order.
// offset is the round-robin position captured for the current request.
func (r *Router) order(cands []*ProviderStatus, offset int) []*ProviderStatus {
	if len(cands) < 2 {
		return cands
	}
	out := make([]*ProviderStatus, len(cands))
	copy(out, cands)

	byPriority := func(i, j int) bool { return out[i].Config.Priority < out[j].Config.Priority }

	switch r.cfg.Strategy {
	case models.StrategyRoundRobin:
		k := offset % len(out)
		for i := range out {
			out[i] = cands[(i+k)%len(cands)]
		}

	case models.StrategyLowestLatency:
		sort.SliceStable(out, func(i, j int) bool {
			li, lj := out[i].AvgLatencyMs(), out[j].AvgLatencyMs()
			if li != lj {
				return li < lj
			}
			return byPriority(i, j)
		})

	case models.StrategyLowestCost:
		sort.SliceStable(out, func(i, j int) bool {
			ci, cj := r.cost(out[i]), r.cost(out[j])
			if !ci.Equal(cj) {
				return ci.LessThan(cj)
			}
			return byPriority(i, j)
		})

	case models.StrategyRandom:
		r.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })

	default:
		sort.SliceStable(out, byPriority)
	}
	return out
}
