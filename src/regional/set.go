package regional

import (
	"sort"

	"market-data-hub/src/models"
	"market-data-hub/src/router"
)

// Set holds the regional routers and the global fallback router.
type Set struct {
	Regions map[models.Region]*RegionalRouter
	Global  *router.Router
}

func NewSet(global *router.Router, regions ...*RegionalRouter) *Set {
	s := &Set{Regions: make(map[models.Region]*RegionalRouter), Global: global}
	for _, rr := range regions {
		s.Regions[rr.Region] = rr
	}
	return s
}

// -----------------------------------------------------------------------------

// Select picks the router for a request. Equities go to their region's router,
// indices and ETFs to the router of their listing region when it has a capable
// provider; everything else, and anything a region cannot serve, goes global.
// An empty market type is inferred from the symbol and returned.
func (s *Set) Select(symbol string, mt models.MarketType, capability router.Capability) (*router.Router, models.MarketType) {
	if mt == "" {
		mt = InferMarketType(symbol)
	}

	region, ok := RegionOfMarket(mt)
	if !ok && (mt == models.MarketIndex || mt == models.MarketETF) {
		region, ok = RegionForSymbol(symbol), true
	}

	if ok {
		if rr, exists := s.Regions[region]; exists {
			req := router.Requirement{Symbol: symbol, MarketType: mt, Capability: capability}
			if rr.HasCapable(req) {
				return rr.Router, mt
			}
		}
	}
	return s.Global, mt
}

// -----------------------------------------------------------------------------

// ResolveIndex turns a benchmark name into the symbol vendors list it under
// when mt is an index request. Configured regions are asked first. Anything
// else comes back unchanged.
func (s *Set) ResolveIndex(symbol string, mt models.MarketType) string {
	if mt != models.MarketIndex {
		return symbol
	}
	for _, rr := range s.Regional() {
		if sym, ok := rr.ResolveIndex(symbol); ok {
			return sym
		}
	}
	if sym, ok := LookupIndex(symbol); ok {
		return sym
	}
	return symbol
}

// -----------------------------------------------------------------------------

// All returns every router, global first then regions in name order.
func (s *Set) All() []*router.Router {
	out := []*router.Router{}
	if s.Global != nil {
		out = append(out, s.Global)
	}
	regions := make([]string, 0, len(s.Regions))
	for r := range s.Regions {
		regions = append(regions, string(r))
	}
	sort.Strings(regions)
	for _, r := range regions {
		out = append(out, s.Regions[models.Region(r)].Router)
	}
	return out
}

// -----------------------------------------------------------------------------

// Regional returns the regional routers in region order.
func (s *Set) Regional() []*RegionalRouter {
	out := make([]*RegionalRouter, 0, len(s.Regions))
	for _, rr := range s.Regions {
		out = append(out, rr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	return out
}
