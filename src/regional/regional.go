package regional

import (
	"sort"
	"strings"

	"market-data-hub/src/interfaces"
	"market-data-hub/src/logger"
	"market-data-hub/src/models"
	"market-data-hub/src/router"
)

// RegionalRouter is a router scoped to one region's listings and benchmarks.
type RegionalRouter struct {
	*router.Router
	Region models.Region
}

// -----------------------------------------------------------------------------

func New(region models.Region, cfg models.MRouterConfig, deps router.Deps) *RegionalRouter {
	if deps.Logger == nil {
		deps.Logger = logger.NewLogger(nil, "Router."+string(region))
	}
	if deps.Formatter == nil {
		deps.Formatter = NewFormatter(nil)
	}
	return &RegionalRouter{
		Router: router.New(strings.ToLower(string(region)), cfg, deps),
		Region: region,
	}
}

func NewUSRouter(cfg models.MRouterConfig, deps router.Deps) *RegionalRouter {
	return New(models.RegionUS, cfg, deps)
}

func NewEURouter(cfg models.MRouterConfig, deps router.Deps) *RegionalRouter {
	return New(models.RegionEU, cfg, deps)
}

func NewAsiaRouter(cfg models.MRouterConfig, deps router.Deps) *RegionalRouter {
	return New(models.RegionAsia, cfg, deps)
}

// -----------------------------------------------------------------------------

// Accepts reports whether a provider should be registered on this region:
// it must serve the region's equities, or declare no market restriction.
func (rr *RegionalRouter) Accepts(p interfaces.IProvider) bool {
	return p.Config().SupportsMarket(rr.Region.StockMarketType())
}

// -----------------------------------------------------------------------------

// ResolveIndex maps a benchmark name (DAX, N225) to its symbol. Symbols pass through.
func (rr *RegionalRouter) ResolveIndex(name string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if sym, ok := regionIndices[rr.Region][key]; ok {
		return sym, true
	}
	if r, ok := indexRegion[key]; ok && r == rr.Region {
		return key, true
	}
	return "", false
}

// LookupIndex resolves a benchmark name in any region.
func LookupIndex(name string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(name))
	for _, indices := range regionIndices {
		if sym, ok := indices[key]; ok {
			return sym, true
		}
	}
	return "", false
}

// Indices returns a copy of the region's benchmark table.
func (rr *RegionalRouter) Indices() map[string]string {
	out := make(map[string]string, len(regionIndices[rr.Region]))
	for k, v := range regionIndices[rr.Region] {
		out[k] = v
	}
	return out
}

func (rr *RegionalRouter) ETFs() []string {
	out := append([]string(nil), regionETFs[rr.Region]...)
	sort.Strings(out)
	return out
}

// -----------------------------------------------------------------------------

// Covers reports whether symbol is listed in this region.
func (rr *RegionalRouter) Covers(symbol string) bool {
	return RegionForSymbol(symbol) == rr.Region
}

// -----------------------------------------------------------------------------
// Symbol classification
// -----------------------------------------------------------------------------

// RegionForSymbol returns the region a canonical symbol trades in.
func RegionForSymbol(symbol string) models.Region {
	s := strings.ToUpper(symbol)
	if r, ok := indexRegion[s]; ok {
		return r
	}
	return models.CountryOfSymbol(s).Region()
}

// -----------------------------------------------------------------------------

var cryptoQuotes = []string{"-USD", "-USDT", "-EUR", "-BTC", "-ETH"}

// InferMarketType guesses the market type of a canonical symbol.
func InferMarketType(symbol string) models.MarketType {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, "=X"):
		return models.MarketForex
	case strings.HasSuffix(s, "=F"):
		return models.MarketCommodity
	case strings.HasPrefix(s, "^"):
		return models.MarketIndex
	}
	if _, ok := indexRegion[s]; ok {
		return models.MarketIndex
	}
	if etfSet[s] {
		return models.MarketETF
	}
	for _, q := range cryptoQuotes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return models.MarketCrypto
		}
	}
	return RegionForSymbol(s).StockMarketType()
}

// -----------------------------------------------------------------------------

// RegionOfMarket returns the region of a stock market type.
func RegionOfMarket(mt models.MarketType) (models.Region, bool) {
	switch mt {
	case models.MarketUSStock:
		return models.RegionUS, true
	case models.MarketEUStock:
		return models.RegionEU, true
	case models.MarketAsiaStock:
		return models.RegionAsia, true
	}
	return "", false
}
