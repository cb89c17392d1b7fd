package regional

import (
	"testing"

	"market-data-hub/src/interfaces/mocks"
	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
	"market-data-hub/src/router"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func provider(ctrl *gomock.Controller, cfg models.MProviderConfig) *mocks.MockIProvider {
	p := mocks.NewMockIProvider(ctrl)
	p.EXPECT().Name().Return(cfg.Name).AnyTimes()
	p.EXPECT().Config().Return(cfg).AnyTimes()
	return p
}

// -----------------------------------------------------------------------------

func TestEveryCountryHasAnExchangePrefix(t *testing.T) {
	t.Parallel()

	for c := range models.Countries {
		_, ok := exchangePrefixes[c]
		require.True(t, ok, "missing prefix for %s", c)
	}
	for c, p := range exchangePrefixes {
		if p == "" {
			continue
		}
		require.Equal(t, c, prefixToCountry[p])
	}
}

func TestFormatterStyles(t *testing.T) {
	t.Parallel()

	f := NewFormatter(nil)
	prefixed := models.MProviderConfig{Name: "finnhub", SymbolStyle: models.SymbolStyleExchangePrefix}
	suffixed := models.MProviderConfig{Name: "yahoo", SymbolStyle: models.SymbolStyleSuffix}
	plain := models.MProviderConfig{Name: "plain", SymbolStyle: models.SymbolStylePlain}

	cases := []struct {
		canonical string
		cfg       models.MProviderConfig
		vendor    string
	}{
		{"SAP.DE", prefixed, "XETR:SAP"},
		{"7203.T", prefixed, "TSE:7203"},
		{"AAPL", prefixed, "AAPL"},
		{"SAP.DE", suffixed, "SAP.DE"},
		{"AAPL", suffixed, "AAPL"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.vendor, f.ToProvider(tc.canonical, tc.cfg))
		require.Equal(t, tc.canonical, f.FromProvider(tc.vendor, tc.cfg))
	}

	require.Equal(t, "SAP", f.ToProvider("SAP.DE", plain))
	require.Equal(t, "SAP.DE", f.FromProvider("ETR:SAP", prefixed), "vendor alias")
	require.Equal(t, "AAPL", f.FromProvider("NASDAQ:AAPL", prefixed))
	require.Equal(t, "FOO", f.FromProvider("XYZ:foo", prefixed), "unknown prefix keeps the ticker")
}

func TestFormatterExplicitMappingWins(t *testing.T) {
	t.Parallel()

	mapper := normalizer.NewSymbolMapper([]models.MSymbolMapping{
		{Canonical: "BRK.B", Provider: "yahoo", ProviderSymbol: "BRK-B"},
	})
	f := NewFormatter(mapper)
	cfg := models.MProviderConfig{Name: "yahoo", SymbolStyle: models.SymbolStyleSuffix}

	require.Equal(t, "BRK-B", f.ToProvider("BRK.B", cfg))
	require.Equal(t, "BRK.B", f.FromProvider("BRK-B", cfg))
	require.Equal(t, "MSFT", f.ToProvider("MSFT", cfg))
}

// -----------------------------------------------------------------------------

func TestRegionalTables(t *testing.T) {
	t.Parallel()

	eu := NewEURouter(models.MRouterConfig{}, router.Deps{})
	us := NewUSRouter(models.MRouterConfig{}, router.Deps{})

	sym, ok := eu.ResolveIndex(" dax ")
	require.True(t, ok)
	require.Equal(t, "^GDAXI", sym)

	sym, ok = eu.ResolveIndex("^FTSE")
	require.True(t, ok)
	require.Equal(t, "^FTSE", sym)

	_, ok = us.ResolveIndex("DAX")
	require.False(t, ok)

	require.Equal(t, "eu", eu.Name())
	require.Contains(t, us.ETFs(), "SPY")
	require.True(t, eu.Covers("SAP.DE"))
	require.False(t, eu.Covers("AAPL"))

	idx := eu.Indices()
	idx["DAX"] = "changed"
	require.Equal(t, "^GDAXI", eu.Indices()["DAX"], "Indices returns a copy")
}

func TestInferMarketType(t *testing.T) {
	t.Parallel()

	cases := map[string]models.MarketType{
		"EURUSD=X":   models.MarketForex,
		"GC=F":       models.MarketCommodity,
		"^GSPC":      models.MarketIndex,
		"FTSEMIB.MI": models.MarketIndex,
		"000001.SS":  models.MarketIndex,
		"SPY":        models.MarketETF,
		"2800.HK":    models.MarketETF,
		"BTC-USD":    models.MarketCrypto,
		"AAPL":       models.MarketUSStock,
		"SHOP.TO":    models.MarketUSStock,
		"SAP.DE":     models.MarketEUStock,
		"7203.T":     models.MarketAsiaStock,
	}
	for sym, want := range cases {
		require.Equal(t, want, InferMarketType(sym), sym)
	}

	require.Equal(t, models.RegionAsia, RegionForSymbol("^N225"))
	require.Equal(t, models.RegionEU, RegionForSymbol("FTSEMIB.MI"))
	require.Equal(t, models.RegionUS, RegionForSymbol("^GSPC"))
}

// -----------------------------------------------------------------------------

func TestAcceptsAndSelect(t *testing.T) {
	t.Parallel()

	// Arrange
	ctrl := gomock.NewController(t)
	euOnly := provider(ctrl, models.MProviderConfig{
		Name: "eu-vendor", Enabled: true,
		MarketTypes: []models.MarketType{models.MarketEUStock},
	})
	usOnly := provider(ctrl, models.MProviderConfig{
		Name: "us-vendor", Enabled: true,
		MarketTypes: []models.MarketType{models.MarketUSStock},
	})
	everything := provider(ctrl, models.MProviderConfig{Name: "all", Enabled: true})

	global := router.New("global", models.MRouterConfig{}, router.Deps{})
	eu := NewEURouter(models.MRouterConfig{}, router.Deps{})
	us := NewUSRouter(models.MRouterConfig{}, router.Deps{})

	require.True(t, eu.Accepts(euOnly))
	require.False(t, eu.Accepts(usOnly))
	require.True(t, eu.Accepts(everything))

	require.NoError(t, global.Register(everything))
	require.NoError(t, eu.Register(euOnly))
	require.NoError(t, us.Register(usOnly))
	set := NewSet(global, us, eu)

	// Act + Assert
	r, mt := set.Select("SAP.DE", "", router.CapQuote)
	require.Same(t, eu.Router, r)
	require.Equal(t, models.MarketEUStock, mt)

	r, _ = set.Select("AAPL", models.MarketUSStock, router.CapQuote)
	require.Same(t, us.Router, r)

	r, mt = set.Select("7203.T", "", router.CapQuote)
	require.Same(t, global, r, "no asia router registered")
	require.Equal(t, models.MarketAsiaStock, mt)

	r, _ = set.Select("^GDAXI", "", router.CapQuote)
	require.Same(t, global, r, "eu vendor does not list indices")

	r, _ = set.Select("EURUSD=X", "", router.CapQuote)
	require.Same(t, global, r)

	all := set.All()
	require.Len(t, all, 3)
	require.Same(t, global, all[0])
	require.Equal(t, models.RegionEU, set.Regional()[0].Region)
}

func TestSetResolveIndex(t *testing.T) {
	t.Parallel()

	// Arrange
	global := router.New("global", models.MRouterConfig{}, router.Deps{})
	set := NewSet(global, NewEURouter(models.MRouterConfig{}, router.Deps{}))

	// Act + Assert
	require.Equal(t, "^GDAXI", set.ResolveIndex("DAX", models.MarketIndex))
	require.Equal(t, "^N225", set.ResolveIndex("n225", models.MarketIndex), "names outside configured regions still resolve")
	require.Equal(t, "^FTSE", set.ResolveIndex("^FTSE", models.MarketIndex))
	require.Equal(t, "UNKNOWN", set.ResolveIndex("UNKNOWN", models.MarketIndex))
	require.Equal(t, "DAX", set.ResolveIndex("DAX", models.MarketETF), "only index requests are rewritten")
	require.Equal(t, "DAX", set.ResolveIndex("DAX", ""))

	_, ok := LookupIndex("SPX")
	require.True(t, ok)
}
