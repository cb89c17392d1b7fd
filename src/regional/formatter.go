package regional

import (
	"strings"

	"market-data-hub/src/models"
	"market-data-hub/src/normalizer"
)

// Formatter spells canonical symbols the way each vendor expects and back.
// Explicit symbol mappings always win over the vendor's style.
type Formatter struct {
	Mapper *normalizer.SymbolMapper
}

func NewFormatter(mapper *normalizer.SymbolMapper) *Formatter {
	return &Formatter{Mapper: mapper}
}

// -----------------------------------------------------------------------------

func (f *Formatter) ToProvider(canonical string, cfg models.MProviderConfig) string {
	if ps, ok := f.Mapper.ToProvider(canonical, cfg.Name); ok {
		return ps
	}

	base, country := models.SplitSymbol(canonical)
	switch cfg.SymbolStyle {
	case models.SymbolStyleExchangePrefix:
		if p := ExchangePrefix(country); p != "" {
			return p + ":" + base
		}
		return base
	case models.SymbolStylePlain:
		return base
	default:
		return canonical
	}
}

// -----------------------------------------------------------------------------

// FromProvider restores the canonical spelling. A plain-style vendor symbol
// carries no country and is returned cleaned.
func (f *Formatter) FromProvider(providerSymbol string, cfg models.MProviderConfig) string {
	if c, ok := f.Mapper.ToCanonical(cfg.Name, providerSymbol); ok {
		return c
	}

	if cfg.SymbolStyle == models.SymbolStyleExchangePrefix {
		if prefix, base, found := strings.Cut(providerSymbol, ":"); found {
			if country, ok := prefixToCountry[strings.ToUpper(prefix)]; ok {
				return models.JoinSymbol(normalizer.CleanSymbol(base), country)
			}
			return normalizer.CleanSymbol(base)
		}
	}
	return normalizer.CleanSymbol(providerSymbol)
}
