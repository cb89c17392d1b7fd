package normalizer

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"market-data-hub/src/models"
)

var (
	symbolNoise   = regexp.MustCompile(`[^A-Z0-9.\-=^/]`)
	repeatedDots  = regexp.MustCompile(`\.{2,}`)
	cashtagPrefix = regexp.MustCompile(`^\$+`)
)

// CleanSymbol is the fallback when no explicit mapping exists: uppercase,
// drop cashtags, whitespace and characters no vendor uses in a ticker.
func CleanSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = cashtagPrefix.ReplaceAllString(s, "")
	s = symbolNoise.ReplaceAllString(s, "")
	s = repeatedDots.ReplaceAllString(s, ".")
	return strings.Trim(s, ".-")
}

// -----------------------------------------------------------------------------

// SymbolMapper holds explicit canonical <-> vendor spellings, scoped per provider.
type SymbolMapper struct {
	mu          sync.RWMutex
	toProvider  map[string]map[string]models.MSymbolMapping
	toCanonical map[string]map[string]string
}

func NewSymbolMapper(mappings []models.MSymbolMapping) *SymbolMapper {
	sm := &SymbolMapper{
		toProvider:  make(map[string]map[string]models.MSymbolMapping),
		toCanonical: make(map[string]map[string]string),
	}
	for _, m := range mappings {
		sm.Add(m)
	}
	return sm
}

// -----------------------------------------------------------------------------

// Add registers or replaces a mapping. Provider names are case-insensitive.
func (sm *SymbolMapper) Add(m models.MSymbolMapping) {
	provider := strings.ToLower(m.Provider)
	canonical := strings.ToUpper(m.Canonical)
	m.Provider = provider
	m.Canonical = canonical

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if old, ok := sm.toProvider[provider][canonical]; ok {
		delete(sm.toCanonical[provider], old.ProviderSymbol)
	}
	if sm.toProvider[provider] == nil {
		sm.toProvider[provider] = make(map[string]models.MSymbolMapping)
		sm.toCanonical[provider] = make(map[string]string)
	}
	sm.toProvider[provider][canonical] = m
	sm.toCanonical[provider][m.ProviderSymbol] = canonical
}

// -----------------------------------------------------------------------------

func (sm *SymbolMapper) ToProvider(canonical, provider string) (string, bool) {
	if sm == nil {
		return "", false
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	m, ok := sm.toProvider[strings.ToLower(provider)][strings.ToUpper(canonical)]
	return m.ProviderSymbol, ok
}

// -----------------------------------------------------------------------------

func (sm *SymbolMapper) ToCanonical(provider, providerSymbol string) (string, bool) {
	if sm == nil {
		return "", false
	}
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	c, ok := sm.toCanonical[strings.ToLower(provider)][providerSymbol]
	return c, ok
}

// -----------------------------------------------------------------------------

// Mappings lists every mapping sorted by provider then canonical symbol.
func (sm *SymbolMapper) Mappings() []models.MSymbolMapping {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var out []models.MSymbolMapping
	for _, byCanonical := range sm.toProvider {
		for _, m := range byCanonical {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Canonical < out[j].Canonical
	})
	return out
}
