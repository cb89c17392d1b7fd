package cache

import (
	"strings"
	"time"

	"market-data-hub/src/models"
)

const keyTimeLayout = "20060102T150405"

// Keys builds the cache key schema under one prefix.
type Keys struct {
	Prefix string
}

func (k Keys) Quote(symbol string) string {
	return k.Prefix + ":quote:" + strings.ToUpper(symbol)
}

func (k Keys) Historical(symbol string, tf models.TimeFrame, start, end time.Time) string {
	return k.Prefix + ":historical:" + strings.ToUpper(symbol) + ":" + string(tf) + ":" +
		start.UTC().Format(keyTimeLayout) + ":" + end.UTC().Format(keyTimeLayout)
}

func (k Keys) LatestBar(symbol string, tf models.TimeFrame) string {
	return k.Prefix + ":bar:" + strings.ToUpper(symbol) + ":" + string(tf) + ":latest"
}

func (k Keys) Meta(key string) string {
	return k.Prefix + ":meta:" + key
}

// -----------------------------------------------------------------------------
// Invalidation patterns (glob)
// -----------------------------------------------------------------------------

// SymbolPatterns match every entry of symbol, optionally limited to one timeframe.
func (k Keys) SymbolPatterns(symbol string, tf models.TimeFrame) []string {
	s := escapeGlob(strings.ToUpper(symbol))
	if tf != "" {
		return []string{
			k.Prefix + ":historical:" + s + ":" + string(tf) + ":*",
			k.Prefix + ":bar:" + s + ":" + string(tf) + ":latest",
		}
	}
	return []string{
		k.Prefix + ":quote:" + s,
		k.Prefix + ":historical:" + s + ":*",
		k.Prefix + ":bar:" + s + ":*",
	}
}

func (k Keys) All() string {
	return k.Prefix + ":*"
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
