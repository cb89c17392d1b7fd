package normalizer

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// currency signs, thousands separators, spaces and percent are dropped before parsing
	numberNoise = regexp.MustCompile(`[\s,$€£¥₹%]`)

	magnitudes = map[byte]float64{
		'K': 1e3,
		'M': 1e6,
		'B': 1e9,
		'T': 1e12,
	}

	timeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"20060102",
		"01/02/2006 15:04:05",
		"01/02/2006",
		time.RFC1123Z,
		time.RFC1123,
	}
)

// -----------------------------------------------------------------------------

// ParseNumber coerces vendor numbers: native numerics, json.Number, and strings
// like "$1,234.50", "12.5%", "(3.2)", "1.2B".
func ParseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		return parseNumberString(n)
	}
	return 0, false
}

func parseNumberString(s string) (float64, bool) {
	s = numberNoise.ReplaceAllString(strings.TrimSpace(s), "")
	if s == "" || s == "-" || strings.EqualFold(s, "n/a") {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	mult := 1.0
	last := s[len(s)-1]
	if m, ok := magnitudes[upper(last)]; ok {
		mult = m
		s = s[:len(s)-1]
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f *= mult
	if negative {
		f = -f
	}
	return f, true
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}

// -----------------------------------------------------------------------------

// ParseTimestamp accepts time.Time, epoch numbers of any scale and common
// string layouts. The result is always UTC; layouts without a zone are read as UTC.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		return parseTimeString(t)
	case int64:
		return FromEpoch(t)
	case int:
		return FromEpoch(int64(t))
	}

	n, ok := ParseNumber(v)
	if !ok {
		return time.Time{}, false
	}
	return FromEpoch(int64(n))
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 9 {
		return FromEpoch(n)
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// -----------------------------------------------------------------------------

// FromEpoch picks seconds, milliseconds, microseconds or nanoseconds by magnitude.
func FromEpoch(v int64) (time.Time, bool) {
	if v <= 0 {
		return time.Time{}, false
	}
	switch {
	case v >= 1e17:
		return time.Unix(0, v).UTC(), true
	case v >= 1e14:
		return time.UnixMicro(v).UTC(), true
	case v >= 1e11:
		return time.UnixMilli(v).UTC(), true
	default:
		return time.Unix(v, 0).UTC(), true
	}
}
