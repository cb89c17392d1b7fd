package normalizer

import (
	"fmt"
	"strings"
	"time"

	"market-data-hub/src/models"
	"market-data-hub/src/utils"
)

const (
	wideSpreadRatio   = 0.10
	extremeRangeRatio = 0.50
)

// Warning kinds. Each warning string starts with its kind.
const (
	WarnNonPositivePrice = "non-positive price"
	WarnInvertedBidAsk   = "bid > ask"
	WarnWideSpread       = "wide spread"
	WarnOutsideDayRange  = "price outside day range"
	WarnInvalidDayRange  = "invalid day range"
	WarnStaleQuote       = "stale quote"
	WarnInvalidRange     = "invalid range"
	WarnZeroRange        = "zero range"
	WarnOpenOutside      = "open outside range"
	WarnCloseOutside     = "close outside range"
	WarnExtremeRange     = "extreme intrabar range"
	WarnNegativeVolume   = "negative volume"
)

// HasWarning reports whether any warning is of the given kind.
func HasWarning(warnings []string, kind string) bool {
	for _, w := range warnings {
		if strings.HasPrefix(w, kind) {
			return true
		}
	}
	return false
}

// kindOf strips the detail after the kind.
func kindOf(w string) string {
	if i := strings.Index(w, ":"); i > 0 {
		return w[:i]
	}
	return w
}

// -----------------------------------------------------------------------------

// ValidateQuote returns data quality warnings; it never rejects a quote.
func ValidateQuote(q models.MQuote, now time.Time) []string {
	var w []string

	if q.Price <= 0 {
		w = append(w, fmt.Sprintf("%s: %g", WarnNonPositivePrice, q.Price))
	}

	if q.Bid != nil && q.Ask != nil {
		bid, ask := *q.Bid, *q.Ask
		if bid > ask {
			w = append(w, fmt.Sprintf("%s: bid %g ask %g", WarnInvertedBidAsk, bid, ask))
		} else if mid := (bid + ask) / 2; mid > 0 && (ask-bid)/mid > wideSpreadRatio {
			w = append(w, fmt.Sprintf("%s: %.1f%%", WarnWideSpread, (ask-bid)/mid*100))
		}
	}

	if q.DayLow != nil && q.DayHigh != nil {
		low, high := *q.DayLow, *q.DayHigh
		if low > high {
			w = append(w, fmt.Sprintf("%s: low %g high %g", WarnInvalidDayRange, low, high))
		} else if q.Price > 0 && (q.Price < low || q.Price > high) {
			w = append(w, fmt.Sprintf("%s: %g not in [%g, %g]", WarnOutsideDayRange, q.Price, low, high))
		}
	}

	if !q.Timestamp.IsZero() {
		if age := now.Sub(q.Timestamp); age > utils.StaleQuoteAge {
			w = append(w, fmt.Sprintf("%s: %s old", WarnStaleQuote, age.Truncate(time.Second)))
		}
	}
	return w
}

// -----------------------------------------------------------------------------

// ValidateOHLCV returns data quality warnings for one bar.
func ValidateOHLCV(b models.MOHLCV) []string {
	var w []string

	if b.Low > b.High {
		w = append(w, fmt.Sprintf("%s: low %g > high %g", WarnInvalidRange, b.Low, b.High))
	} else {
		if b.High == b.Low && b.Volume > 0 {
			w = append(w, fmt.Sprintf("%s: %g", WarnZeroRange, b.High))
		}
		if b.Open < b.Low || b.Open > b.High {
			w = append(w, fmt.Sprintf("%s: %g not in [%g, %g]", WarnOpenOutside, b.Open, b.Low, b.High))
		}
		if b.Close < b.Low || b.Close > b.High {
			w = append(w, fmt.Sprintf("%s: %g not in [%g, %g]", WarnCloseOutside, b.Close, b.Low, b.High))
		}
		if b.Low > 0 && (b.High-b.Low)/b.Low > extremeRangeRatio {
			w = append(w, fmt.Sprintf("%s: %.1f%%", WarnExtremeRange, (b.High-b.Low)/b.Low*100))
		}
	}

	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		w = append(w, WarnNonPositivePrice)
	}
	if b.Volume < 0 {
		w = append(w, fmt.Sprintf("%s: %g", WarnNegativeVolume, b.Volume))
	}
	return w
}
