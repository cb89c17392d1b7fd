package normalizer

import (
	"sort"
	"strings"
	"time"

	"market-data-hub/src/helpers"
	"market-data-hub/src/logger"
	"market-data-hub/src/metrics"
	"market-data-hub/src/models"
)

// Normalizer canonicalizes vendor payloads and attaches data quality warnings.
type Normalizer struct {
	Mapper  *SymbolMapper
	Logger  *logger.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func NewNormalizer(mapper *SymbolMapper, m *metrics.Metrics, log *logger.Logger) *Normalizer {
	if mapper == nil {
		mapper = NewSymbolMapper(nil)
	}
	if log == nil {
		log = logger.NewLogger(nil, "Normalizer")
	}
	return &Normalizer{Mapper: mapper, Logger: log, Metrics: m, Now: time.Now}
}

// -----------------------------------------------------------------------------

// CanonicalSymbol maps a vendor symbol back through explicit mappings, else cleans it.
func (n *Normalizer) CanonicalSymbol(provider, providerSymbol string) string {
	if c, ok := n.Mapper.ToCanonical(provider, providerSymbol); ok {
		return c
	}
	return CleanSymbol(providerSymbol)
}

// -----------------------------------------------------------------------------

// QuoteFromMap builds a quote from a decoded vendor payload.
// fallbackSymbol is used when the payload carries no symbol of its own.
func (n *Normalizer) QuoteFromMap(raw map[string]any, provider, fallbackSymbol string) (models.MQuote, error) {
	symbol := String(raw, FieldSymbol)
	if symbol == "" {
		symbol = fallbackSymbol
	}
	if symbol == "" {
		return models.MQuote{}, helpers.NewProviderError(provider, "quote payload has no symbol", nil)
	}

	price, ok := Number(raw, FieldPrice)
	if !ok {
		return models.MQuote{}, helpers.NewProviderError(provider, "quote payload for "+symbol+" has no price", nil)
	}

	q := models.MQuote{
		Symbol:   n.CanonicalSymbol(provider, symbol),
		Price:    price,
		Bid:      OptionalNumber(raw, FieldBid),
		Ask:      OptionalNumber(raw, FieldAsk),
		BidSize:  OptionalNumber(raw, FieldBidSize),
		AskSize:  OptionalNumber(raw, FieldAskSize),
		DayHigh:  OptionalNumber(raw, FieldHigh),
		DayLow:   OptionalNumber(raw, FieldLow),
		DayOpen:  OptionalNumber(raw, FieldOpen),
		Provider: provider,
		Exchange: String(raw, FieldExchange),
		Currency: strings.ToUpper(String(raw, FieldCurrency)),
	}
	q.Volume, _ = Number(raw, FieldVolume)
	q.Change, _ = Number(raw, FieldChange)
	q.ChangePercent, _ = Number(raw, FieldChangePercent)
	q.PreviousClose, _ = Number(raw, FieldPreviousClose)

	if v, ok := Lookup(raw, FieldTimestamp); ok {
		q.Timestamp, _ = ParseTimestamp(v)
	}
	if q.Change == 0 && q.PreviousClose > 0 {
		q.Change = q.Price - q.PreviousClose
		q.ChangePercent = q.Change / q.PreviousClose * 100
	}
	return q, nil
}

// -----------------------------------------------------------------------------

// BarFromMap builds one bar; timestamp and close are required.
func (n *Normalizer) BarFromMap(raw map[string]any, symbol, provider string, tf models.TimeFrame) (models.MOHLCV, error) {
	v, ok := Lookup(raw, FieldTimestamp)
	if !ok {
		return models.MOHLCV{}, helpers.NewProviderError(provider, "bar payload has no timestamp", nil)
	}
	ts, ok := ParseTimestamp(v)
	if !ok {
		return models.MOHLCV{}, helpers.NewProviderError(provider, "unparsable bar timestamp", nil)
	}
	closePrice, ok := Number(raw, FieldClose)
	if !ok {
		return models.MOHLCV{}, helpers.NewProviderError(provider, "bar payload has no close", nil)
	}

	b := models.MOHLCV{
		Symbol:        symbol,
		Timestamp:     ts,
		Close:         closePrice,
		Provider:      provider,
		TimeFrame:     tf,
		AdjustedClose: OptionalNumber(raw, FieldAdjClose),
		VWAP:          OptionalNumber(raw, FieldVWAP),
	}
	b.Open, _ = Number(raw, FieldOpen)
	b.High, _ = Number(raw, FieldHigh)
	b.Low, _ = Number(raw, FieldLow)
	b.Volume, _ = Number(raw, FieldVolume)
	if tc, ok := Number(raw, FieldTradeCount); ok {
		count := int64(tc)
		b.TradeCount = &count
	}
	return b, nil
}

// -----------------------------------------------------------------------------

// Quote finalizes a quote coming out of a router: UTC timestamp, validation
// warnings attached and logged.
func (n *Normalizer) Quote(q models.MQuote) models.MQuote {
	now := n.Now().UTC()
	if q.Timestamp.IsZero() {
		q.Timestamp = now
	} else {
		q.Timestamp = q.Timestamp.UTC()
	}
	q.Currency = strings.ToUpper(q.Currency)

	q.Warnings = append(q.Warnings[:0:0], ValidateQuote(q, now)...)
	if len(q.Warnings) > 0 {
		n.Logger.Warning("Quote %s from %s: %s", q.Symbol, q.Provider, strings.Join(q.Warnings, "; "))
		n.record(q.Warnings)
	}
	return q
}

// -----------------------------------------------------------------------------

// Bars finalizes a series: UTC, sorted ascending, one bar per timestamp (the
// last one wins), warnings attached per bar.
func (n *Normalizer) Bars(symbol string, bars []models.MOHLCV) []models.MOHLCV {
	if len(bars) == 0 {
		return bars
	}

	out := make([]models.MOHLCV, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].Timestamp = out[i].Timestamp.UTC()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	deduped := out[:0]
	for _, b := range out {
		if k := len(deduped); k > 0 && deduped[k-1].Timestamp.Equal(b.Timestamp) {
			deduped[k-1] = b
			continue
		}
		deduped = append(deduped, b)
	}
	if dropped := len(bars) - len(deduped); dropped > 0 {
		n.Logger.Debug("Bars %s: dropped %d duplicate timestamps", symbol, dropped)
	}

	flagged := 0
	for i := range deduped {
		deduped[i].Warnings = ValidateOHLCV(deduped[i])
		if len(deduped[i].Warnings) > 0 {
			flagged++
			n.record(deduped[i].Warnings)
		}
	}
	if flagged > 0 {
		first := deduped[0]
		for _, b := range deduped {
			if len(b.Warnings) > 0 {
				first = b
				break
			}
		}
		n.Logger.Warning("Bars %s: %d of %d flagged, first at %s: %s", symbol, flagged, len(deduped),
			first.Timestamp.Format(time.RFC3339), strings.Join(first.Warnings, "; "))
	}
	return deduped
}

// -----------------------------------------------------------------------------

func (n *Normalizer) record(warnings []string) {
	for _, w := range warnings {
		n.Metrics.ValidationWarnings(kindOf(w), 1)
	}
}
