package normalizer

import "strings"

// Field is a logical field of a canonical quote or bar.
type Field string

const (
	FieldSymbol        Field = "symbol"
	FieldPrice         Field = "price"
	FieldBid           Field = "bid"
	FieldAsk           Field = "ask"
	FieldBidSize       Field = "bid_size"
	FieldAskSize       Field = "ask_size"
	FieldVolume        Field = "volume"
	FieldTimestamp     Field = "timestamp"
	FieldChange        Field = "change"
	FieldChangePercent Field = "change_percent"
	FieldOpen          Field = "open"
	FieldHigh          Field = "high"
	FieldLow           Field = "low"
	FieldClose         Field = "close"
	FieldPreviousClose Field = "previous_close"
	FieldAdjClose      Field = "adjusted_close"
	FieldVWAP          Field = "vwap"
	FieldTradeCount    Field = "trade_count"
	FieldExchange      Field = "exchange"
	FieldCurrency      Field = "currency"
)

// Aliases lists the vendor spellings probed for each field, most specific first.
var Aliases = map[Field][]string{
	FieldSymbol:        {"symbol", "ticker", "s", "sym", "code", "instrument"},
	FieldPrice:         {"price", "last", "lastPrice", "last_price", "regularMarketPrice", "current", "c", "p", "close", "latestPrice"},
	FieldBid:           {"bid", "bidPrice", "bid_price", "b", "bp"},
	FieldAsk:           {"ask", "askPrice", "ask_price", "a", "ap"},
	FieldBidSize:       {"bidSize", "bid_size", "bs"},
	FieldAskSize:       {"askSize", "ask_size", "as"},
	FieldVolume:        {"volume", "regularMarketVolume", "vol", "v", "totalVolume"},
	FieldTimestamp:     {"timestamp", "regularMarketTime", "time", "t", "datetime", "date", "lastUpdated", "updated_at"},
	FieldChange:        {"change", "regularMarketChange", "d", "netChange"},
	FieldChangePercent: {"changePercent", "change_percent", "regularMarketChangePercent", "dp", "percent_change", "pctChange"},
	FieldOpen:          {"open", "regularMarketOpen", "dayOpen", "o", "openPrice"},
	FieldHigh:          {"high", "dayHigh", "regularMarketDayHigh", "h", "highPrice"},
	FieldLow:           {"low", "dayLow", "regularMarketDayLow", "l", "lowPrice"},
	FieldClose:         {"close", "c", "closePrice", "last"},
	FieldPreviousClose: {"previousClose", "previous_close", "regularMarketPreviousClose", "chartPreviousClose", "pc", "prevClose"},
	FieldAdjClose:      {"adjclose", "adjClose", "adjusted_close", "adj_close"},
	FieldVWAP:          {"vwap", "vw"},
	FieldTradeCount:    {"trade_count", "tradeCount", "n", "trades"},
	FieldExchange:      {"exchange", "exchangeName", "fullExchangeName", "mic", "x"},
	FieldCurrency:      {"currency", "currencyCode", "cur"},
}

// -----------------------------------------------------------------------------

// Lookup probes the aliases of f in raw: exact keys first, then case-insensitive.
// Nil values count as absent.
func Lookup(raw map[string]any, f Field) (any, bool) {
	aliases := Aliases[f]
	for _, a := range aliases {
		if v, ok := raw[a]; ok && v != nil {
			return v, true
		}
	}
	for k, v := range raw {
		if v == nil {
			continue
		}
		for _, a := range aliases {
			if strings.EqualFold(k, a) {
				return v, true
			}
		}
	}
	return nil, false
}

// -----------------------------------------------------------------------------

// Number resolves f to a float.
func Number(raw map[string]any, f Field) (float64, bool) {
	v, ok := Lookup(raw, f)
	if !ok {
		return 0, false
	}
	return ParseNumber(v)
}

// -----------------------------------------------------------------------------

// OptionalNumber is Number as a pointer, nil when absent or unparsable.
func OptionalNumber(raw map[string]any, f Field) *float64 {
	n, ok := Number(raw, f)
	if !ok {
		return nil
	}
	return &n
}

// -----------------------------------------------------------------------------

func String(raw map[string]any, f Field) string {
	v, ok := Lookup(raw, f)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
