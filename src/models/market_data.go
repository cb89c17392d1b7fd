package models

import (
	"slices"
	"time"
)

// MQuote is the canonical real-time quote.
type MQuote struct {
	Symbol        string     `json:"symbol"`
	Price         float64    `json:"price"`
	Bid           *float64   `json:"bid,omitempty"`
	Ask           *float64   `json:"ask,omitempty"`
	BidSize       *float64   `json:"bid_size,omitempty"`
	AskSize       *float64   `json:"ask_size,omitempty"`
	Volume        float64    `json:"volume"`
	Timestamp     time.Time  `json:"timestamp"`
	Provider      string     `json:"provider"`
	MarketType    MarketType `json:"market_type,omitempty"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"change_percent"`
	DayHigh       *float64   `json:"day_high,omitempty"`
	DayLow        *float64   `json:"day_low,omitempty"`
	DayOpen       *float64   `json:"day_open,omitempty"`
	PreviousClose float64    `json:"previous_close,omitempty"`
	Exchange      string     `json:"exchange,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
}

// Clone returns a copy that shares no pointers or slices with q.
func (q MQuote) Clone() MQuote {
	q.Bid = clonePtr(q.Bid)
	q.Ask = clonePtr(q.Ask)
	q.BidSize = clonePtr(q.BidSize)
	q.AskSize = clonePtr(q.AskSize)
	q.DayHigh = clonePtr(q.DayHigh)
	q.DayLow = clonePtr(q.DayLow)
	q.DayOpen = clonePtr(q.DayOpen)
	q.Warnings = slices.Clone(q.Warnings)
	return q
}

// -----------------------------------------------------------------------------

// MOHLCV is one canonical bar.
type MOHLCV struct {
	Symbol        string    `json:"symbol"`
	Timestamp     time.Time `json:"timestamp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	Provider      string    `json:"provider"`
	TimeFrame     TimeFrame `json:"timeframe"`
	AdjustedClose *float64  `json:"adjusted_close,omitempty"`
	VWAP          *float64  `json:"vwap,omitempty"`
	TradeCount    *int64    `json:"trade_count,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// Clone returns a copy that shares no pointers or slices with b.
func (b MOHLCV) Clone() MOHLCV {
	b.AdjustedClose = clonePtr(b.AdjustedClose)
	b.VWAP = clonePtr(b.VWAP)
	b.TradeCount = clonePtr(b.TradeCount)
	b.Warnings = slices.Clone(b.Warnings)
	return b
}

// CloneBars deep-copies a series.
func CloneBars(bars []MOHLCV) []MOHLCV {
	if bars == nil {
		return nil
	}
	out := make([]MOHLCV, len(bars))
	for i, b := range bars {
		out[i] = b.Clone()
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// -----------------------------------------------------------------------------

type MCompanyInfo struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Exchange    string    `json:"exchange,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	Country     string    `json:"country,omitempty"`
	Sector      string    `json:"sector,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Website     string    `json:"website,omitempty"`
	Description string    `json:"description,omitempty"`
	MarketCap   float64   `json:"market_cap,omitempty"`
	Employees   int64     `json:"employees,omitempty"`
	Provider    string    `json:"provider"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// -----------------------------------------------------------------------------

type MSymbolSearchResult struct {
	Symbol     string     `json:"symbol"`
	Name       string     `json:"name"`
	Exchange   string     `json:"exchange,omitempty"`
	MarketType MarketType `json:"market_type,omitempty"`
	Currency   string     `json:"currency,omitempty"`
	Provider   string     `json:"provider"`
}

// -----------------------------------------------------------------------------

// MGap is a stretch of trading time with no bars between two consecutive bars.
type MGap struct {
	Symbol    string    `json:"symbol"`
	TimeFrame TimeFrame `json:"timeframe"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Missing   int       `json:"missing"`
}

// -----------------------------------------------------------------------------

// MSymbolMapping links a canonical symbol to one vendor's spelling.
type MSymbolMapping struct {
	Canonical      string     `yaml:"canonical" json:"canonical"`
	Provider       string     `yaml:"provider" json:"provider"`
	ProviderSymbol string     `yaml:"provider_symbol" json:"provider_symbol"`
	Exchange       string     `yaml:"exchange" json:"exchange,omitempty"`
	Currency       string     `yaml:"currency" json:"currency,omitempty"`
	MarketType     MarketType `yaml:"market_type" json:"market_type,omitempty"`
}
