package models

import (
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// MarketType
// -----------------------------------------------------------------------------

type MarketType string

const (
	MarketUSStock   MarketType = "US_STOCK"
	MarketEUStock   MarketType = "EU_STOCK"
	MarketAsiaStock MarketType = "ASIA_STOCK"
	MarketForex     MarketType = "FOREX"
	MarketCrypto    MarketType = "CRYPTO"
	MarketIndex     MarketType = "INDEX"
	MarketETF       MarketType = "ETF"
	MarketCommodity MarketType = "COMMODITY"
	MarketBond      MarketType = "BOND"
)

var AllMarketTypes = []MarketType{
	MarketUSStock, MarketEUStock, MarketAsiaStock, MarketForex, MarketCrypto,
	MarketIndex, MarketETF, MarketCommodity, MarketBond,
}

// ParseMarketType accepts the canonical name in any case.
func ParseMarketType(s string) (MarketType, error) {
	mt := MarketType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllMarketTypes {
		if known == mt {
			return mt, nil
		}
	}
	return "", fmt.Errorf("unknown market type %q", s)
}

// -----------------------------------------------------------------------------
// DataType
// -----------------------------------------------------------------------------

type DataType string

const (
	DataQuote DataType = "QUOTE"
	DataOHLCV DataType = "OHLCV"
	DataTrade DataType = "TRADE"
	DataNews  DataType = "NEWS"
)

// -----------------------------------------------------------------------------
// TimeFrame
// -----------------------------------------------------------------------------

type TimeFrame string

const (
	TimeFrame1Min   TimeFrame = "1min"
	TimeFrame5Min   TimeFrame = "5min"
	TimeFrame15Min  TimeFrame = "15min"
	TimeFrame30Min  TimeFrame = "30min"
	TimeFrame1Hour  TimeFrame = "1h"
	TimeFrame1Day   TimeFrame = "1day"
	TimeFrame1Week  TimeFrame = "1week"
	TimeFrame1Month TimeFrame = "1month"
)

var timeFrameDurations = map[TimeFrame]time.Duration{
	TimeFrame1Min:   time.Minute,
	TimeFrame5Min:   5 * time.Minute,
	TimeFrame15Min:  15 * time.Minute,
	TimeFrame30Min:  30 * time.Minute,
	TimeFrame1Hour:  time.Hour,
	TimeFrame1Day:   24 * time.Hour,
	TimeFrame1Week:  7 * 24 * time.Hour,
	TimeFrame1Month: 30 * 24 * time.Hour,
}

// Duration is the nominal bar length. A month is counted as 30 days.
func (tf TimeFrame) Duration() time.Duration {
	return timeFrameDurations[tf]
}

func (tf TimeFrame) IsIntraday() bool {
	d := tf.Duration()
	return d > 0 && d < 24*time.Hour
}

func ParseTimeFrame(s string) (TimeFrame, error) {
	tf := TimeFrame(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeFrameDurations[tf]; !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// -----------------------------------------------------------------------------
// Region
// -----------------------------------------------------------------------------

type Region string

const (
	RegionUS   Region = "US"
	RegionEU   Region = "EU"
	RegionAsia Region = "ASIA"
)

// StockMarketType returns the equity market type traded in the region.
func (r Region) StockMarketType() MarketType {
	switch r {
	case RegionEU:
		return MarketEUStock
	case RegionAsia:
		return MarketAsiaStock
	default:
		return MarketUSStock
	}
}

// -----------------------------------------------------------------------------
// SymbolStyle describes how a vendor spells a listing outside its home market.
// -----------------------------------------------------------------------------

type SymbolStyle string

const (
	// SymbolStyleSuffix: SAP.DE, 7203.T
	SymbolStyleSuffix SymbolStyle = "suffix"
	// SymbolStyleExchangePrefix: XETR:SAP, TSE:7203
	SymbolStyleExchangePrefix SymbolStyle = "exchange_prefix"
	// SymbolStylePlain: SAP, 7203
	SymbolStylePlain SymbolStyle = "plain"
)

// -----------------------------------------------------------------------------
// RoutingStrategy
// -----------------------------------------------------------------------------

type RoutingStrategy string

const (
	StrategyPriority      RoutingStrategy = "priority"
	StrategyRoundRobin    RoutingStrategy = "round_robin"
	StrategyLowestLatency RoutingStrategy = "lowest_latency"
	StrategyLowestCost    RoutingStrategy = "lowest_cost"
	StrategyRandom        RoutingStrategy = "random"
)

func (s RoutingStrategy) Valid() bool {
	switch s {
	case StrategyPriority, StrategyRoundRobin, StrategyLowestLatency, StrategyLowestCost, StrategyRandom:
		return true
	}
	return false
}
