package interfaces

import (
	"context"
	"time"

	"market-data-hub/src/models"
)

// -----------------------------------------------------------------------------
// IMarketDataService is the read surface the HTTP and gRPC fronts consume.
// -----------------------------------------------------------------------------

type IMarketDataService interface {
	GetQuote(ctx context.Context, symbol string, mt models.MarketType, forceRefresh bool) (models.MQuote, error)
	GetQuotes(ctx context.Context, symbols []string, mt models.MarketType, forceRefresh bool) (map[string]models.MQuote, error)

	GetHistorical(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType, forceRefresh bool) ([]models.MOHLCV, error)
	GetLatestBar(ctx context.Context, symbol string, tf models.TimeFrame, mt models.MarketType, forceRefresh bool) (models.MOHLCV, error)
	DetectGaps(ctx context.Context, symbol string, start, end time.Time, tf models.TimeFrame, mt models.MarketType) ([]models.MGap, error)

	SearchSymbols(ctx context.Context, query string, mt models.MarketType) ([]models.MSymbolSearchResult, error)
	GetCompanyInfo(ctx context.Context, symbol string, mt models.MarketType) (models.MCompanyInfo, error)

	// InvalidateSymbol drops cached entries and returns how many were removed.
	InvalidateSymbol(ctx context.Context, symbol string, tf models.TimeFrame) int64
	GetStatus(ctx context.Context) models.MStatus
}
