package interfaces

import (
	"context"
	"time"

	"market-data-hub/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// SaveBars upserts a batch of bars keyed by symbol, timeframe and timestamp.
	SaveBars(ctx context.Context, bars []models.MOHLCV) error

	// -----------------------------------------------------------------------------

	// LoadBars returns archived bars in [start, end] sorted ascending.
	LoadBars(ctx context.Context, symbol string, timeframe models.TimeFrame, start, end time.Time) ([]models.MOHLCV, error)

	// -----------------------------------------------------------------------------

	SaveSymbolMappings(ctx context.Context, mappings []models.MSymbolMapping) error

	// -----------------------------------------------------------------------------

	LoadSymbolMappings(ctx context.Context) ([]models.MSymbolMapping, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes bars older than the retention policy.
	CleanupOldData(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------

// ISymbolResolver is implemented by archives that can expand symbol list
// references (e.g. a table column) into concrete symbols.
type ISymbolResolver interface {
	ResolveSymbols(ctx context.Context, raw []string) ([]string, error)
}
