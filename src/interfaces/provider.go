package interfaces

import (
	"context"
	"time"

	"market-data-hub/src/models"
)

// -----------------------------------------------------------------------------
// IProvider is the capability contract every vendor adapter implements.
// -----------------------------------------------------------------------------

//go:generate mockgen -package=mocks -destination=mocks/mock_provider.go -source=provider.go IProvider
type IProvider interface {

	// Name returns the unique identifier of the provider
	Name() string

	// -----------------------------------------------------------------------------

	// Config returns the immutable policy the provider was built with.
	Config() models.MProviderConfig

	// -----------------------------------------------------------------------------

	// Initialize opens vendor sessions. Called once before the first request.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Close releases sessions and streaming connections.
	Close() error

	// -----------------------------------------------------------------------------

	// HealthCheck returns true when the vendor answers a cheap probe.
	HealthCheck(ctx context.Context) bool

	// -----------------------------------------------------------------------------

	// GetQuote returns DataNotAvailableError when the vendor has no such symbol.
	GetQuote(ctx context.Context, symbol string) (models.MQuote, error)

	// -----------------------------------------------------------------------------

	// GetQuotes is best effort: missing symbols are silently omitted.
	GetQuotes(ctx context.Context, symbols []string) ([]models.MQuote, error)

	// -----------------------------------------------------------------------------

	// GetHistorical returns bars sorted ascending by timestamp.
	GetHistorical(ctx context.Context, symbol string, start, end time.Time, timeframe models.TimeFrame) ([]models.MOHLCV, error)
}

// -----------------------------------------------------------------------------
// Optional capabilities
// -----------------------------------------------------------------------------

// IStreamingProvider pushes quotes over a persistent connection.
type IStreamingProvider interface {
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	// StreamQuotes delivers quotes until ctx is done; the channel is then closed.
	StreamQuotes(ctx context.Context) (<-chan models.MQuote, error)
}

type ISymbolSearcher interface {
	SearchSymbols(ctx context.Context, query string) ([]models.MSymbolSearchResult, error)
}

type ICompanyInfoProvider interface {
	GetCompanyInfo(ctx context.Context, symbol string) (models.MCompanyInfo, error)
}
