package interfaces

import (
	"context"

	"market-data-hub/src/models"
)

// -----------------------------------------------------------------------------
// IEventPublisher ships provider state changes to operators.
// -----------------------------------------------------------------------------

type IEventPublisher interface {
	Publish(ctx context.Context, event models.MProviderEvent) error
	Close() error
}
