package providers

import (
	"context"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.FacetEvent) error

	// Subscribe subscribes to events on a channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.FacetEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelFacetInvalidations carries FacetEventTypeInvalidated events
const EventChannelFacetInvalidations = "facets:invalidations"
