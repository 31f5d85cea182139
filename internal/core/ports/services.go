package ports

import (
	"context"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// EventPublisher publishes engine events to a message broker.
type EventPublisher interface {
	PublishState(ctx context.Context, snapshot *domain.Snapshot) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// DatasetNotifier announces that the stored facility dataset was replaced.
type DatasetNotifier interface {
	PublishDatasetRefreshed(ctx context.Context, count int) error
}

// EventSubscriber subscribes to dataset events from a message broker.
type EventSubscriber interface {
	SubscribeDatasetRefreshed(ctx context.Context, handler func(ctx context.Context, count int) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// RouteOpener hands a destination over to an external routing service and
// returns the link it opened.
type RouteOpener interface {
	OpenRoute(ctx context.Context, dest domain.GeoPoint) (string, error)
}
