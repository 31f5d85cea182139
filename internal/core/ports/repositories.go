package ports

import (
	"context"
	"encoding/json"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// ParkingDataSource returns raw provider records. Records are left
// undecoded; normalisation happens in the records package. Failures are
// *domain.TransportError values carrying a status class.
type ParkingDataSource interface {
	// ListAll returns the full, unranked listing.
	ListAll(ctx context.Context) ([]json.RawMessage, error)
	// ListNear returns at most limitCount records within radiusMeters of
	// origin, closest first, with a server computed distance where supported.
	ListNear(ctx context.Context, origin domain.GeoPoint, limitCount, radiusMeters uint32) ([]json.RawMessage, error)
	// SearchByText runs the provider's text search.
	SearchByText(ctx context.Context, text string) ([]json.RawMessage, error)
}

// ParkingRepository persists normalised facilities.
type ParkingRepository interface {
	UpsertBatch(ctx context.Context, facilities []domain.ParkingFacility) error
	GetByID(ctx context.Context, id string) (*domain.ParkingFacility, error)
	Count(ctx context.Context) (int, error)
}
