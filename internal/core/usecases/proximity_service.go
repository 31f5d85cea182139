package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/pkg/geospatial"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
	"github.com/samirrijal/parkfinder/internal/pkg/telemetry"
)

const (
	DefaultProximityRadiusMeters uint32 = 200
	DefaultProximityLimit        uint32 = 5

	proximityCacheTTL = 60
)

// ProximityService answers bounded nearest-k requests around a point.
type ProximityService struct {
	source       ports.ParkingDataSource
	cache        ports.CacheService
	radiusMeters uint32
	limit        uint32
}

// NewProximityService creates a new ProximityService. Zero radius or limit
// fall back to 200 m and 5 results.
func NewProximityService(source ports.ParkingDataSource, cache ports.CacheService, radiusMeters, limit uint32) *ProximityService {
	if radiusMeters == 0 {
		radiusMeters = DefaultProximityRadiusMeters
	}
	if limit == 0 {
		limit = DefaultProximityLimit
	}
	return &ProximityService{source: source, cache: cache, radiusMeters: radiusMeters, limit: limit}
}

// RadiusMeters returns the search radius.
func (s *ProximityService) RadiusMeters() uint32 { return s.radiusMeters }

// FindNearest returns up to limit facilities within the radius of origin,
// closest first. Every result has coordinates and DistanceMeters; when the
// source omits the distance it is computed locally. Failures are reported as
// *domain.ProximitySearchFailedError.
func (s *ProximityService) FindNearest(ctx context.Context, origin domain.GeoPoint) ([]domain.ParkingFacility, error) {
	if !origin.Valid() {
		return nil, &domain.InvalidClickError{Point: origin}
	}

	cacheKey := fmt.Sprintf("parkings:near:%.5f:%.5f:%d:%d", origin.Lat, origin.Lng, s.radiusMeters, s.limit)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var facilities []domain.ParkingFacility
			if err := json.Unmarshal(data, &facilities); err == nil {
				metrics.CacheHits.WithLabelValues("near").Inc()
				return facilities, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("near").Inc()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "source.ListNear")
	span.SetAttributes(
		attribute.Float64("parking.origin.lat", origin.Lat),
		attribute.Float64("parking.origin.lng", origin.Lng),
		attribute.Int("parking.radius_m", int(s.radiusMeters)),
	)
	defer span.End()

	start := time.Now()
	raws, err := s.source.ListNear(ctx, origin, s.limit, s.radiusMeters)
	metrics.ObserveSource("list_near", start, statusLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list near")
		return nil, &domain.ProximitySearchFailedError{Origin: origin, Err: err}
	}

	facilities := s.rank(origin, normalizeAll(ctx, "list_near", raws))
	span.SetAttributes(attribute.Int("parking.count", len(facilities)))

	if s.cache != nil {
		if data, err := json.Marshal(facilities); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, proximityCacheTTL)
		}
	}

	return facilities, nil
}

// rank drops facilities without coordinates or outside the radius, fills
// missing distances and sorts ascending. Ties keep the source order.
func (s *ProximityService) rank(origin domain.GeoPoint, facilities []domain.ParkingFacility) []domain.ParkingFacility {
	out := facilities[:0]
	for _, f := range facilities {
		if f.Coordinates == nil {
			slog.Debug("dropping nearby parking without coordinates", "id", f.ID)
			continue
		}
		if f.DistanceMeters == nil {
			d := geospatial.DistanceMeters(origin, *f.Coordinates)
			f.DistanceMeters = &d
		}
		if *f.DistanceMeters > float64(s.radiusMeters) {
			continue
		}
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceMeters < *out[j].DistanceMeters })

	if len(out) > int(s.limit) {
		out = out[:s.limit]
	}
	return out
}
