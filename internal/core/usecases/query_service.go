package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/records"
	"github.com/samirrijal/parkfinder/internal/pkg/geospatial"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
	"github.com/samirrijal/parkfinder/internal/pkg/telemetry"
)

const defaultSearchTTL = 120

// QueryService loads the facility listing and runs queries over it, either
// locally or through the data source's text search.
type QueryService struct {
	source    ports.ParkingDataSource
	cache     ports.CacheService
	searchTTL int
}

// NewQueryService creates a new QueryService. cache may be nil.
func NewQueryService(source ports.ParkingDataSource, cache ports.CacheService, searchTTL int) *QueryService {
	if searchTTL <= 0 {
		searchTTL = defaultSearchTTL
	}
	return &QueryService{source: source, cache: cache, searchTTL: searchTTL}
}

// LoadAll fetches and normalises the full listing. Malformed records are
// logged and skipped.
func (s *QueryService) LoadAll(ctx context.Context) ([]domain.ParkingFacility, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "source.ListAll")
	defer span.End()

	start := time.Now()
	raws, err := s.source.ListAll(ctx)
	metrics.ObserveSource("list_all", start, statusLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list all")
		return nil, fmt.Errorf("list parkings: %w", err)
	}

	facilities := normalizeAll(ctx, "list_all", raws)
	span.SetAttributes(attribute.Int("parking.count", len(facilities)))
	return facilities, nil
}

// Run executes q against all. A non-blank text switches to remote mode,
// which is authoritative and never combined with the local filters. The
// returned bool reports whether remote mode was used.
func (s *QueryService) Run(ctx context.Context, all []domain.ParkingFacility, q domain.QuerySpec) ([]domain.ParkingFacility, bool, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		metrics.Searches.WithLabelValues("local", "ok").Inc()
		return FilterLocal(all, q), false, nil
	}

	results, err := s.SearchRemote(ctx, text)
	if err != nil {
		metrics.Searches.WithLabelValues("remote", "error").Inc()
		return nil, true, err
	}
	metrics.Searches.WithLabelValues("remote", "ok").Inc()
	return results, true, nil
}

// SearchRemote runs the data source text search for text, read-through cached.
// Failures are reported as *domain.SearchFailedError.
func (s *QueryService) SearchRemote(ctx context.Context, text string) ([]domain.ParkingFacility, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.SearchFailedError{Query: text, Err: fmt.Errorf("search text must not be empty")}
	}

	cacheKey := "parkings:search:" + strings.ToLower(text)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var facilities []domain.ParkingFacility
			if err := json.Unmarshal(data, &facilities); err == nil {
				metrics.CacheHits.WithLabelValues("search").Inc()
				return facilities, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "source.SearchByText")
	span.SetAttributes(attribute.String("parking.query", text))
	defer span.End()

	start := time.Now()
	raws, err := s.source.SearchByText(ctx, text)
	metrics.ObserveSource("search_by_text", start, statusLabel(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search by text")
		slog.WarnContext(ctx, "remote search failed", "query", text, "error", err)
		return nil, &domain.SearchFailedError{Query: text, Err: err}
	}

	facilities := normalizeAll(ctx, "search_by_text", raws)

	if s.cache != nil {
		if data, err := json.Marshal(facilities); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.searchTTL)
		}
	}

	return facilities, nil
}

// FilterLocal applies the local filters in order: text, availability, then
// distance. When the distance filter is active the result is stably sorted
// by distance and every facility carries DistanceMeters from the origin.
// The input is never modified.
func FilterLocal(all []domain.ParkingFacility, q domain.QuerySpec) []domain.ParkingFacility {
	needle := strings.ToLower(strings.TrimSpace(q.Text))
	distance := q.DistanceFilterActive()

	type ranked struct {
		facility domain.ParkingFacility
		km       float64
	}
	kept := make([]ranked, 0, len(all))

	// Coarse box check before the haversine distance. The box is padded
	// and dropped when it would cross the antimeridian.
	var box *domain.Bounds
	if distance {
		b := geospatial.BoundingBox(*q.Origin, *q.MaxDistanceKm*1000*1.01+1)
		if b.MinLng >= -180 && b.MaxLng <= 180 {
			box = &b
		}
	}

	for i := range all {
		f := &all[i]
		if needle != "" && !matchesText(f, needle) {
			continue
		}
		if q.OnlyAvailable && !f.Available() {
			continue
		}
		if !distance {
			kept = append(kept, ranked{facility: f.Clone()})
			continue
		}
		if f.Coordinates == nil {
			continue
		}
		if box != nil && !geospatial.InBounds(*f.Coordinates, *box) {
			continue
		}
		km := geospatial.Distance(*q.Origin, *f.Coordinates)
		if km > *q.MaxDistanceKm {
			continue
		}
		c := f.Clone()
		m := km * 1000
		c.DistanceMeters = &m
		kept = append(kept, ranked{facility: c, km: km})
	}

	if distance {
		sort.SliceStable(kept, func(i, j int) bool { return kept[i].km < kept[j].km })
	}

	out := make([]domain.ParkingFacility, len(kept))
	for i := range kept {
		out[i] = kept[i].facility
	}
	return out
}

func matchesText(f *domain.ParkingFacility, needle string) bool {
	fields := []string{f.Name, f.Address}
	if f.ZoneNumber != nil {
		fields = append(fields, *f.ZoneNumber)
	}
	if f.Subway != nil {
		fields = append(fields, *f.Subway)
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

// normalizeAll normalises a batch, logging and counting skipped records.
func normalizeAll(ctx context.Context, operation string, raws []json.RawMessage) []domain.ParkingFacility {
	facilities, errs := records.NormalizeBatch(raws)
	for _, err := range errs {
		slog.WarnContext(ctx, "skipping malformed parking record", "operation", operation, "error", err)
	}
	if len(errs) > 0 {
		metrics.MalformedRecords.WithLabelValues(operation).Add(float64(len(errs)))
	}
	return facilities
}
