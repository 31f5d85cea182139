// Package memory is an in-process parking data source used for local
// development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mmcloughlin/geohash"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/records"
	"github.com/samirrijal/parkfinder/internal/pkg/geospatial"
)

// cellPrecision gives cells of roughly 1.2 km x 0.6 km at the equator.
// Cells narrow in metres towards the poles.
const cellPrecision = 6

const earthRadiusMeters = 6371000.0

// Source keeps facilities in memory with a geohash cell index for nearby
// lookups.
type Source struct {
	mu         sync.RWMutex
	facilities []domain.ParkingFacility
	cells      map[string][]int // geohash -> indexes into facilities
}

// NewSource creates a Source holding facilities.
func NewSource(facilities []domain.ParkingFacility) *Source {
	s := &Source{}
	s.Replace(facilities)
	return s
}

// LoadFile builds a Source from a seed file of provider records.
func LoadFile(path string) (*Source, error) {
	raws, err := ReadSeedFile(path)
	if err != nil {
		return nil, err
	}

	facilities, errs := records.NormalizeBatch(raws)
	for _, err := range errs {
		slog.Warn("skipping malformed seed record", "file", path, "error", err)
	}
	return NewSource(facilities), nil
}

// ReadSeedFile reads raw provider records from a .csv export or a JSON file
// holding either a bare array or {"parkings": [...]}.
func ReadSeedFile(path string) ([]json.RawMessage, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open seed file: %w", err)
		}
		defer f.Close()
		raws, err := records.ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
		return raws, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		var envelope struct {
			Parkings []json.RawMessage `json:"parkings"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("parse seed file %s: %w", path, err)
		}
		raws = envelope.Parkings
	}
	return raws, nil
}

// Replace swaps the whole dataset and rebuilds the index.
func (s *Source) Replace(facilities []domain.ParkingFacility) {
	cells := make(map[string][]int)
	stored := domain.CloneFacilities(facilities)
	for i := range stored {
		stored[i].DistanceMeters = nil
		if c := stored[i].Coordinates; c != nil {
			h := geohash.EncodeWithPrecision(c.Lat, c.Lng, cellPrecision)
			cells[h] = append(cells[h], i)
		}
	}

	s.mu.Lock()
	s.facilities = stored
	s.cells = cells
	s.mu.Unlock()
}

// Len returns the number of stored facilities.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.facilities)
}

// ListAll returns every facility in its canonical encoding.
func (s *Source) ListAll(ctx context.Context) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return encode(s.facilities)
}

// ListNear returns up to limitCount facilities within radiusMeters of
// origin, closest first, each carrying its distance.
func (s *Source) ListNear(ctx context.Context, origin domain.GeoPoint, limitCount, radiusMeters uint32) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: "near", Status: domain.StatusNetworkError, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.ParkingFacility
	consider := func(i int) {
		f := s.facilities[i]
		d := geospatial.DistanceMeters(origin, *f.Coordinates)
		if d > float64(radiusMeters) {
			return
		}
		f = f.Clone()
		f.DistanceMeters = &d
		hits = append(hits, f)
	}

	center := geohash.EncodeWithPrecision(origin.Lat, origin.Lng, cellPrecision)
	if float64(radiusMeters) <= neighbourhoodReach(center) {
		for _, cell := range append(geohash.Neighbors(center), center) {
			for _, i := range s.cells[cell] {
				consider(i)
			}
		}
	} else {
		for i := range s.facilities {
			if s.facilities[i].Coordinates != nil {
				consider(i)
			}
		}
	}

	// Cell iteration order is arbitrary, so ties fall back to the id.
	sort.Slice(hits, func(i, j int) bool {
		if *hits[i].DistanceMeters != *hits[j].DistanceMeters {
			return *hits[i].DistanceMeters < *hits[j].DistanceMeters
		}
		return hits[i].ID < hits[j].ID
	})
	if limitCount > 0 && len(hits) > int(limitCount) {
		hits = hits[:limitCount]
	}
	return encode(hits)
}

// neighbourhoodReach is the largest radius the 3x3 block around center is
// guaranteed to cover, wherever the origin sits inside the center cell. It
// is zero when the block touches a pole or the antimeridian.
func neighbourhoodReach(center string) float64 {
	box := geohash.BoundingBox(center)
	height := box.MaxLat - box.MinLat
	width := box.MaxLng - box.MinLng

	south, north := box.MinLat-height, box.MaxLat+height
	if south <= -90 || north >= 90 || box.MinLng-width < -180 || box.MaxLng+width > 180 {
		return 0
	}

	latReach := earthRadiusMeters * height * math.Pi / 180
	// Meridians converge, so the narrowest point is the poleward edge.
	poleward := math.Max(math.Abs(south), math.Abs(north)) * math.Pi / 180
	lngReach := earthRadiusMeters * math.Asin(math.Cos(poleward)*math.Sin(width*math.Pi/180))
	return math.Min(latReach, lngReach)
}

// SearchByText returns facilities whose name, address, zone or subway
// contain text, case-insensitively.
func (s *Source) SearchByText(ctx context.Context, text string) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.TransportError{Op: "search", Status: domain.StatusNetworkError, Err: err}
	}

	needle := strings.ToLower(strings.TrimSpace(text))
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.ParkingFacility
	for _, f := range s.facilities {
		if needle == "" || contains(f, needle) {
			hits = append(hits, f)
		}
	}
	return encode(hits)
}

func contains(f domain.ParkingFacility, needle string) bool {
	fields := []string{f.Name, f.Address}
	if f.ZoneNumber != nil {
		fields = append(fields, *f.ZoneNumber)
	}
	if f.Subway != nil {
		fields = append(fields, *f.Subway)
	}
	for _, v := range fields {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func encode(facilities []domain.ParkingFacility) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(facilities))
	for i := range facilities {
		data, err := json.Marshal(&facilities[i])
		if err != nil {
			return nil, &domain.TransportError{Op: "encode", Status: domain.StatusServerError, Err: err}
		}
		out = append(out, data)
	}
	return out, nil
}
