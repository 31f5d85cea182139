package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
)

// --- Mock ParkingDataSource ---

type mockSource struct {
	listAllFn      func(ctx context.Context) ([]json.RawMessage, error)
	listNearFn     func(ctx context.Context, origin domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error)
	searchByTextFn func(ctx context.Context, text string) ([]json.RawMessage, error)

	mu          sync.Mutex
	searchCalls int
	nearCalls   int
}

func (m *mockSource) ListAll(ctx context.Context) ([]json.RawMessage, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockSource) ListNear(ctx context.Context, origin domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error) {
	m.mu.Lock()
	m.nearCalls++
	m.mu.Unlock()
	if m.listNearFn != nil {
		return m.listNearFn(ctx, origin, limit, radius)
	}
	return nil, nil
}

func (m *mockSource) SearchByText(ctx context.Context, text string) ([]json.RawMessage, error) {
	m.mu.Lock()
	m.searchCalls++
	m.mu.Unlock()
	if m.searchByTextFn != nil {
		return m.searchByTextFn(ctx, text)
	}
	return nil, nil
}

func (m *mockSource) calls() (search, near int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.searchCalls, m.nearCalls
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (c *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// --- Mock MapSurface ---

type mockMarker struct {
	id      string
	point   domain.GeoPoint
	style   domain.MarkerStyle
	onClick func()
}

func (m *mockMarker) ID() string        { return m.id }
func (m *mockMarker) OnClick(fn func()) { m.onClick = fn }

type mockSurface struct {
	mu                sync.Mutex
	markers           map[string]*mockMarker
	viewport          domain.Viewport
	projectFn         func(p domain.GeoPoint) (domain.ScreenPoint, bool)
	fitCalls          int
	peakSearchMarkers int
}

func newMockSurface() *mockSurface {
	return &mockSurface{
		markers:  map[string]*mockMarker{},
		viewport: domain.Viewport{Width: 800, Height: 600},
	}
}

func (s *mockSurface) PlaceMarker(id string, point domain.GeoPoint, style domain.MarkerStyle) (ports.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &mockMarker{id: id, point: point, style: style}
	s.markers[id] = m
	if n := s.countStyleLocked(domain.MarkerSearch); n > s.peakSearchMarkers {
		s.peakSearchMarkers = n
	}
	return m, nil
}

func (s *mockSurface) RemoveMarker(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markers[id]; !ok {
		return fmt.Errorf("marker %s not found", id)
	}
	delete(s.markers, id)
	return nil
}

func (s *mockSurface) ProjectToScreen(p domain.GeoPoint) (domain.ScreenPoint, bool) {
	if s.projectFn != nil {
		return s.projectFn(p)
	}
	return domain.ScreenPoint{X: 100, Y: 120}, true
}

func (s *mockSurface) FitBoundsTo(points []domain.GeoPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitCalls++
	return nil
}

func (s *mockSurface) Viewport() domain.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewport
}

func (s *mockSurface) countStyle(style domain.MarkerStyle) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countStyleLocked(style)
}

func (s *mockSurface) countStyleLocked(style domain.MarkerStyle) int {
	n := 0
	for _, m := range s.markers {
		if m.style == style {
			n++
		}
	}
	return n
}

func (s *mockSurface) marker(id string) *mockMarker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markers[id]
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu           sync.Mutex
	seqs         []uint64
	broadcasts   [][]byte
	broadcastErr error
}

func (p *mockPublisher) PublishState(ctx context.Context, snap *domain.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seqs = append(p.seqs, snap.Seq)
	return nil
}

func (p *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broadcastErr != nil {
		return p.broadcastErr
	}
	p.broadcasts = append(p.broadcasts, data)
	return nil
}

// --- Mock RouteOpener ---

type mockRoutes struct {
	openFn func(ctx context.Context, dest domain.GeoPoint) (string, error)
}

func (r *mockRoutes) OpenRoute(ctx context.Context, dest domain.GeoPoint) (string, error) {
	if r.openFn != nil {
		return r.openFn(ctx, dest)
	}
	return fmt.Sprintf("route:%v,%v", dest.Lat, dest.Lng), nil
}

// --- Fixtures ---

// flat builds a flat provider record.
func flat(id string, lat, lng float64, free uint32, blocked bool) json.RawMessage {
	rec := map[string]any{
		"id":         id,
		"name":       "Parking " + id,
		"address":    "Street " + id,
		"lat":        lat,
		"lng":        lng,
		"capacity":   50,
		"free_spots": free,
		"blocked":    blocked,
	}
	data, _ := json.Marshal(rec)
	return data
}

func withDistance(raw json.RawMessage, meters float64) json.RawMessage {
	var rec map[string]any
	_ = json.Unmarshal(raw, &rec)
	rec["distance"] = meters
	data, _ := json.Marshal(rec)
	return data
}

func ptr[T any](v T) *T { return &v }

// kmNorth returns a point km kilometres north of p.
func kmNorth(p domain.GeoPoint, km float64) domain.GeoPoint {
	return domain.GeoPoint{Lat: p.Lat + km/111.19, Lng: p.Lng}
}
