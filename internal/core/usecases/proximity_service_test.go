package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
)

func TestProximityService_FindNearest(t *testing.T) {
	origin := domain.GeoPoint{Lat: 55.0, Lng: 37.0}
	near := kmNorth(origin, 0.05)
	nearer := kmNorth(origin, 0.02)

	src := &mockSource{
		listNearFn: func(ctx context.Context, o domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error) {
			if limit != 5 || radius != 200 {
				t.Errorf("expected limit 5 radius 200, got %d %d", limit, radius)
			}
			return []json.RawMessage{
				flat("no-distance", near.Lat, near.Lng, 1, false),
				withDistance(flat("server", nearer.Lat, nearer.Lng, 1, false), 21),
				json.RawMessage(`{"id": "no-coords", "distance": 5}`),
			}, nil
		},
	}
	svc := usecases.NewProximityService(src, nil, 0, 0)

	got, err := svc.FindNearest(context.Background(), origin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalIDs(got, "server", "no-distance") {
		t.Fatalf("expected [server no-distance], got %v", ids(got))
	}
	if *got[0].DistanceMeters != 21 {
		t.Errorf("server distance must be kept, got %v", *got[0].DistanceMeters)
	}
	if d := *got[1].DistanceMeters; d < 45 || d > 55 {
		t.Errorf("expected locally computed ~50 m, got %.1f", d)
	}
}

func TestProximityService_FindNearest_CapsAndFiltersRadius(t *testing.T) {
	origin := domain.GeoPoint{Lat: 55.0, Lng: 37.0}
	src := &mockSource{
		listNearFn: func(ctx context.Context, o domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error) {
			var out []json.RawMessage
			for i, km := range []float64{0.19, 0.01, 0.5, 0.03, 0.04, 0.05, 0.06} {
				p := kmNorth(origin, km)
				out = append(out, flat(string(rune('a'+i)), p.Lat, p.Lng, 1, false))
			}
			return out, nil
		},
	}
	svc := usecases.NewProximityService(src, nil, 200, 5)

	got, err := svc.FindNearest(context.Background(), origin)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equalIDs(got, "b", "d", "e", "f", "g") {
		t.Errorf("expected five closest within radius, got %v", ids(got))
	}
}

func TestProximityService_FindNearest_TransportError(t *testing.T) {
	src := &mockSource{
		listNearFn: func(ctx context.Context, o domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error) {
			return nil, &domain.TransportError{Op: "near", Status: domain.StatusNetworkError}
		},
	}
	svc := usecases.NewProximityService(src, nil, 0, 0)

	origin := domain.GeoPoint{Lat: 55.0, Lng: 37.0}
	_, err := svc.FindNearest(context.Background(), origin)
	var pfe *domain.ProximitySearchFailedError
	if !errors.As(err, &pfe) {
		t.Fatalf("expected ProximitySearchFailedError, got %v", err)
	}
	if pfe.Origin != origin {
		t.Errorf("expected origin in error, got %+v", pfe.Origin)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != domain.StatusNetworkError {
		t.Errorf("expected network status class, got %v", err)
	}
}

func TestProximityService_FindNearest_Cached(t *testing.T) {
	origin := domain.GeoPoint{Lat: 55.0, Lng: 37.0}
	src := &mockSource{
		listNearFn: func(ctx context.Context, o domain.GeoPoint, limit, radius uint32) ([]json.RawMessage, error) {
			return []json.RawMessage{flat("a", origin.Lat, origin.Lng, 1, false)}, nil
		},
	}
	svc := usecases.NewProximityService(src, newMockCache(), 0, 0)

	for i := 0; i < 2; i++ {
		if _, err := svc.FindNearest(context.Background(), origin); err != nil {
			t.Fatal(err)
		}
	}
	if _, near := src.calls(); near != 1 {
		t.Errorf("expected one source call, got %d", near)
	}
}
