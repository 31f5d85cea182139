package geospatial_test

import (
	"math"
	"testing"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/pkg/geospatial"
)

func TestDistance_KnownPair(t *testing.T) {
	// Moscow Kremlin to Saint Petersburg Palace Square, ~634 km.
	a := domain.GeoPoint{Lat: 55.7520, Lng: 37.6175}
	b := domain.GeoPoint{Lat: 59.9390, Lng: 30.3158}

	d := geospatial.Distance(a, b)
	if d < 630 || d > 640 {
		t.Errorf("expected ~634 km, got %.2f", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	pairs := [][2]domain.GeoPoint{
		{{Lat: 55.75, Lng: 37.62}, {Lat: 55.76, Lng: 37.64}},
		{{Lat: -33.86, Lng: 151.20}, {Lat: 51.50, Lng: -0.12}},
		{{Lat: 0, Lng: 179.9}, {Lat: 0, Lng: -179.9}},
		{{Lat: 89.9, Lng: 0}, {Lat: -89.9, Lng: 180}},
	}
	for _, p := range pairs {
		ab := geospatial.Distance(p[0], p[1])
		ba := geospatial.Distance(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("distance not symmetric for %v: %v vs %v", p, ab, ba)
		}
	}
}

func TestDistance_ZeroForSamePoint(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 55.75, Lng: 37.62},
		{Lat: -90, Lng: 0},
		{Lat: 12.345678, Lng: -98.7654321},
	}
	for _, p := range points {
		if d := geospatial.Distance(p, p); d != 0 {
			t.Errorf("expected 0 for %v, got %v", p, d)
		}
	}
}

func TestDistance_RoughlyLinearForSmallAngles(t *testing.T) {
	origin := domain.GeoPoint{Lat: 55.75, Lng: 37.62}
	one := geospatial.Distance(origin, domain.GeoPoint{Lat: 55.75 + 0.01, Lng: 37.62})
	two := geospatial.Distance(origin, domain.GeoPoint{Lat: 55.75 + 0.02, Lng: 37.62})

	ratio := two / one
	if math.Abs(ratio-2) > 0.001 {
		t.Errorf("expected doubling separation to double distance, ratio %.5f", ratio)
	}
}

func TestDistanceMeters(t *testing.T) {
	a := domain.GeoPoint{Lat: 55.75, Lng: 37.62}
	b := domain.GeoPoint{Lat: 55.751, Lng: 37.62}
	km := geospatial.Distance(a, b)
	m := geospatial.DistanceMeters(a, b)
	if math.Abs(km*1000-m) > 1e-9 {
		t.Errorf("meters %v != km*1000 %v", m, km*1000)
	}
	if m < 100 || m > 120 {
		t.Errorf("expected ~111 m, got %.2f", m)
	}
}

func TestBoundingBox_ContainsRadius(t *testing.T) {
	center := domain.GeoPoint{Lat: 55.75, Lng: 37.62}
	box := geospatial.BoundingBox(center, 200)

	if !geospatial.InBounds(center, box) {
		t.Fatal("center must be inside its own bounding box")
	}
	north := domain.GeoPoint{Lat: center.Lat + 0.0017, Lng: center.Lng}
	if !geospatial.InBounds(north, box) {
		t.Errorf("point ~190 m north should be inside the 200 m box")
	}
	far := domain.GeoPoint{Lat: center.Lat + 0.01, Lng: center.Lng}
	if geospatial.InBounds(far, box) {
		t.Errorf("point ~1.1 km north should be outside the 200 m box")
	}
}

func TestBoundingBox_HighLatitudeLargeRadius(t *testing.T) {
	center := domain.GeoPoint{Lat: 55.75, Lng: 37.62}
	edge := domain.GeoPoint{Lat: 60.36, Lng: 70.62}
	if d := geospatial.Distance(center, edge); d > 2000 {
		t.Fatalf("fixture drifted: %.2f km", d)
	}

	box := geospatial.BoundingBox(center, 2000*1000)
	if !geospatial.InBounds(edge, box) {
		t.Errorf("point %.0f km away must be inside the 2000 km box %+v", geospatial.Distance(center, edge), box)
	}
}

func TestBoundingBox_ReachesPole(t *testing.T) {
	center := domain.GeoPoint{Lat: 85, Lng: 0}
	box := geospatial.BoundingBox(center, 1000*1000)

	if box.MinLng != -180 || box.MaxLng != 180 {
		t.Errorf("expected full longitude span, got %+v", box)
	}
	if box.MaxLat != 90 {
		t.Errorf("expected latitude clamped at the pole, got %v", box.MaxLat)
	}
	across := domain.GeoPoint{Lat: 88, Lng: 179}
	if geospatial.Distance(center, across) > 1000 {
		t.Fatal("fixture drifted")
	}
	if !geospatial.InBounds(across, box) {
		t.Error("point across the pole must be inside the box")
	}
}
