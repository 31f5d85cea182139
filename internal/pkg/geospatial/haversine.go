package geospatial

import (
	"math"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

const earthRadiusKm = 6371.0

// Distance calculates the great-circle distance in kilometers between two points.
func Distance(a, b domain.GeoPoint) float64 {
	if a == b {
		return 0
	}
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// DistanceMeters is Distance expressed in meters.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	return Distance(a, b) * 1000
}

// Haversine calculates the great-circle distance in kilometers between two points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BoundingBox returns the smallest latitude/longitude box that holds every
// point within radiusMeters of p. When the radius reaches a pole the box spans
// every longitude. Longitude bounds may fall outside [-180, 180] near the
// antimeridian; callers decide how to treat that.
func BoundingBox(p domain.GeoPoint, radiusMeters float64) domain.Bounds {
	d := radiusMeters / (earthRadiusKm * 1000)
	latDelta := toDeg(d)

	b := domain.Bounds{
		MinLat: p.Lat - latDelta,
		MaxLat: p.Lat + latDelta,
		MinLng: -180,
		MaxLng: 180,
	}
	if b.MinLat <= -90 || b.MaxLat >= 90 || d >= math.Pi {
		b.MinLat = math.Max(b.MinLat, -90)
		b.MaxLat = math.Min(b.MaxLat, 90)
		return b
	}

	// Widest longitude offset reached on the circle, at the tangent meridians.
	ratio := math.Sin(d) / math.Cos(toRad(p.Lat))
	if ratio >= 1 {
		return b
	}
	lngDelta := toDeg(math.Asin(ratio))
	b.MinLng = p.Lng - lngDelta
	b.MaxLng = p.Lng + lngDelta
	return b
}

// InBounds reports whether p lies inside b.
func InBounds(p domain.GeoPoint, b domain.Bounds) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
