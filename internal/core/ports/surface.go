package ports

import "github.com/samirrijal/parkfinder/internal/core/domain"

// Marker is a handle to a marker placed on a MapSurface.
type Marker interface {
	ID() string
	// OnClick registers the callback invoked when the marker is clicked.
	// A later registration replaces the earlier one.
	OnClick(fn func())
}

// MapSurface renders markers and translates geographic points to pixels.
type MapSurface interface {
	// PlaceMarker adds a marker or replaces the one with the same id.
	PlaceMarker(id string, point domain.GeoPoint, style domain.MarkerStyle) (Marker, error)
	RemoveMarker(id string) error
	// ProjectToScreen returns the pixel position of point and whether it lies
	// inside the visible surface.
	ProjectToScreen(point domain.GeoPoint) (domain.ScreenPoint, bool)
	FitBoundsTo(points []domain.GeoPoint) error
	Viewport() domain.Viewport
}
