// Package surface provides a server-side map surface. It keeps the marker
// layer and the camera (center, zoom, viewport) of the client map so the
// engine can project callouts and fit bounds without a browser.
package surface

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
)

const (
	tileSize = 256
	// worldMeters is the width of the Web Mercator plane.
	worldMeters = 2 * math.Pi * orb.EarthRadius
	// fitPadding is the margin in pixels kept around fitted bounds.
	fitPadding = 40
)

// Camera is the visible part of the map.
type Camera struct {
	Center   domain.GeoPoint `json:"center"`
	Zoom     float64         `json:"zoom"`
	Viewport domain.Viewport `json:"viewport"`
}

// MarkerView describes a placed marker.
type MarkerView struct {
	ID    string             `json:"id"`
	Point domain.GeoPoint    `json:"point"`
	Style domain.MarkerStyle `json:"style"`
}

type marker struct {
	surface *Virtual
	id      string
	point   domain.GeoPoint
	style   domain.MarkerStyle
	onClick func()
}

func (m *marker) ID() string { return m.id }

func (m *marker) OnClick(fn func()) {
	m.surface.mu.Lock()
	m.onClick = fn
	m.surface.mu.Unlock()
}

// Virtual is an in-memory ports.MapSurface using the Web Mercator projection.
type Virtual struct {
	mu      sync.Mutex
	camera  Camera
	maxZoom float64
	markers map[string]*marker
}

// NewVirtual creates a surface showing center at zoom inside viewport.
// maxZoom caps FitBoundsTo.
func NewVirtual(center domain.GeoPoint, zoom, maxZoom float64, viewport domain.Viewport) *Virtual {
	return &Virtual{
		camera:  Camera{Center: center, Zoom: zoom, Viewport: viewport},
		maxZoom: maxZoom,
		markers: map[string]*marker{},
	}
}

// PlaceMarker implements ports.MapSurface. Re-placing an id keeps its click
// handler.
func (v *Virtual) PlaceMarker(id string, point domain.GeoPoint, style domain.MarkerStyle) (ports.Marker, error) {
	if !point.Valid() {
		return nil, fmt.Errorf("place marker %s: invalid point (%v, %v)", id, point.Lat, point.Lng)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.markers[id]; ok {
		m.point = point
		m.style = style
		return m, nil
	}
	m := &marker{surface: v, id: id, point: point, style: style}
	v.markers[id] = m
	return m, nil
}

// RemoveMarker implements ports.MapSurface.
func (v *Virtual) RemoveMarker(id string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.markers[id]; !ok {
		return fmt.Errorf("remove marker %s: not found", id)
	}
	delete(v.markers, id)
	return nil
}

// ProjectToScreen implements ports.MapSurface.
func (v *Virtual) ProjectToScreen(p domain.GeoPoint) (domain.ScreenPoint, bool) {
	v.mu.Lock()
	cam := v.camera
	v.mu.Unlock()

	scale := pixelsPerMeter(cam.Zoom)
	pm := project.WGS84.ToMercator(orb.Point{p.Lng, p.Lat})
	cm := project.WGS84.ToMercator(orb.Point{cam.Center.Lng, cam.Center.Lat})

	dx := pm[0] - cm[0]
	// Wrap across the antimeridian so the shorter way round is used.
	if dx > worldMeters/2 {
		dx -= worldMeters
	} else if dx < -worldMeters/2 {
		dx += worldMeters
	}

	sp := domain.ScreenPoint{
		X: cam.Viewport.Width/2 + dx*scale,
		Y: cam.Viewport.Height/2 - (pm[1]-cm[1])*scale,
	}
	return sp, cam.Viewport.Contains(sp)
}

// FitBoundsTo implements ports.MapSurface: it centers the camera on the
// bounds of points and picks the largest whole zoom, capped at maxZoom, that
// shows them all.
func (v *Virtual) FitBoundsTo(points []domain.GeoPoint) error {
	if len(points) == 0 {
		return nil
	}

	mp := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		if !p.Valid() {
			return fmt.Errorf("fit bounds: invalid point (%v, %v)", p.Lat, p.Lng)
		}
		mp = append(mp, project.WGS84.ToMercator(orb.Point{p.Lng, p.Lat}))
	}
	b := mp.Bound()
	center := project.Mercator.ToWGS84(b.Center())

	v.mu.Lock()
	defer v.mu.Unlock()

	vp := v.camera.Viewport
	zoom := v.maxZoom
	availW := math.Max(vp.Width-2*fitPadding, 1)
	availH := math.Max(vp.Height-2*fitPadding, 1)
	if w := b.Max[0] - b.Min[0]; w > 0 {
		zoom = math.Min(zoom, zoomFor(availW, w))
	}
	if h := b.Max[1] - b.Min[1]; h > 0 {
		zoom = math.Min(zoom, zoomFor(availH, h))
	}

	v.camera.Center = domain.GeoPoint{Lat: center[1], Lng: center[0]}
	v.camera.Zoom = math.Max(0, math.Floor(zoom))
	return nil
}

// Viewport implements ports.MapSurface.
func (v *Virtual) Viewport() domain.Viewport {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera.Viewport
}

// Resize changes the viewport size. Callers notify the engine afterwards so
// open callouts are closed.
func (v *Virtual) Resize(width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("resize: invalid size %vx%v", width, height)
	}
	v.mu.Lock()
	v.camera.Viewport = domain.Viewport{Width: width, Height: height}
	v.mu.Unlock()
	return nil
}

// SetView moves the camera.
func (v *Virtual) SetView(center domain.GeoPoint, zoom float64) error {
	if !center.Valid() || zoom < 0 {
		return fmt.Errorf("set view: invalid center or zoom")
	}
	v.mu.Lock()
	v.camera.Center = center
	v.camera.Zoom = zoom
	v.mu.Unlock()
	return nil
}

// Camera returns the current camera.
func (v *Virtual) Camera() Camera {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.camera
}

// Markers lists the placed markers ordered by id.
func (v *Virtual) Markers() []MarkerView {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]MarkerView, 0, len(v.markers))
	for _, m := range v.markers {
		out = append(out, MarkerView{ID: m.id, Point: m.point, Style: m.style})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClickMarker dispatches a click to the handler registered on marker id.
// The handler runs without the surface lock held.
func (v *Virtual) ClickMarker(id string) error {
	v.mu.Lock()
	m, ok := v.markers[id]
	var fn func()
	if ok {
		fn = m.onClick
	}
	v.mu.Unlock()

	if !ok {
		return fmt.Errorf("click marker %s: not found", id)
	}
	if fn != nil {
		fn()
	}
	return nil
}

func pixelsPerMeter(zoom float64) float64 {
	return tileSize * math.Pow(2, zoom) / worldMeters
}

// zoomFor returns the zoom at which meters of Mercator span fill pixels.
func zoomFor(pixels, meters float64) float64 {
	return math.Log2(pixels * worldMeters / (tileSize * meters))
}
