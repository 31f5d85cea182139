package domain

import "math"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and inside the WGS 84 range.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// ScreenPoint is a pixel position on the map surface, origin at the top-left corner.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the visible size of the map surface in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside the viewport.
func (v Viewport) Contains(p ScreenPoint) bool {
	return p.X >= 0 && p.X <= v.Width && p.Y >= 0 && p.Y <= v.Height
}

// Center returns the middle of the viewport.
func (v Viewport) Center() ScreenPoint {
	return ScreenPoint{X: v.Width / 2, Y: v.Height / 2}
}
