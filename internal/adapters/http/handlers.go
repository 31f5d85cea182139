package http

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
)

const maxQueryLength = 200

// DatasetStatus reports how many facilities are loaded and stored.
type DatasetStatus struct {
	Loaded    int    `json:"loaded"`
	Stored    *int   `json:"stored,omitempty"`
	Matched   int    `json:"matched"`
	UpdatedAt string `json:"updated_at"`
}

// DatasetStatusHandler returns the size of the loaded and stored dataset.
func DatasetStatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		snap := deps.Engine.Snapshot()
		status := DatasetStatus{
			Loaded:    snap.Total,
			Matched:   snap.Matched,
			UpdatedAt: snap.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
		if deps.Store != nil {
			n, err := deps.Store.Count(c.UserContext())
			if err != nil {
				return errInternal(c, "count stored parkings failed")
			}
			status.Stored = &n
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(status)
	}
}

// ListParkingsHandler returns the full listing, optionally filtered locally
// by q, available, lat/lng and max_km. It never changes the engine state.
func ListParkingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := querySpecFromParams(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		parkings := usecases.FilterLocal(deps.Engine.All(), q)

		offset, limit := pageParams(c)
		page, pg := paginate(parkings, offset, limit)
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
	}
}

// GetParkingHandler returns a single parking by id.
func GetParkingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "parking id is required")
		}
		f, err := deps.Engine.Facility(id)
		if err != nil {
			return errNotFound(c, "parking not found")
		}
		return c.JSON(f)
	}
}

// NearbyParkingsHandler runs a stateless nearest-facilities lookup. Unlike a
// map click it does not move the search point or the selection.
func NearbyParkingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Query("lat") == "" || c.Query("lng") == "" {
			return errBadRequest(c, "lat and lng are required")
		}
		lat, err := queryFloat(c, "lat")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		lng, err := queryFloat(c, "lng")
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		origin := domain.GeoPoint{Lat: lat, Lng: lng}

		parkings, err := deps.Proximity.FindNearest(c.UserContext(), origin)
		if err != nil {
			return errEngine(c, err)
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(fiber.Map{
			"origin":        origin,
			"radius_meters": deps.Proximity.RadiusMeters(),
			"data":          parkings,
		})
	}
}

// ParkingRouteHandler returns a driving route link to a parking along with
// its share text.
func ParkingRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		link, err := deps.Engine.OpenRoute(c.UserContext(), id)
		if err != nil {
			return errEngine(c, err)
		}
		f, err := deps.Engine.Facility(id)
		if err != nil {
			return errEngine(c, err)
		}
		return c.JSON(fiber.Map{"url": link, "share_text": f.ShareText()})
	}
}

// StateHandler returns the current engine snapshot.
func StateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Engine.Snapshot())
	}
}

// SearchHandler runs a text query. Blank text filters the listing locally.
func SearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q domain.QuerySpec
		if err := c.BodyParser(&q); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if len(q.Text) > maxQueryLength {
			return errBadRequest(c, "query too long (max 200 characters)")
		}
		if q.Origin != nil && !q.Origin.Valid() {
			return errBadRequest(c, "origin has invalid coordinates")
		}

		snap, err := deps.Engine.Search(c.UserContext(), q)
		if err != nil {
			return errEngine(c, err)
		}
		return c.JSON(snap)
	}
}

// ClearSearchHandler restores the full listing.
func ClearSearchHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Engine.ClearSearch(c.UserContext()))
	}
}

type clickRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// MapClickHandler runs the nearest-facilities search around a clicked point.
func MapClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req clickRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.Lat == nil || req.Lng == nil {
			return errBadRequest(c, "lat and lng are required")
		}

		snap, err := deps.Engine.OnSurfaceClick(c.UserContext(), domain.GeoPoint{Lat: *req.Lat, Lng: *req.Lng})
		if err != nil {
			return errEngine(c, err)
		}
		return c.JSON(snap)
	}
}

// MapCameraHandler returns the camera and the placed markers.
func MapCameraHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"camera":  deps.Surface.Camera(),
			"markers": deps.Surface.Markers(),
		})
	}
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ViewportHandler resizes the map surface. An open callout is closed.
func ViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req viewportRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if err := deps.Surface.Resize(req.Width, req.Height); err != nil {
			return errBadRequest(c, "width and height must be positive")
		}
		return c.JSON(deps.Engine.OnViewportSizeChange(c.UserContext()))
	}
}

// MarkerClickHandler dispatches a click to a facility marker, which selects
// the facility and opens its callout.
func MarkerClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := deps.Surface.ClickMarker(usecases.FacilityMarkerID(id)); err != nil {
			return errNotFound(c, "no marker for this parking")
		}
		return c.JSON(deps.Engine.Snapshot())
	}
}

type selectionRequest struct {
	ID string `json:"id"`
}

// SelectHandler selects a parking from the active results.
func SelectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req selectionRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.ID) == "" {
			return errBadRequest(c, "id is required")
		}
		snap, err := deps.Engine.Select(c.UserContext(), req.ID)
		if err != nil {
			return errEngine(c, err)
		}
		return c.JSON(snap)
	}
}

// DeselectHandler drops the selection.
func DeselectHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Engine.Deselect(c.UserContext()))
	}
}

// CloseCalloutHandler closes the callout and keeps the selection.
func CloseCalloutHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Engine.CloseCallout(c.UserContext()))
	}
}

// querySpecFromParams reads q, available, lat, lng and max_km.
func querySpecFromParams(c *fiber.Ctx) (domain.QuerySpec, error) {
	q := domain.QuerySpec{
		Text:          c.Query("q"),
		OnlyAvailable: c.QueryBool("available", false),
	}
	if len(q.Text) > maxQueryLength {
		return q, fiber.NewError(400, "query too long (max 200 characters)")
	}
	if c.Query("lat") != "" && c.Query("lng") != "" {
		lat, err := queryFloat(c, "lat")
		if err != nil {
			return q, fiber.NewError(400, err.Error())
		}
		lng, err := queryFloat(c, "lng")
		if err != nil {
			return q, fiber.NewError(400, err.Error())
		}
		origin := domain.GeoPoint{Lat: lat, Lng: lng}
		if !origin.Valid() {
			return q, fiber.NewError(400, "lat/lng out of range")
		}
		q.Origin = &origin
	}
	if c.Query("max_km") != "" {
		km, err := queryFloat(c, "max_km")
		if err != nil {
			return q, fiber.NewError(400, err.Error())
		}
		if km < 0 {
			return q, fiber.NewError(400, "max_km must not be negative")
		}
		q.MaxDistanceKm = &km
	}
	return q, nil
}

// queryFloat parses a numeric query parameter. Unparseable and non-finite
// values are rejected rather than read as zero.
func queryFloat(c *fiber.Ctx, key string) (float64, error) {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}
