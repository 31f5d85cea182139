package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// GeoJSONHandler returns the active results, or the full listing with
// ?scope=all, as a GeoJSON FeatureCollection. Facilities without a position
// are left out.
func GeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var parkings []domain.ParkingFacility
		selected := ""
		switch c.Query("scope", "results") {
		case "results":
			snap := deps.Engine.Snapshot()
			parkings = snap.Results
			if sel := snap.Selected(); sel != nil {
				selected = sel.ID
			}
		case "all":
			parkings = deps.Engine.All()
		default:
			return errBadRequest(c, "scope must be results or all")
		}

		data, err := featureCollection(parkings, selected).MarshalJSON()
		if err != nil {
			return errInternal(c, "encode geojson failed")
		}
		c.Set("Content-Type", "application/geo+json")
		return c.Send(data)
	}
}

func featureCollection(parkings []domain.ParkingFacility, selected string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range parkings {
		if p.Coordinates == nil {
			continue
		}
		f := geojson.NewFeature(orb.Point{p.Coordinates.Lng, p.Coordinates.Lat})
		f.ID = p.ID
		f.Properties["name"] = p.Name
		f.Properties["address"] = p.Address
		f.Properties["capacity"] = p.Capacity
		f.Properties["free_spots"] = p.FreeSpots
		f.Properties["available"] = p.Available()
		f.Properties["selected"] = p.ID == selected
		if p.ZoneNumber != nil {
			f.Properties["zone_number"] = *p.ZoneNumber
		}
		if p.DistanceMeters != nil {
			f.Properties["distance"] = *p.DistanceMeters
		}
		fc.Append(f)
	}
	return fc
}
