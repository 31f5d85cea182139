// Package records turns raw provider payloads into domain.ParkingFacility values.
//
// Two provider shapes are known. The legacy mos_parking listing nests
// localised strings ({"ru": "..."}) and stores the position as a GeoJSON
// point under "center". The flat shape, returned by the proximity and search
// endpoints, carries plain strings and top-level lat/long fields. The shape is
// resolved once in Decode; Normalize never inspects fields of the other shape.
package records

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// Shape identifies which provider layout a record was decoded from.
type Shape string

const (
	ShapeLegacy Shape = "legacy"
	ShapeFlat   Shape = "flat"
)

// Record is a decoded provider record: either *LegacyRecord or *FlatRecord.
type Record interface {
	Shape() Shape
}

// LegacyRecord is the nested mos_parking layout.
type LegacyRecord struct {
	ID              *string
	Name            *string
	Street          *string
	House           *string
	Center          *domain.GeoPoint
	SpacesTotal     *float64
	SpacesCommon    *float64
	ZoneNumber      *string
	ZoneDescription *string
	Subway          *string
	Category        *string
	Blocked         bool
}

// Shape implements Record.
func (*LegacyRecord) Shape() Shape { return ShapeLegacy }

// FlatRecord is the flat lat/long layout. The canonical JSON encoding of
// domain.ParkingFacility also decodes as a FlatRecord.
type FlatRecord struct {
	ID         *string
	Name       *string
	Address    *string
	Street     *string
	House      *string
	Lat        *float64
	Lng        *float64
	Capacity   *float64
	FreeSpots  *float64
	ZoneNumber *string
	Subway     *string
	PriceInfo  *string
	Category   *string
	Blocked    bool
	Distance   *float64 // meters, server computed
}

// Shape implements Record.
func (*FlatRecord) Shape() Shape { return ShapeFlat }

// legacyMarkers are keys only the nested layout uses.
var legacyMarkers = []string{"_id", "center", "spaces", "zone"}

// Decode parses one raw provider record. Anything that is not a JSON object
// yields a *domain.MalformedRecordError.
func Decode(raw []byte) (Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, &domain.MalformedRecordError{Index: -1, Reason: "empty payload"}
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, &domain.MalformedRecordError{Index: -1, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &domain.MalformedRecordError{Index: -1, Reason: fmt.Sprintf("expected object, got %s", kindOf(v))}
	}
	return decodeObject(obj), nil
}

func decodeObject(obj map[string]any) Record {
	if isLegacy(obj) {
		return decodeLegacy(obj)
	}
	return decodeFlat(obj)
}

func isLegacy(obj map[string]any) bool {
	for _, k := range legacyMarkers {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	// Localised name or address objects only occur in the nested layout.
	if _, ok := obj["name"].(map[string]any); ok {
		return true
	}
	if _, ok := obj["address"].(map[string]any); ok {
		return true
	}
	return false
}

func decodeLegacy(obj map[string]any) *LegacyRecord {
	r := &LegacyRecord{
		ID:      stringField(obj, "_id", "id"),
		Name:    localized(obj["name"]),
		Blocked: boolField(obj, "blocked"),
	}

	if addr, ok := obj["address"].(map[string]any); ok {
		r.Street = localized(addr["street"])
		r.House = localized(addr["house"])
	}

	if center, ok := obj["center"].(map[string]any); ok {
		r.Center = geoJSONPoint(center["coordinates"])
	}

	if spaces, ok := obj["spaces"].(map[string]any); ok {
		r.SpacesTotal = numberField(spaces, "total")
		r.SpacesCommon = numberField(spaces, "common")
	}

	if zone, ok := obj["zone"].(map[string]any); ok {
		r.ZoneNumber = stringField(zone, "number")
		r.ZoneDescription = localized(zone["description"])
	}

	r.Subway = localized(obj["subway"])

	if cat, ok := obj["category"].(map[string]any); ok {
		r.Category = stringField(cat, "iconName")
	} else {
		r.Category = stringField(obj, "category")
	}

	return r
}

func decodeFlat(obj map[string]any) *FlatRecord {
	r := &FlatRecord{
		ID:         stringField(obj, "id", "_id"),
		Name:       stringField(obj, "name"),
		Address:    stringField(obj, "address"),
		Street:     stringField(obj, "street"),
		House:      stringField(obj, "house"),
		Lat:        numberField(obj, "lat", "latitude"),
		Lng:        numberField(obj, "lng", "long", "lon", "longitude"),
		Capacity:   numberField(obj, "capacity", "total_spots"),
		FreeSpots:  numberField(obj, "free_spots", "available_spots", "free"),
		ZoneNumber: stringField(obj, "zone_number"),
		Subway:     stringField(obj, "subway"),
		PriceInfo:  stringField(obj, "price_info"),
		Category:   stringField(obj, "category"),
		Blocked:    boolField(obj, "blocked"),
		Distance:   numberField(obj, "distance", "distance_meters"),
	}

	// Canonical records nest the position.
	if r.Lat == nil && r.Lng == nil {
		if c, ok := obj["coordinates"].(map[string]any); ok {
			r.Lat = numberField(c, "lat", "latitude")
			r.Lng = numberField(c, "lng", "long", "lon", "longitude")
		}
	}

	return r
}
