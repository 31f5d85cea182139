package domain

import "fmt"

// AddressUnknown is the address shown when a record carries no street data.
const AddressUnknown = "address unknown"

// ParkingFacility is the canonical parking record every provider shape is
// normalised into.
type ParkingFacility struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	Coordinates    *GeoPoint `json:"coordinates"`
	Capacity       uint32    `json:"capacity"`
	FreeSpots      uint32    `json:"free_spots"`
	ZoneNumber     *string   `json:"zone_number,omitempty"`
	Subway         *string   `json:"subway,omitempty"`
	PriceInfo      *string   `json:"price_info,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Blocked        bool      `json:"blocked"`
	DistanceMeters *float64  `json:"distance,omitempty"` // computed field
}

// Available reports whether the facility accepts cars right now.
func (f *ParkingFacility) Available() bool {
	return !f.Blocked && f.FreeSpots > 0
}

// ShareText is the short plain-text description used when sharing a facility.
func (f *ParkingFacility) ShareText() string {
	return fmt.Sprintf("%s - %s", f.Name, f.Address)
}

// Clone returns a deep copy so snapshots never alias engine-owned state.
func (f ParkingFacility) Clone() ParkingFacility {
	out := f
	if f.Coordinates != nil {
		c := *f.Coordinates
		out.Coordinates = &c
	}
	out.ZoneNumber = cloneString(f.ZoneNumber)
	out.Subway = cloneString(f.Subway)
	out.PriceInfo = cloneString(f.PriceInfo)
	out.Category = cloneString(f.Category)
	if f.DistanceMeters != nil {
		d := *f.DistanceMeters
		out.DistanceMeters = &d
	}
	return out
}

// CloneFacilities deep-copies a facility slice.
func CloneFacilities(in []ParkingFacility) []ParkingFacility {
	if in == nil {
		return nil
	}
	out := make([]ParkingFacility, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// QuerySpec describes one local or remote query over the facility collection.
// MaxDistanceKm is only honoured together with Origin.
type QuerySpec struct {
	Text          string    `json:"text"`
	OnlyAvailable bool      `json:"only_available"`
	MaxDistanceKm *float64  `json:"max_distance_km,omitempty"`
	Origin        *GeoPoint `json:"origin,omitempty"`
}

// DistanceFilterActive reports whether the radius filter applies.
func (q QuerySpec) DistanceFilterActive() bool {
	return q.MaxDistanceKm != nil && *q.MaxDistanceKm > 0 && q.Origin != nil
}
