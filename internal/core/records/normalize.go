package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// idNamespace scopes synthesised facility ids.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("parkfinder/facility"))

// Normalize maps a decoded record onto the canonical facility. It never
// fails: every missing optional field degrades to its fallback.
func Normalize(r Record) domain.ParkingFacility {
	switch rec := r.(type) {
	case *LegacyRecord:
		return normalizeLegacy(rec)
	case *FlatRecord:
		return normalizeFlat(rec)
	}
	return domain.ParkingFacility{Name: "Parking", Address: domain.AddressUnknown}
}

// NormalizeRaw decodes and normalises a single raw record.
func NormalizeRaw(raw []byte) (domain.ParkingFacility, error) {
	rec, err := Decode(raw)
	if err != nil {
		return domain.ParkingFacility{}, err
	}
	return Normalize(rec), nil
}

// NormalizeBatch normalises every record it can. Malformed records are
// skipped and reported with their batch index; they never abort the batch.
func NormalizeBatch(raws []json.RawMessage) ([]domain.ParkingFacility, []error) {
	out := make([]domain.ParkingFacility, 0, len(raws))
	var errs []error
	for i, raw := range raws {
		f, err := NormalizeRaw(raw)
		if err != nil {
			var mre *domain.MalformedRecordError
			if errors.As(err, &mre) {
				err = &domain.MalformedRecordError{Index: i, Reason: mre.Reason}
			}
			errs = append(errs, err)
			continue
		}
		out = append(out, f)
	}
	return out, errs
}

func normalizeLegacy(r *LegacyRecord) domain.ParkingFacility {
	f := domain.ParkingFacility{
		Address:    joinAddress(r.Street, r.House),
		Capacity:   toCount(r.SpacesTotal),
		FreeSpots:  toCount(r.SpacesCommon),
		ZoneNumber: r.ZoneNumber,
		Subway:     r.Subway,
		PriceInfo:  r.ZoneDescription,
		Category:   r.Category,
		Blocked:    r.Blocked,
	}
	if r.Center != nil {
		c := *r.Center
		f.Coordinates = &c
	}

	f.ID = deref(r.ID)
	if f.ID == "" {
		f.ID = synthesizeID(ShapeLegacy, r.Name, f.Address, f.Coordinates, r.ZoneNumber)
	}
	f.Name = displayName(r.Name, r.ZoneNumber, f.ID)
	return f
}

func normalizeFlat(r *FlatRecord) domain.ParkingFacility {
	f := domain.ParkingFacility{
		Capacity:   toCount(r.Capacity),
		FreeSpots:  toCount(r.FreeSpots),
		ZoneNumber: r.ZoneNumber,
		Subway:     r.Subway,
		PriceInfo:  r.PriceInfo,
		Category:   r.Category,
		Blocked:    r.Blocked,
	}

	if r.Address != nil {
		f.Address = *r.Address
	} else {
		f.Address = joinAddress(r.Street, r.House)
	}

	if r.Lat != nil && r.Lng != nil {
		p := domain.GeoPoint{Lat: *r.Lat, Lng: *r.Lng}
		if p.Valid() {
			f.Coordinates = &p
		}
	}

	if r.Distance != nil && *r.Distance >= 0 {
		d := *r.Distance
		f.DistanceMeters = &d
	}

	f.ID = deref(r.ID)
	if f.ID == "" {
		f.ID = synthesizeID(ShapeFlat, r.Name, f.Address, f.Coordinates, r.ZoneNumber)
	}
	f.Name = displayName(r.Name, r.ZoneNumber, f.ID)
	return f
}

func joinAddress(street, house *string) string {
	addr := strings.TrimSpace(deref(street) + " " + deref(house))
	if addr == "" {
		return domain.AddressUnknown
	}
	return addr
}

func displayName(name, zone *string, id string) string {
	if name != nil {
		return *name
	}
	if zone != nil {
		return "Parking No. " + *zone
	}
	return "Parking No. " + id
}

// synthesizeID derives a stable id from the record content so repeated
// normalisation of the same payload yields the same facility.
func synthesizeID(shape Shape, name *string, address string, coords *domain.GeoPoint, zone *string) string {
	key := fmt.Sprintf("%s|%s|%s|%s", shape, deref(name), address, deref(zone))
	if coords != nil {
		key += fmt.Sprintf("|%.7f,%.7f", coords.Lat, coords.Lng)
	}
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
