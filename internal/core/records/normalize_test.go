package records_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/records"
)

const legacyPayload = `{
	"_id": "5c9b3e",
	"name": {"ru": "Парковка у Тверской", "en": "Tverskaya parking"},
	"address": {"street": {"ru": "Тверская улица"}, "house": {"ru": " 7 "}},
	"center": {"type": "Point", "coordinates": [37.6112, 55.7576]},
	"spaces": {"total": 40, "common": 12},
	"zone": {"number": 4001, "description": {"ru": "<p>380 руб/час</p>"}},
	"subway": {"ru": "Охотный Ряд"},
	"category": {"iconName": "paid"},
	"blocked": false
}`

const flatPayload = `{
	"id": "p-17",
	"name": "Flat parking",
	"address": "Arbat 10",
	"lat": 55.7512,
	"long": 37.5921,
	"capacity": "25",
	"free_spots": 3,
	"zone_number": "1703",
	"blocked": true,
	"distance": 148.5
}`

func TestDecode_ResolvesShape(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    records.Shape
	}{
		{"legacy by _id", legacyPayload, records.ShapeLegacy},
		{"legacy by localized name", `{"name": {"ru": "x"}}`, records.ShapeLegacy},
		{"flat", flatPayload, records.ShapeFlat},
		{"empty object", `{}`, records.ShapeFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := records.Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Shape() != tt.want {
				t.Errorf("expected shape %s, got %s", tt.want, rec.Shape())
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, payload := range []string{`null`, `[]`, `"text"`, `42`, `{broken`, ``} {
		_, err := records.Decode([]byte(payload))
		var mre *domain.MalformedRecordError
		if !errors.As(err, &mre) {
			t.Errorf("payload %q: expected MalformedRecordError, got %v", payload, err)
		}
	}
}

func TestNormalize_Legacy(t *testing.T) {
	f, err := records.NormalizeRaw([]byte(legacyPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.ID != "5c9b3e" {
		t.Errorf("expected id 5c9b3e, got %s", f.ID)
	}
	if f.Name != "Парковка у Тверской" {
		t.Errorf("unexpected name %q", f.Name)
	}
	if f.Address != "Тверская улица 7" {
		t.Errorf("unexpected address %q", f.Address)
	}
	if f.Coordinates == nil || f.Coordinates.Lat != 55.7576 || f.Coordinates.Lng != 37.6112 {
		t.Errorf("expected lat/lng swapped from GeoJSON order, got %+v", f.Coordinates)
	}
	if f.Capacity != 40 || f.FreeSpots != 12 {
		t.Errorf("unexpected spaces %d/%d", f.FreeSpots, f.Capacity)
	}
	if f.ZoneNumber == nil || *f.ZoneNumber != "4001" {
		t.Errorf("expected zone 4001, got %v", f.ZoneNumber)
	}
	if f.Subway == nil || *f.Subway != "Охотный Ряд" {
		t.Errorf("unexpected subway %v", f.Subway)
	}
	if f.PriceInfo == nil || *f.PriceInfo != "<p>380 руб/час</p>" {
		t.Errorf("unexpected price info %v", f.PriceInfo)
	}
	if f.Category == nil || *f.Category != "paid" {
		t.Errorf("unexpected category %v", f.Category)
	}
	if f.DistanceMeters != nil {
		t.Errorf("unranked listing must not carry a distance")
	}
}

func TestNormalize_Flat(t *testing.T) {
	f, err := records.NormalizeRaw([]byte(flatPayload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ID != "p-17" || f.Name != "Flat parking" || f.Address != "Arbat 10" {
		t.Errorf("unexpected identity fields %+v", f)
	}
	if f.Coordinates == nil || f.Coordinates.Lat != 55.7512 || f.Coordinates.Lng != 37.5921 {
		t.Errorf("unexpected coordinates %+v", f.Coordinates)
	}
	if f.Capacity != 25 {
		t.Errorf("expected numeric string capacity to parse, got %d", f.Capacity)
	}
	if !f.Blocked {
		t.Error("expected blocked")
	}
	if f.DistanceMeters == nil || *f.DistanceMeters != 148.5 {
		t.Errorf("expected server distance 148.5, got %v", f.DistanceMeters)
	}
}

func TestNormalize_MissingOptionalFields(t *testing.T) {
	for _, payload := range []string{`{}`, `{"_id": "only-id"}`, `{"zone": {"number": "12"}}`, `{"lat": "north", "lng": 37}`} {
		f, err := records.NormalizeRaw([]byte(payload))
		if err != nil {
			t.Fatalf("payload %s: unexpected error %v", payload, err)
		}
		if f.Coordinates != nil {
			t.Errorf("payload %s: expected nil coordinates, got %+v", payload, f.Coordinates)
		}
		if f.ID == "" {
			t.Errorf("payload %s: expected synthesised id", payload)
		}
		if f.Name == "" {
			t.Errorf("payload %s: expected fallback name", payload)
		}
		if f.Address != domain.AddressUnknown {
			t.Errorf("payload %s: expected sentinel address, got %q", payload, f.Address)
		}
		if f.Capacity != 0 || f.FreeSpots != 0 {
			t.Errorf("payload %s: unknown counts must be 0", payload)
		}
	}
}

func TestNormalize_FallbackNameUsesZone(t *testing.T) {
	f, err := records.NormalizeRaw([]byte(`{"_id": "abc", "zone": {"number": 12}}`))
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Parking No. 12" {
		t.Errorf("expected zone based name, got %q", f.Name)
	}

	f, err = records.NormalizeRaw([]byte(`{"_id": "abc"}`))
	if err != nil {
		t.Fatal(err)
	}
	if f.Name != "Parking No. abc" {
		t.Errorf("expected id based name, got %q", f.Name)
	}
}

func TestNormalize_InvalidCoordinatesDropped(t *testing.T) {
	payloads := []string{
		`{"_id": "a", "center": {"coordinates": [37.6]}}`,
		`{"_id": "a", "center": {"coordinates": [200, 55]}}`,
		`{"id": "a", "lat": 95, "lng": 37}`,
		`{"id": "a", "lat": 55}`,
	}
	for _, p := range payloads {
		f, err := records.NormalizeRaw([]byte(p))
		if err != nil {
			t.Fatal(err)
		}
		if f.Coordinates != nil {
			t.Errorf("payload %s: expected nil coordinates, got %+v", p, f.Coordinates)
		}
	}
}

func TestNormalize_SynthesisedIDIsDeterministic(t *testing.T) {
	payload := []byte(`{"name": {"ru": "Без номера"}, "center": {"coordinates": [37.6, 55.7]}}`)
	a, _ := records.NormalizeRaw(payload)
	b, _ := records.NormalizeRaw(payload)
	if a.ID == "" || a.ID != b.ID {
		t.Errorf("expected identical synthesised ids, got %q and %q", a.ID, b.ID)
	}

	other, _ := records.NormalizeRaw([]byte(`{"name": {"ru": "Другая"}, "center": {"coordinates": [37.6, 55.7]}}`))
	if other.ID == a.ID {
		t.Error("different records must not share a synthesised id")
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, payload := range []string{legacyPayload, flatPayload, `{}`, `{"zone": {"number": 3}}`} {
		first, err := records.NormalizeRaw([]byte(payload))
		if err != nil {
			t.Fatal(err)
		}
		canonical, err := json.Marshal(first)
		if err != nil {
			t.Fatal(err)
		}
		rec, err := records.Decode(canonical)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Shape() != records.ShapeFlat {
			t.Errorf("canonical encoding should decode as flat, got %s", rec.Shape())
		}
		second := records.Normalize(rec)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("normalize not idempotent for %s:\n first  %+v\n second %+v", payload, first, second)
		}
	}
}

func TestNormalizeBatch_SkipsMalformed(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(legacyPayload),
		json.RawMessage(`null`),
		json.RawMessage(flatPayload),
		json.RawMessage(`[1,2]`),
	}

	facilities, errs := records.NormalizeBatch(raws)
	if len(facilities) != 2 {
		t.Fatalf("expected 2 facilities, got %d", len(facilities))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	var mre *domain.MalformedRecordError
	if !errors.As(errs[0], &mre) || mre.Index != 1 {
		t.Errorf("expected malformed record at index 1, got %v", errs[0])
	}
	if facilities[0].ID != "5c9b3e" || facilities[1].ID != "p-17" {
		t.Errorf("batch order not preserved: %s, %s", facilities[0].ID, facilities[1].ID)
	}
}
