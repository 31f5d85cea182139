package records

import (
	"math"
	"strconv"
	"strings"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// stringField returns the first key holding a non-empty string or number.
func stringField(obj map[string]any, keys ...string) *string {
	for _, k := range keys {
		if s := asString(obj[k]); s != nil {
			return s
		}
	}
	return nil
}

// numberField returns the first key holding a finite number or numeric string.
func numberField(obj map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if f := asNumber(obj[k]); f != nil {
			return f
		}
	}
	return nil
}

func boolField(obj map[string]any, key string) bool {
	switch v := obj[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	case float64:
		return v != 0
	}
	return false
}

func asString(v any) *string {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		return &s
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	}
	return nil
}

func asNumber(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// localized unwraps {"ru": "...", "en": "..."} objects, preferring Russian as
// the provider does. Plain strings pass through.
func localized(v any) *string {
	switch t := v.(type) {
	case map[string]any:
		return stringField(t, "ru", "en")
	default:
		return asString(v)
	}
}

// geoJSONPoint reads a [lng, lat] pair.
func geoJSONPoint(v any) *domain.GeoPoint {
	pair, ok := v.([]any)
	if !ok || len(pair) < 2 {
		return nil
	}
	lng := asNumber(pair[0])
	lat := asNumber(pair[1])
	if lat == nil || lng == nil {
		return nil
	}
	p := domain.GeoPoint{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		return nil
	}
	return &p
}

func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return "unknown"
}

// toCount clamps a provider count into uint32; unknown or negative counts are 0.
func toCount(f *float64) uint32 {
	if f == nil || *f <= 0 {
		return 0
	}
	if *f >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(*f)
}
