package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownFacility is returned when an id is not part of the active results.
var ErrUnknownFacility = errors.New("facility not in current results")

// ErrNoCoordinates is returned when a spatial operation targets a facility
// without a position.
var ErrNoCoordinates = errors.New("facility has no coordinates")

// ErrSuperseded is returned to the caller of a request whose response was
// discarded because a newer request replaced it.
var ErrSuperseded = errors.New("request superseded by a newer one")

// StatusClass is the coarse HTTP-like failure class reported by a data source.
type StatusClass string

const (
	StatusNotFound     StatusClass = "not_found"
	StatusServerError  StatusClass = "server_error"
	StatusNetworkError StatusClass = "network_error"
)

// TransportError is a data source failure.
type TransportError struct {
	Op     string
	Status StatusClass
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Status, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedRecordError reports a provider record that is not a JSON object.
type MalformedRecordError struct {
	Index  int // position in the batch, -1 for single records
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Index < 0 {
		return "malformed record: " + e.Reason
	}
	return fmt.Sprintf("malformed record #%d: %s", e.Index, e.Reason)
}

// InvalidClickError reports a surface click with unusable coordinates.
type InvalidClickError struct {
	Point GeoPoint
}

func (e *InvalidClickError) Error() string {
	return fmt.Sprintf("invalid click coordinates (%v, %v)", e.Point.Lat, e.Point.Lng)
}

// SearchFailedError reports a failed remote text search.
type SearchFailedError struct {
	Query string
	Err   error
}

func (e *SearchFailedError) Error() string {
	return fmt.Sprintf("search %q failed: %v", e.Query, e.Err)
}

func (e *SearchFailedError) Unwrap() error { return e.Err }

// ProximitySearchFailedError reports a failed nearest-facilities request.
type ProximitySearchFailedError struct {
	Origin GeoPoint
	Err    error
}

func (e *ProximitySearchFailedError) Error() string {
	return fmt.Sprintf("proximity search at (%.5f, %.5f) failed: %v", e.Origin.Lat, e.Origin.Lng, e.Err)
}

func (e *ProximitySearchFailedError) Unwrap() error { return e.Err }

// NoResultsCondition describes an empty result set. It is informational and
// deliberately not an error.
type NoResultsCondition struct {
	Query        string    `json:"query,omitempty"`
	Origin       *GeoPoint `json:"origin,omitempty"`
	RadiusMeters uint32    `json:"radius_meters,omitempty"`
}

// Message is the user-facing empty-state text.
func (c NoResultsCondition) Message() string {
	if c.Origin != nil && c.RadiusMeters > 0 {
		return fmt.Sprintf("nothing within %d m", c.RadiusMeters)
	}
	if c.Query != "" {
		return fmt.Sprintf("no parking matches %q", c.Query)
	}
	return "no parking found, change the filters or click on the map"
}

// UserMessage maps an engine error to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		invalid   *InvalidClickError
		search    *SearchFailedError
		proximity *ProximitySearchFailedError
		transport *TransportError
	)
	switch {
	case errors.As(err, &invalid):
		return "the clicked point has invalid coordinates"
	case errors.Is(err, ErrUnknownFacility):
		return "this parking is no longer in the results"
	case errors.Is(err, ErrNoCoordinates):
		return "coordinates are not available for this parking"
	case errors.Is(err, ErrSuperseded):
		return ""
	}

	prefix := "request failed"
	switch {
	case errors.As(err, &search):
		prefix = "search failed"
	case errors.As(err, &proximity):
		prefix = "nearby search failed"
	}

	if errors.As(err, &transport) {
		switch transport.Status {
		case StatusNotFound:
			return prefix + ": the parking service endpoint was not found, try again later"
		case StatusServerError:
			return prefix + ": the parking service is unavailable, try again later"
		case StatusNetworkError:
			return prefix + ": check your connection and retry"
		}
	}
	return prefix + ", please retry"
}
