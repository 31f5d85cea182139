package domain

// SelectionPhase is the state of the selection/callout state machine.
type SelectionPhase string

const (
	PhaseIdle        SelectionPhase = "idle"
	PhaseSelected    SelectionPhase = "selected"
	PhaseCalloutOpen SelectionPhase = "callout_open"
)

// CalloutAnchor is the pixel position of the detail overlay for one facility.
type CalloutAnchor struct {
	FacilityID string   `json:"facility_id"`
	ScreenX    float64  `json:"screen_x"`
	ScreenY    float64  `json:"screen_y"`
	Point      GeoPoint `json:"point"`
	Clamped    bool     `json:"clamped"` // projected outside the surface, pinned to its center
}

// SelectionState is the process-wide selection. It references the selected
// facility by id only so replacing the collection never leaves a stale object.
type SelectionState struct {
	Phase      SelectionPhase `json:"phase"`
	SelectedID *string        `json:"selected_id,omitempty"`
	Callout    *CalloutAnchor `json:"callout,omitempty"`
}

// MarkerStyle tells the map surface how to draw a marker.
type MarkerStyle string

const (
	MarkerDefault  MarkerStyle = "default"
	MarkerSelected MarkerStyle = "selected"
	MarkerSearch   MarkerStyle = "search"
)
