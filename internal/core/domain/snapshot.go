package domain

import "time"

// Snapshot is a read-only copy of the engine state handed to views. It never
// aliases engine-owned memory, so a view re-fetches instead of caching.
type Snapshot struct {
	Seq         uint64              `json:"seq"`
	Results     []ParkingFacility   `json:"results"`
	Total       int                 `json:"total"`   // size of the full listing
	Matched     int                 `json:"matched"` // size of Results
	Query       QuerySpec           `json:"query"`
	Remote      bool                `json:"remote"`
	SearchPoint *GeoPoint           `json:"search_point,omitempty"`
	Searching   bool                `json:"searching"`
	Selection   SelectionState      `json:"selection"`
	Notice      *NoResultsCondition `json:"notice,omitempty"`
	NoticeText  string              `json:"notice_text,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Selected returns the selected facility from Results, if any.
func (s *Snapshot) Selected() *ParkingFacility {
	if s.Selection.SelectedID == nil {
		return nil
	}
	for i := range s.Results {
		if s.Results[i].ID == *s.Selection.SelectedID {
			return &s.Results[i]
		}
	}
	return nil
}
