package usecases

import (
	"fmt"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
)

// SelectionManager owns the selection and callout state machine
// (idle, selected, callout open). It holds ids only and learns which ids
// exist through Reconcile. It is not safe for concurrent use; Engine
// serialises every call.
type SelectionManager struct {
	surface ports.MapSurface
	state   domain.SelectionState
	present map[string]struct{}
}

// NewSelectionManager creates an idle SelectionManager projecting callouts
// through surface.
func NewSelectionManager(surface ports.MapSurface) *SelectionManager {
	return &SelectionManager{
		surface: surface,
		state:   domain.SelectionState{Phase: domain.PhaseIdle},
		present: map[string]struct{}{},
	}
}

// State returns a copy of the current selection state.
func (m *SelectionManager) State() domain.SelectionState {
	out := domain.SelectionState{Phase: m.state.Phase}
	if m.state.SelectedID != nil {
		id := *m.state.SelectedID
		out.SelectedID = &id
	}
	if m.state.Callout != nil {
		c := *m.state.Callout
		out.Callout = &c
	}
	return out
}

// SelectedID returns the selected id or "".
func (m *SelectionManager) SelectedID() string {
	if m.state.SelectedID == nil {
		return ""
	}
	return *m.state.SelectedID
}

// Select makes id the selection. A callout anchored to another facility is
// closed.
func (m *SelectionManager) Select(id string) error {
	if _, ok := m.present[id]; !ok {
		return fmt.Errorf("select %q: %w", id, domain.ErrUnknownFacility)
	}
	if m.state.Callout != nil && m.state.Callout.FacilityID != id {
		m.state.Callout = nil
	}
	m.state.SelectedID = &id
	m.refreshPhase()
	return nil
}

// OpenCallout selects id and anchors its callout at the projection of point.
// A projection outside the visible surface is clamped to the surface center.
func (m *SelectionManager) OpenCallout(id string, point domain.GeoPoint) error {
	if _, ok := m.present[id]; !ok {
		return fmt.Errorf("open callout %q: %w", id, domain.ErrUnknownFacility)
	}

	anchor := &domain.CalloutAnchor{FacilityID: id, Point: point}
	screen, inside := m.surface.ProjectToScreen(point)
	vp := m.surface.Viewport()
	if !inside || !vp.Contains(screen) {
		screen = vp.Center()
		anchor.Clamped = true
	}
	anchor.ScreenX, anchor.ScreenY = screen.X, screen.Y

	m.state.SelectedID = &id
	m.state.Callout = anchor
	m.refreshPhase()
	return nil
}

// CloseCallout closes the callout and keeps the selection.
func (m *SelectionManager) CloseCallout() {
	m.state.Callout = nil
	m.refreshPhase()
}

// Clear drops the selection and the callout.
func (m *SelectionManager) Clear() {
	m.state = domain.SelectionState{Phase: domain.PhaseIdle}
}

// Reconcile records the ids of a new result collection and resets the state
// to idle when the selected facility is no longer part of it.
func (m *SelectionManager) Reconcile(collection []domain.ParkingFacility) {
	m.present = make(map[string]struct{}, len(collection))
	for i := range collection {
		m.present[collection[i].ID] = struct{}{}
	}
	if m.state.SelectedID == nil {
		return
	}
	if _, ok := m.present[*m.state.SelectedID]; !ok {
		m.Clear()
	}
}

// OnViewportSizeChange closes the callout; its pixel anchor is stale.
func (m *SelectionManager) OnViewportSizeChange() {
	m.CloseCallout()
}

// OnSurfaceClick closes the callout when the map is clicked elsewhere.
func (m *SelectionManager) OnSurfaceClick() {
	m.CloseCallout()
}

func (m *SelectionManager) refreshPhase() {
	switch {
	case m.state.SelectedID == nil:
		m.state.Phase = domain.PhaseIdle
		m.state.Callout = nil
	case m.state.Callout != nil:
		m.state.Phase = domain.PhaseCalloutOpen
	default:
		m.state.Phase = domain.PhaseSelected
	}
}
