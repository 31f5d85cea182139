package usecases_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
)

func collection(ids ...string) []domain.ParkingFacility {
	out := make([]domain.ParkingFacility, len(ids))
	for i, id := range ids {
		out[i] = facility(id, 1, false, ptr(moscow))
	}
	return out
}

func TestSelectionManager_Transitions(t *testing.T) {
	m := usecases.NewSelectionManager(newMockSurface())
	m.Reconcile(collection("a", "b"))

	if got := m.State().Phase; got != domain.PhaseIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	if err := m.Select("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st := m.State(); st.Phase != domain.PhaseSelected || *st.SelectedID != "a" {
		t.Fatalf("expected selected a, got %+v", st)
	}

	if err := m.OpenCallout("b", moscow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := m.State()
	if st.Phase != domain.PhaseCalloutOpen || *st.SelectedID != "b" || st.Callout.FacilityID != "b" {
		t.Fatalf("expected callout on b, got %+v", st)
	}
	if st.Callout.ScreenX != 100 || st.Callout.ScreenY != 120 || st.Callout.Clamped {
		t.Errorf("unexpected anchor %+v", st.Callout)
	}

	m.CloseCallout()
	if st := m.State(); st.Phase != domain.PhaseSelected || st.Callout != nil {
		t.Fatalf("expected selected without callout, got %+v", st)
	}

	m.Clear()
	if st := m.State(); st.Phase != domain.PhaseIdle || st.SelectedID != nil {
		t.Fatalf("expected idle, got %+v", st)
	}
}

func TestSelectionManager_UnknownID(t *testing.T) {
	m := usecases.NewSelectionManager(newMockSurface())
	m.Reconcile(collection("a"))

	if err := m.Select("zzz"); !errors.Is(err, domain.ErrUnknownFacility) {
		t.Errorf("expected ErrUnknownFacility, got %v", err)
	}
	if err := m.OpenCallout("zzz", moscow); !errors.Is(err, domain.ErrUnknownFacility) {
		t.Errorf("expected ErrUnknownFacility, got %v", err)
	}
	if m.State().Phase != domain.PhaseIdle {
		t.Error("failed operations must not change the state")
	}
}

func TestSelectionManager_CalloutClampedToCenter(t *testing.T) {
	tests := []struct {
		name    string
		project func(domain.GeoPoint) (domain.ScreenPoint, bool)
	}{
		{"reported outside", func(domain.GeoPoint) (domain.ScreenPoint, bool) {
			return domain.ScreenPoint{X: 5000, Y: -20}, false
		}},
		{"outside viewport", func(domain.GeoPoint) (domain.ScreenPoint, bool) {
			return domain.ScreenPoint{X: 900, Y: 10}, true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			surface := newMockSurface()
			surface.projectFn = tt.project
			m := usecases.NewSelectionManager(surface)
			m.Reconcile(collection("a"))

			if err := m.OpenCallout("a", moscow); err != nil {
				t.Fatal(err)
			}
			c := m.State().Callout
			if c == nil || !c.Clamped || c.ScreenX != 400 || c.ScreenY != 300 {
				t.Errorf("expected anchor clamped to (400,300), got %+v", c)
			}
		})
	}
}

func TestSelectionManager_ReconcileDropsDanglingSelection(t *testing.T) {
	m := usecases.NewSelectionManager(newMockSurface())
	m.Reconcile(collection("a", "b"))
	if err := m.OpenCallout("a", moscow); err != nil {
		t.Fatal(err)
	}

	m.Reconcile(collection("a", "c"))
	if st := m.State(); st.Phase != domain.PhaseCalloutOpen {
		t.Errorf("selection still present, expected callout kept, got %+v", st)
	}

	m.Reconcile(collection("c"))
	st := m.State()
	if st.Phase != domain.PhaseIdle || st.SelectedID != nil || st.Callout != nil {
		t.Errorf("expected selection and callout reset, got %+v", st)
	}

	m.Reconcile(nil)
	if err := m.Select("c"); !errors.Is(err, domain.ErrUnknownFacility) {
		t.Errorf("ids from an older collection must not be selectable, got %v", err)
	}
}

func TestSelectionManager_ViewportAndSurfaceClickCloseCallout(t *testing.T) {
	for name, event := range map[string]func(m *usecases.SelectionManager){
		"viewport size change": (*usecases.SelectionManager).OnViewportSizeChange,
		"surface click":        (*usecases.SelectionManager).OnSurfaceClick,
	} {
		t.Run(name, func(t *testing.T) {
			m := usecases.NewSelectionManager(newMockSurface())
			m.Reconcile(collection("a"))
			if err := m.OpenCallout("a", moscow); err != nil {
				t.Fatal(err)
			}
			event(m)
			st := m.State()
			if st.Phase != domain.PhaseSelected || st.Callout != nil || *st.SelectedID != "a" {
				t.Errorf("expected selected without callout, got %+v", st)
			}
		})
	}
}

func TestSelectionManager_SelectOtherClosesCallout(t *testing.T) {
	m := usecases.NewSelectionManager(newMockSurface())
	m.Reconcile(collection("a", "b"))
	_ = m.OpenCallout("a", moscow)

	if err := m.Select("b"); err != nil {
		t.Fatal(err)
	}
	if st := m.State(); st.Callout != nil || st.Phase != domain.PhaseSelected {
		t.Errorf("expected callout closed after selecting another facility, got %+v", st)
	}
}

func TestSelectionManager_StateIsACopy(t *testing.T) {
	m := usecases.NewSelectionManager(newMockSurface())
	m.Reconcile(collection("a"))
	_ = m.OpenCallout("a", moscow)

	st := m.State()
	*st.SelectedID = "mutated"
	st.Callout.ScreenX = -1

	again := m.State()
	if *again.SelectedID != "a" || again.Callout.ScreenX != 100 {
		t.Errorf("state leaked internal pointers: %+v", again)
	}
}
