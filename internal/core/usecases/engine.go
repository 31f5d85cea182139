package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
)

// SearchMarkerID is the id of the single transient marker placed at the last
// clicked point.
const SearchMarkerID = "search-point"

const facilityMarkerPrefix = "parking:"

// FacilityMarkerID is the surface marker id of a facility.
func FacilityMarkerID(facilityID string) string {
	return facilityMarkerPrefix + facilityID
}

// Engine owns the facility collection, the active results and the selection.
// Every event runs under one mutex; data source calls happen outside it and
// their responses are applied only if no newer request was issued meanwhile.
type Engine struct {
	query     *QueryService
	proximity *ProximityService
	selection *SelectionManager
	surface   ports.MapSurface
	routes    ports.RouteOpener
	publisher ports.EventPublisher

	mu          sync.Mutex
	all         []domain.ParkingFacility
	results     []domain.ParkingFacility
	spec        domain.QuerySpec
	remote      bool
	searchPoint *domain.GeoPoint
	searching   bool
	notice      *domain.NoResultsCondition
	lastErr     error
	version     uint64
	reqSeq      uint64
	cancel      context.CancelFunc
	markers     map[string]struct{}
	updatedAt   time.Time

	// pubMu orders publishing. Snapshots reach the publisher in Seq order;
	// one that lost the race to a newer snapshot is dropped.
	pubMu         sync.Mutex
	lastPublished uint64
}

// NewEngine creates an Engine with an empty collection. publisher and routes
// may be nil.
func NewEngine(
	query *QueryService,
	proximity *ProximityService,
	surface ports.MapSurface,
	routes ports.RouteOpener,
	publisher ports.EventPublisher,
) *Engine {
	return &Engine{
		query:     query,
		proximity: proximity,
		selection: NewSelectionManager(surface),
		surface:   surface,
		routes:    routes,
		publisher: publisher,
		markers:   map[string]struct{}{},
		updatedAt: time.Now(),
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Facility returns a copy of the facility with id from the full listing or
// the active results.
func (e *Engine) Facility(id string) (domain.ParkingFacility, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f := findFacility(e.results, id); f != nil {
		return f.Clone(), nil
	}
	if f := findFacility(e.all, id); f != nil {
		return f.Clone(), nil
	}
	return domain.ParkingFacility{}, fmt.Errorf("facility %q: %w", id, domain.ErrUnknownFacility)
}

// All returns a copy of the full listing.
func (e *Engine) All() []domain.ParkingFacility {
	e.mu.Lock()
	defer e.mu.Unlock()
	return domain.CloneFacilities(e.all)
}

// Reload replaces the full listing from the data source. Unless a remote
// search or a click search is showing, the active query is re-applied.
func (e *Engine) Reload(ctx context.Context) (domain.Snapshot, error) {
	all, err := e.query.LoadAll(ctx)

	e.mu.Lock()
	if err != nil {
		e.lastErr = err
		snap := e.commitLocked()
		e.mu.Unlock()
		slog.ErrorContext(ctx, "reload parkings failed", "error", err)
		return snap, err
	}

	e.all = all
	metrics.FacilitiesLoaded.Set(float64(len(all)))
	if !e.remote && e.searchPoint == nil {
		e.applyResultsLocked(FilterLocal(e.all, e.spec))
		e.noticeForQueryLocked()
	}
	e.lastErr = nil
	snap := e.commitLocked()
	e.mu.Unlock()

	slog.InfoContext(ctx, "parkings reloaded", "total", len(all))
	e.publish(ctx, &snap)
	return snap, nil
}

// Search runs q. Blank text filters the full listing locally; any other text
// is sent to the data source and its answer replaces the results. A failed
// remote search keeps the previous results and selection.
func (e *Engine) Search(ctx context.Context, q domain.QuerySpec) (domain.Snapshot, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		e.mu.Lock()
		e.supersedeLocked()
		e.searching = false
		e.spec = cloneQuery(q)
		e.remote = false
		e.applyResultsLocked(FilterLocal(e.all, q))
		e.noticeForQueryLocked()
		e.lastErr = nil
		snap := e.commitLocked()
		e.mu.Unlock()

		metrics.Searches.WithLabelValues("local", "ok").Inc()
		e.publish(ctx, &snap)
		return snap, nil
	}

	e.mu.Lock()
	seq, reqCtx := e.beginRequestLocked(ctx)
	e.mu.Unlock()

	results, err := e.query.SearchRemote(reqCtx, text)

	e.mu.Lock()
	if seq != e.reqSeq {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("search").Inc()
		slog.DebugContext(ctx, "discarding superseded search response", "query", text)
		return snap, domain.ErrSuperseded
	}
	e.endRequestLocked()

	if err != nil {
		e.lastErr = err
		snap := e.commitLocked()
		e.mu.Unlock()
		metrics.Searches.WithLabelValues("remote", "error").Inc()
		return snap, err
	}

	e.spec = cloneQuery(q)
	e.remote = true
	e.applyResultsLocked(results)
	e.notice = nil
	if len(results) == 0 {
		e.notice = &domain.NoResultsCondition{Query: text}
	}
	e.lastErr = nil
	snap := e.commitLocked()
	e.mu.Unlock()

	metrics.Searches.WithLabelValues("remote", "ok").Inc()
	e.publish(ctx, &snap)
	return snap, nil
}

// ClearSearch drops any text or click search, removes the transient marker
// and restores the full listing with no selection.
func (e *Engine) ClearSearch(ctx context.Context) domain.Snapshot {
	e.mu.Lock()
	e.supersedeLocked()
	e.searching = false
	e.removeSearchMarkerLocked()
	e.searchPoint = nil
	e.spec = domain.QuerySpec{}
	e.remote = false
	e.selection.Clear()
	e.applyResultsLocked(domain.CloneFacilities(e.all))
	e.notice = nil
	e.lastErr = nil
	snap := e.commitLocked()
	e.mu.Unlock()

	e.publish(ctx, &snap)
	return snap
}

// OnSurfaceClick runs the bounded nearest-facilities search around point.
// The transient marker moves to point immediately and a click arriving while
// a previous one is pending supersedes it. On success the closest facility
// is selected; on failure the previous results and selection are kept.
func (e *Engine) OnSurfaceClick(ctx context.Context, point domain.GeoPoint) (domain.Snapshot, error) {
	if !point.Valid() {
		metrics.SurfaceClicks.WithLabelValues("invalid").Inc()
		return e.Snapshot(), &domain.InvalidClickError{Point: point}
	}

	e.mu.Lock()
	seq, reqCtx := e.beginRequestLocked(ctx)
	e.selection.OnSurfaceClick()
	e.placeSearchMarkerLocked(point)
	pending := e.commitLocked()
	e.mu.Unlock()
	e.publish(ctx, &pending)

	results, err := e.proximity.FindNearest(reqCtx, point)

	e.mu.Lock()
	if seq != e.reqSeq {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		metrics.StaleResponses.WithLabelValues("surface_click").Inc()
		slog.DebugContext(ctx, "discarding superseded proximity response", "lat", point.Lat, "lng", point.Lng)
		return snap, domain.ErrSuperseded
	}
	e.endRequestLocked()

	if err != nil {
		e.lastErr = err
		snap := e.commitLocked()
		e.mu.Unlock()
		metrics.SurfaceClicks.WithLabelValues("error").Inc()
		slog.WarnContext(ctx, "proximity search failed", "lat", point.Lat, "lng", point.Lng, "error", err)
		return snap, err
	}

	e.remote = false
	e.spec = domain.QuerySpec{}
	e.lastErr = nil
	e.applyResultsLocked(results)
	if len(results) == 0 {
		e.notice = &domain.NoResultsCondition{Origin: &point, RadiusMeters: e.proximity.RadiusMeters()}
		metrics.SurfaceClicks.WithLabelValues("empty").Inc()
	} else {
		e.notice = nil
		if err := e.selection.Select(results[0].ID); err != nil {
			slog.ErrorContext(ctx, "auto-select nearest failed", "id", results[0].ID, "error", err)
		}
		e.syncMarkersLocked()
		metrics.SurfaceClicks.WithLabelValues("ok").Inc()
	}
	snap := e.commitLocked()
	e.mu.Unlock()

	e.publish(ctx, &snap)
	return snap, nil
}

// Select makes id the selected facility.
func (e *Engine) Select(ctx context.Context, id string) (domain.Snapshot, error) {
	return e.mutate(ctx, func() error {
		if err := e.selection.Select(id); err != nil {
			return err
		}
		e.syncMarkersLocked()
		return nil
	})
}

// OnMarkerClick selects the facility behind a marker and opens its callout.
func (e *Engine) OnMarkerClick(ctx context.Context, id string) (domain.Snapshot, error) {
	return e.mutate(ctx, func() error {
		f := findFacility(e.results, id)
		if f == nil {
			return fmt.Errorf("marker click %q: %w", id, domain.ErrUnknownFacility)
		}
		if f.Coordinates == nil {
			return fmt.Errorf("marker click %q: %w", id, domain.ErrNoCoordinates)
		}
		if err := e.selection.OpenCallout(id, *f.Coordinates); err != nil {
			return err
		}
		e.syncMarkersLocked()
		return nil
	})
}

// Deselect drops the selection and closes the callout.
func (e *Engine) Deselect(ctx context.Context) domain.Snapshot {
	snap, _ := e.mutate(ctx, func() error {
		e.selection.Clear()
		e.syncMarkersLocked()
		return nil
	})
	return snap
}

// CloseCallout closes the callout and keeps the selection.
func (e *Engine) CloseCallout(ctx context.Context) domain.Snapshot {
	snap, _ := e.mutate(ctx, func() error {
		e.selection.CloseCallout()
		return nil
	})
	return snap
}

// OnViewportSizeChange force-closes the callout after the surface was
// resized.
func (e *Engine) OnViewportSizeChange(ctx context.Context) domain.Snapshot {
	snap, _ := e.mutate(ctx, func() error {
		e.selection.OnViewportSizeChange()
		return nil
	})
	return snap
}

// OpenRoute hands the position of facility id to the route opener and
// returns the opened link.
func (e *Engine) OpenRoute(ctx context.Context, id string) (string, error) {
	if e.routes == nil {
		return "", fmt.Errorf("open route: no route opener configured")
	}

	f, err := e.Facility(id)
	if err != nil {
		return "", err
	}
	if f.Coordinates == nil {
		return "", fmt.Errorf("open route %q: %w", id, domain.ErrNoCoordinates)
	}

	link, err := e.routes.OpenRoute(ctx, *f.Coordinates)
	if err != nil {
		return "", fmt.Errorf("open route %q: %w", id, err)
	}
	return link, nil
}

// mutate runs fn under the lock. State is committed and published only when
// fn succeeds.
func (e *Engine) mutate(ctx context.Context, fn func() error) (domain.Snapshot, error) {
	e.mu.Lock()
	if err := fn(); err != nil {
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, err
	}
	snap := e.commitLocked()
	e.mu.Unlock()

	e.publish(ctx, &snap)
	return snap, nil
}

// beginRequestLocked supersedes any pending request and starts a new one.
func (e *Engine) beginRequestLocked(ctx context.Context) (uint64, context.Context) {
	e.supersedeLocked()
	reqCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.searching = true
	return e.reqSeq, reqCtx
}

func (e *Engine) endRequestLocked() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.searching = false
}

// supersedeLocked invalidates and cancels the pending request, if any.
func (e *Engine) supersedeLocked() {
	e.reqSeq++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// applyResultsLocked replaces the results and reconciles the selection in the
// same critical section.
func (e *Engine) applyResultsLocked(results []domain.ParkingFacility) {
	if results == nil {
		results = []domain.ParkingFacility{}
	}
	e.results = results
	e.selection.Reconcile(e.results)
	e.syncMarkersLocked()
}

func (e *Engine) noticeForQueryLocked() {
	e.notice = nil
	if len(e.results) == 0 && len(e.all) > 0 {
		e.notice = &domain.NoResultsCondition{Query: strings.TrimSpace(e.spec.Text)}
	}
}

func (e *Engine) placeSearchMarkerLocked(point domain.GeoPoint) {
	e.removeSearchMarkerLocked()
	if _, err := e.surface.PlaceMarker(SearchMarkerID, point, domain.MarkerSearch); err != nil {
		slog.Warn("place search marker failed", "error", err)
	}
	p := point
	e.searchPoint = &p
}

func (e *Engine) removeSearchMarkerLocked() {
	if e.searchPoint == nil {
		return
	}
	if err := e.surface.RemoveMarker(SearchMarkerID); err != nil {
		slog.Warn("remove search marker failed", "error", err)
	}
}

// syncMarkersLocked makes the facility markers match the results, with the
// selected facility highlighted. Without a search marker the surface is
// fitted to the results.
func (e *Engine) syncMarkersLocked() {
	selected := e.selection.SelectedID()
	wanted := make(map[string]struct{}, len(e.results))
	points := make([]domain.GeoPoint, 0, len(e.results))

	for i := range e.results {
		f := &e.results[i]
		if f.Coordinates == nil {
			continue
		}
		wanted[f.ID] = struct{}{}
		points = append(points, *f.Coordinates)

		style := domain.MarkerDefault
		if f.ID == selected {
			style = domain.MarkerSelected
		}
		marker, err := e.surface.PlaceMarker(FacilityMarkerID(f.ID), *f.Coordinates, style)
		if err != nil {
			slog.Warn("place parking marker failed", "id", f.ID, "error", err)
			continue
		}
		id := f.ID
		marker.OnClick(func() {
			if _, err := e.OnMarkerClick(context.Background(), id); err != nil {
				slog.Warn("marker click failed", "id", id, "error", err)
			}
		})
	}

	for id := range e.markers {
		if _, ok := wanted[id]; ok {
			continue
		}
		if err := e.surface.RemoveMarker(FacilityMarkerID(id)); err != nil {
			slog.Warn("remove parking marker failed", "id", id, "error", err)
		}
	}
	e.markers = wanted

	if e.searchPoint == nil && len(points) > 0 {
		if err := e.surface.FitBoundsTo(points); err != nil {
			slog.Warn("fit bounds failed", "error", err)
		}
	}
}

func (e *Engine) commitLocked() domain.Snapshot {
	e.version++
	e.updatedAt = time.Now()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Seq:       e.version,
		Results:   domain.CloneFacilities(e.results),
		Total:     len(e.all),
		Matched:   len(e.results),
		Query:     cloneQuery(e.spec),
		Remote:    e.remote,
		Searching: e.searching,
		Selection: e.selection.State(),
		UpdatedAt: e.updatedAt,
	}
	if snap.Results == nil {
		snap.Results = []domain.ParkingFacility{}
	}
	if e.searchPoint != nil {
		p := *e.searchPoint
		snap.SearchPoint = &p
	}
	if e.notice != nil {
		n := *e.notice
		if n.Origin != nil {
			o := *n.Origin
			n.Origin = &o
		}
		snap.Notice = &n
		snap.NoticeText = n.Message()
	}
	if e.lastErr != nil && !errors.Is(e.lastErr, domain.ErrSuperseded) {
		snap.LastError = domain.UserMessage(e.lastErr)
	}
	return snap
}

func (e *Engine) publish(ctx context.Context, snap *domain.Snapshot) {
	if e.publisher == nil {
		return
	}
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	if snap.Seq <= e.lastPublished {
		slog.DebugContext(ctx, "stale state not published", "seq", snap.Seq, "last", e.lastPublished)
		return
	}
	e.lastPublished = snap.Seq
	if err := e.publisher.PublishState(ctx, snap); err != nil {
		slog.WarnContext(ctx, "publish state failed", "seq", snap.Seq, "error", err)
	}
}

func cloneQuery(q domain.QuerySpec) domain.QuerySpec {
	out := domain.QuerySpec{Text: q.Text, OnlyAvailable: q.OnlyAvailable}
	if q.MaxDistanceKm != nil {
		d := *q.MaxDistanceKm
		out.MaxDistanceKm = &d
	}
	if q.Origin != nil {
		o := *q.Origin
		out.Origin = &o
	}
	return out
}

func findFacility(list []domain.ParkingFacility, id string) *domain.ParkingFacility {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
