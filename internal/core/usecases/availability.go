package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/records"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
)

// AvailabilityChange reports a facility whose free spots or blocked flag
// moved between two polls.
type AvailabilityChange struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FreeSpots     uint32    `json:"free_spots"`
	PrevFreeSpots uint32    `json:"prev_free_spots"`
	Blocked       bool      `json:"blocked"`
	Available     bool      `json:"available"`
	ObservedAt    time.Time `json:"observed_at"`
}

// AvailabilityUpdate is the broadcast payload for one poll.
type AvailabilityUpdate struct {
	Event   string               `json:"event"`
	Changes []AvailabilityChange `json:"changes"`
}

type availabilityState struct {
	free    uint32
	blocked bool
}

// AvailabilityTracker polls the full listing and broadcasts the facilities
// whose availability changed since the previous poll. The first poll only
// records a baseline.
type AvailabilityTracker struct {
	source    ports.ParkingDataSource
	publisher ports.EventPublisher
	now       func() time.Time

	mu   sync.Mutex
	last map[string]availabilityState
}

// NewAvailabilityTracker creates a tracker reading source and announcing
// through publisher.
func NewAvailabilityTracker(source ports.ParkingDataSource, publisher ports.EventPublisher) *AvailabilityTracker {
	return &AvailabilityTracker{source: source, publisher: publisher, now: time.Now}
}

// Poll fetches the listing once and publishes the changes it found.
func (t *AvailabilityTracker) Poll(ctx context.Context) ([]AvailabilityChange, error) {
	raws, err := t.source.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll availability: %w", err)
	}

	facilities, errs := records.NormalizeBatch(raws)
	if len(errs) > 0 {
		metrics.MalformedRecords.WithLabelValues("availability").Add(float64(len(errs)))
		slog.DebugContext(ctx, "availability poll skipped malformed records", "count", len(errs))
	}

	changes := t.Diff(facilities)
	if len(changes) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(AvailabilityUpdate{Event: "availability_changed", Changes: changes})
	if err != nil {
		return changes, fmt.Errorf("encode availability update: %w", err)
	}
	if err := t.publisher.PublishBroadcast(ctx, data); err != nil {
		return changes, fmt.Errorf("publish availability update: %w", err)
	}
	return changes, nil
}

// Diff compares facilities with the previous call and remembers them as the
// new baseline. Facilities absent from the listing are forgotten.
func (t *AvailabilityTracker) Diff(facilities []domain.ParkingFacility) []AvailabilityChange {
	next := make(map[string]availabilityState, len(facilities))
	for _, f := range facilities {
		next[f.ID] = availabilityState{free: f.FreeSpots, blocked: f.Blocked}
	}

	t.mu.Lock()
	prev := t.last
	t.last = next
	t.mu.Unlock()

	if prev == nil {
		return nil
	}

	observed := t.now().UTC()
	var changes []AvailabilityChange
	for _, f := range facilities {
		old, ok := prev[f.ID]
		if !ok || (old.free == f.FreeSpots && old.blocked == f.Blocked) {
			continue
		}
		changes = append(changes, AvailabilityChange{
			ID:            f.ID,
			Name:          f.Name,
			FreeSpots:     f.FreeSpots,
			PrevFreeSpots: old.free,
			Blocked:       f.Blocked,
			Available:     f.Available(),
			ObservedAt:    observed,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].ID < changes[j].ID })
	return changes
}
