package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
)

func TestAvailabilityTracker_FirstPollIsBaseline(t *testing.T) {
	src := &mockSource{listAllFn: func(ctx context.Context) ([]json.RawMessage, error) {
		return []json.RawMessage{flat("1", 55.75, 37.61, 10, false)}, nil
	}}
	pub := &mockPublisher{}
	tr := usecases.NewAvailabilityTracker(src, pub)

	changes, err := tr.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes on first poll, got %d", len(changes))
	}
	if len(pub.broadcasts) != 0 {
		t.Errorf("expected no broadcast, got %d", len(pub.broadcasts))
	}
}

func TestAvailabilityTracker_BroadcastsChanges(t *testing.T) {
	poll := 0
	src := &mockSource{listAllFn: func(ctx context.Context) ([]json.RawMessage, error) {
		poll++
		if poll == 1 {
			return []json.RawMessage{
				flat("1", 55.75, 37.61, 10, false),
				flat("2", 55.76, 37.62, 3, false),
				flat("3", 55.77, 37.63, 7, false),
			}, nil
		}
		return []json.RawMessage{
			flat("1", 55.75, 37.61, 10, false),
			flat("2", 55.76, 37.62, 0, false),
			flat("3", 55.77, 37.63, 7, true),
			flat("4", 55.78, 37.64, 9, false),
			json.RawMessage(`42`),
		}, nil
	}}
	pub := &mockPublisher{}
	tr := usecases.NewAvailabilityTracker(src, pub)

	if _, err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}
	changes, err := tr.Poll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0].ID != "2" || changes[0].FreeSpots != 0 || changes[0].PrevFreeSpots != 3 || changes[0].Available {
		t.Errorf("unexpected change for 2: %+v", changes[0])
	}
	if changes[1].ID != "3" || !changes[1].Blocked || changes[1].Available {
		t.Errorf("unexpected change for 3: %+v", changes[1])
	}

	if len(pub.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(pub.broadcasts))
	}
	var upd usecases.AvailabilityUpdate
	if err := json.Unmarshal(pub.broadcasts[0], &upd); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if upd.Event != "availability_changed" || len(upd.Changes) != 2 {
		t.Errorf("unexpected broadcast: %+v", upd)
	}
}

func TestAvailabilityTracker_SourceFailure(t *testing.T) {
	src := &mockSource{listAllFn: func(ctx context.Context) ([]json.RawMessage, error) {
		return nil, &domain.TransportError{Op: "list", Status: domain.StatusServerError, Err: errors.New("boom")}
	}}
	tr := usecases.NewAvailabilityTracker(src, &mockPublisher{})

	_, err := tr.Poll(context.Background())
	var te *domain.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestAvailabilityTracker_DiffForgetsRemoved(t *testing.T) {
	tr := usecases.NewAvailabilityTracker(&mockSource{}, &mockPublisher{})
	tr.Diff([]domain.ParkingFacility{{ID: "1", FreeSpots: 1}, {ID: "2", FreeSpots: 4}})

	changes := tr.Diff([]domain.ParkingFacility{{ID: "1", FreeSpots: 2}})
	if len(changes) != 1 || changes[0].PrevFreeSpots != 1 || changes[0].FreeSpots != 2 || !changes[0].Available {
		t.Fatalf("unexpected diff: %+v", changes)
	}

	// 2 reappears with no baseline, so it is not a change.
	if changes := tr.Diff([]domain.ParkingFacility{{ID: "1", FreeSpots: 2}, {ID: "2", FreeSpots: 0}}); len(changes) != 0 {
		t.Fatalf("expected no changes, got %+v", changes)
	}
}

func TestAvailabilityTracker_PublishFailure(t *testing.T) {
	poll := 0
	src := &mockSource{listAllFn: func(ctx context.Context) ([]json.RawMessage, error) {
		poll++
		return []json.RawMessage{flat("1", 55.75, 37.61, uint32(poll), false)}, nil
	}}
	tr := usecases.NewAvailabilityTracker(src, &mockPublisher{broadcastErr: errors.New("nats down")})
	if _, err := tr.Poll(context.Background()); err != nil {
		t.Fatalf("baseline: %v", err)
	}

	changes, err := tr.Poll(context.Background())
	if err == nil {
		t.Fatal("expected publish error")
	}
	if len(changes) != 1 {
		t.Errorf("expected the change to be returned, got %d", len(changes))
	}
}
