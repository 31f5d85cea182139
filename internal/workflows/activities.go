package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/records"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
)

// upsertChunk bounds a single pgx batch.
const upsertChunk = 500

// cachedPrefix is the key prefix of every cached listing and search result.
const cachedPrefix = "parkings:"

// CacheInvalidator drops cached keys by prefix.
type CacheInvalidator interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// SyncResult summarises one dataset synchronisation.
type SyncResult struct {
	Fetched int
	Stored  int
	Skipped int
}

// RefreshActivities holds the activity implementations for the dataset
// refresh workflow.
type RefreshActivities struct {
	Upstream ports.ParkingDataSource
	Store    ports.ParkingRepository
	Notifier ports.DatasetNotifier // optional
	Cache    CacheInvalidator      // optional
}

// SyncParkings fetches the full upstream listing, normalises it and upserts
// every valid record. Malformed records are skipped. An empty listing is an
// error so the stored dataset is never wiped by an upstream glitch.
func (a *RefreshActivities) SyncParkings(ctx context.Context) (SyncResult, error) {
	raws, err := a.Upstream.ListAll(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch upstream listing: %w", err)
	}

	facilities, errs := records.NormalizeBatch(raws)
	for _, e := range errs {
		slog.WarnContext(ctx, "skipping malformed upstream record", "error", e)
	}
	metrics.MalformedRecords.WithLabelValues("refresh").Add(float64(len(errs)))

	res := SyncResult{Fetched: len(raws), Skipped: len(errs)}
	if len(facilities) == 0 {
		return res, fmt.Errorf("upstream returned no usable parkings (%d records)", len(raws))
	}

	for start := 0; start < len(facilities); start += upsertChunk {
		end := start + upsertChunk
		if end > len(facilities) {
			end = len(facilities)
		}
		if err := a.Store.UpsertBatch(ctx, facilities[start:end]); err != nil {
			return res, fmt.Errorf("upsert parkings %d-%d: %w", start, end, err)
		}
		res.Stored = end
	}

	slog.InfoContext(ctx, "parkings synchronised", "fetched", res.Fetched, "stored", res.Stored, "skipped", res.Skipped)
	return res, nil
}

// CountParkings returns the number of stored facilities.
func (a *RefreshActivities) CountParkings(ctx context.Context) (int, error) {
	n, err := a.Store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count parkings: %w", err)
	}
	return n, nil
}

// InvalidateCache drops cached search and proximity results.
func (a *RefreshActivities) InvalidateCache(ctx context.Context) (int, error) {
	if a.Cache == nil {
		return 0, nil
	}
	n, err := a.Cache.DeletePrefix(ctx, cachedPrefix)
	if err != nil {
		return n, fmt.Errorf("invalidate cache: %w", err)
	}
	return n, nil
}

// PublishDatasetRefreshed tells API instances to reload.
func (a *RefreshActivities) PublishDatasetRefreshed(ctx context.Context, count int) error {
	if a.Notifier == nil {
		slog.InfoContext(ctx, "dataset refreshed (no notifier)", "count", count)
		return nil
	}
	return a.Notifier.PublishDatasetRefreshed(ctx, count)
}
