package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/samirrijal/parkfinder/internal/adapters/memory"
	"github.com/samirrijal/parkfinder/internal/adapters/mosapi"
	natsadapter "github.com/samirrijal/parkfinder/internal/adapters/nats"
	"github.com/samirrijal/parkfinder/internal/adapters/postgres"
	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/records"
	"github.com/samirrijal/parkfinder/internal/pkg/config"
	"github.com/samirrijal/parkfinder/internal/pkg/logging"
)

const batchSize = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

// Usage: ingestor [seed.json|seed.csv ...]
// Without arguments the full upstream listing is ingested.
func main() {
	cfg, err := config.Load("parkfinder-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewParkingRepo(db)

	var raws []json.RawMessage
	if paths := os.Args[1:]; len(paths) > 0 {
		raws = readSeedFiles(paths)
	} else {
		slog.Info("ingesting upstream listing", "base_url", cfg.Source.BaseURL)
		client := mosapi.NewClient(cfg.Source.BaseURL, nil, 2*time.Minute)
		raws, err = client.ListAll(ctx)
		if err != nil {
			log.Fatalf("upstream: %v", err)
		}
	}

	facilities, errs := records.NormalizeBatch(raws)
	for _, err := range errs {
		slog.Warn("skipping malformed record", "error", err)
	}
	facilities = dedupe(facilities)
	if len(facilities) == 0 {
		log.Fatalf("nothing to ingest: %d records, %d malformed", len(raws), len(errs))
	}

	for start := 0; start < len(facilities); start += batchSize {
		end := min(start+batchSize, len(facilities))
		if err := repo.UpsertBatch(ctx, facilities[start:end]); err != nil {
			log.Fatalf("upsert %d-%d: %v", start, end, err)
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		log.Fatalf("count: %v", err)
	}
	slog.Info("ingestion complete", "upserted", len(facilities), "skipped", len(errs), "stored", total)

	// Tell running API instances to reload
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, refresh not announced", "error", err)
			return
		}
		defer pub.Close()
		if err := pub.PublishDatasetRefreshed(ctx, total); err != nil {
			slog.Warn("announce refresh failed", "error", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Seed files
// ---------------------------------------------------------------------------

func readSeedFiles(paths []string) []json.RawMessage {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make([][]json.RawMessage, len(paths))
	)
	sem := make(chan struct{}, 4) // max 4 files parsed at once

	for i, p := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			raws, err := memory.ReadSeedFile(path)
			if err != nil {
				slog.Error("seed file failed", "file", path, "error", err)
				return
			}
			slog.Info("seed file read", "file", path, "records", len(raws))
			mu.Lock()
			out[i] = raws
			mu.Unlock()
		}(i, p)
	}
	wg.Wait()

	// Keep argument order so later files win on duplicate ids.
	var all []json.RawMessage
	for _, raws := range out {
		all = append(all, raws...)
	}
	return all
}

// dedupe keeps the last facility seen for every id, ordered by id.
func dedupe(facilities []domain.ParkingFacility) []domain.ParkingFacility {
	byID := make(map[string]domain.ParkingFacility, len(facilities))
	for _, f := range facilities {
		byID[f.ID] = f
	}
	out := make([]domain.ParkingFacility, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
