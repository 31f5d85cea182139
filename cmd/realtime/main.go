package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samirrijal/parkfinder/internal/adapters/memory"
	"github.com/samirrijal/parkfinder/internal/adapters/mosapi"
	natsadapter "github.com/samirrijal/parkfinder/internal/adapters/nats"
	"github.com/samirrijal/parkfinder/internal/adapters/postgres"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
	"github.com/samirrijal/parkfinder/internal/pkg/config"
	"github.com/samirrijal/parkfinder/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("parkfinder-realtime")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		log.Fatalf("source: %v", err)
	}
	defer closeSource()

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	tracker := usecases.NewAvailabilityTracker(source, pub)

	pollInterval := time.Duration(cfg.Realtime.PollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}

	slog.Info("parkfinder availability poller starting", "source", cfg.Source.Kind, "interval", pollInterval.String())

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately to record the baseline
	poll(ctx, tracker, pollInterval)

	for {
		select {
		case <-ticker.C:
			poll(ctx, tracker, pollInterval)
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down availability poller", "signal", sig.String())
			cancel()
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Poll
// ---------------------------------------------------------------------------

func poll(ctx context.Context, tracker *usecases.AvailabilityTracker, interval time.Duration) {
	// A poll never outlives the next tick.
	pollCtx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	start := time.Now()
	changes, err := tracker.Poll(pollCtx)
	if err != nil {
		slog.Error("availability poll failed", "error", err, "duration", time.Since(start).String())
		return
	}
	if len(changes) > 0 {
		slog.Info("availability changed", "facilities", len(changes), "duration", time.Since(start).String())
	}
}

// ---------------------------------------------------------------------------
// Source
// ---------------------------------------------------------------------------

func openSource(ctx context.Context, cfg *config.Config) (ports.ParkingDataSource, func(), error) {
	switch cfg.Source.Kind {
	case "mosapi":
		timeout := time.Duration(cfg.Source.Timeout) * time.Second
		return mosapi.NewClient(cfg.Source.BaseURL, nil, timeout), func() {}, nil
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("database: %w", err)
		}
		return postgres.NewParkingRepo(db), db.Close, nil
	case "memory":
		src, err := memory.LoadFile(cfg.Source.SeedFile)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
}
