package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"

	"github.com/samirrijal/parkfinder/internal/adapters/mosapi"
	natsadapter "github.com/samirrijal/parkfinder/internal/adapters/nats"
	"github.com/samirrijal/parkfinder/internal/adapters/postgres"
	"github.com/samirrijal/parkfinder/internal/adapters/valkey"
	"github.com/samirrijal/parkfinder/internal/pkg/config"
	"github.com/samirrijal/parkfinder/internal/pkg/logging"
	"github.com/samirrijal/parkfinder/internal/workflows"
)

const scheduleID = "parkfinder-dataset-refresh"

func main() {
	cfg, err := config.Load("parkfinder-refresher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()

	// Upstream listing is always the provider API.
	upstream := mosapi.NewClient(cfg.Source.BaseURL, nil, time.Duration(cfg.Source.Timeout)*time.Second)

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	activities := &workflows.RefreshActivities{
		Upstream: upstream,
		Store:    postgres.NewParkingRepo(db),
	}

	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, refreshes will not be announced", "error", err)
		} else {
			defer pub.Close()
			activities.Notifier = pub
		}
	}

	if cfg.Valkey.Enabled {
		cache, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable, cache will not be invalidated", "error", err)
		} else {
			defer cache.Close()
			activities.Cache = cache
		}
	}

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	if err := ensureSchedule(ctx, c, cfg.Temporal); err != nil {
		log.Fatalf("schedule: %v", err)
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.DatasetRefreshWorkflow)
	w.RegisterActivity(activities)

	slog.Info("refresher worker started", "task_queue", cfg.Temporal.TaskQueue, "every_minutes", cfg.Temporal.RefreshInterval)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

// ensureSchedule creates the periodic refresh schedule. An existing
// schedule is left as is.
func ensureSchedule(ctx context.Context, c client.Client, cfg config.TemporalConfig) error {
	every := time.Duration(cfg.RefreshInterval) * time.Minute
	if every <= 0 {
		return fmt.Errorf("temporal.refresh_interval must be positive, got %d", cfg.RefreshInterval)
	}

	_, err := c.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: scheduleID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: every}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        scheduleID + "-run",
			Workflow:  workflows.DatasetRefreshWorkflow,
			TaskQueue: cfg.TaskQueue,
		},
		TriggerImmediately: true,
	})
	if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
		slog.Info("refresh schedule already exists", "id", scheduleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create schedule %s: %w", scheduleID, err)
	}
	slog.Info("refresh schedule created", "id", scheduleID, "every", every.String())
	return nil
}
