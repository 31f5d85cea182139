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

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/parkfinder/internal/adapters/http"
	"github.com/samirrijal/parkfinder/internal/adapters/memory"
	"github.com/samirrijal/parkfinder/internal/adapters/mosapi"
	natsadapter "github.com/samirrijal/parkfinder/internal/adapters/nats"
	"github.com/samirrijal/parkfinder/internal/adapters/postgres"
	"github.com/samirrijal/parkfinder/internal/adapters/routelink"
	"github.com/samirrijal/parkfinder/internal/adapters/surface"
	"github.com/samirrijal/parkfinder/internal/adapters/valkey"
	"github.com/samirrijal/parkfinder/internal/core/domain"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
	"github.com/samirrijal/parkfinder/internal/pkg/config"
	"github.com/samirrijal/parkfinder/internal/pkg/logging"
	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
	"github.com/samirrijal/parkfinder/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("parkfinder-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	deps := &http.Dependencies{}

	// Data source
	var source ports.ParkingDataSource
	switch cfg.Source.Kind {
	case "mosapi":
		source = mosapi.NewClient(cfg.Source.BaseURL, nil, time.Duration(cfg.Source.Timeout)*time.Second)
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo := postgres.NewParkingRepo(db)
		source = repo
		deps.DB = db
		deps.Store = repo
		go reportPoolStats(ctx, db)
	case "memory":
		src, err := memory.LoadFile(cfg.Source.SeedFile)
		if err != nil {
			log.Fatalf("seed file: %v", err)
		}
		source = src
	default:
		log.Fatalf("unknown source kind %q", cfg.Source.Kind)
	}

	// Cache
	var cache ports.CacheService
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache = vc
			deps.Cache = vc
		}
	}

	// NATS
	var publisher ports.EventPublisher
	var natsConn *nats.Conn
	var subscriber *natsadapter.Subscriber
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
		}

		// Raw NATS connection for WebSocket relay
		natsConn, err = natsadapter.RawConn(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats ws conn unavailable", "error", err)
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}

		subscriber, err = natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable, dataset refreshes need a restart", "error", err)
			subscriber = nil
		} else {
			defer subscriber.Close()
		}
	}

	// Map surface
	mapSurface := surface.NewVirtual(
		domain.GeoPoint{Lat: cfg.Map.CenterLat, Lng: cfg.Map.CenterLng},
		cfg.Map.Zoom,
		cfg.Map.MaxZoom,
		domain.Viewport{Width: cfg.Map.Width, Height: cfg.Map.Height},
	)

	// Use cases
	querySvc := usecases.NewQueryService(source, cache, cfg.Valkey.SearchTTL)
	proximitySvc := usecases.NewProximityService(source, cache, cfg.Proximity.RadiusMeters, cfg.Proximity.Limit)
	engine := usecases.NewEngine(querySvc, proximitySvc, mapSurface, routelink.NewYandex(""), publisher)

	if _, err := engine.Reload(ctx); err != nil {
		// The API still serves; readiness reports the empty dataset.
		slog.Error("initial dataset load failed", "error", err)
	}

	if subscriber != nil {
		err := subscriber.SubscribeDatasetRefreshed(ctx, func(ctx context.Context, count int) error {
			slog.Info("dataset refreshed upstream, reloading", "count", count)
			_, err := engine.Reload(ctx)
			return err
		})
		if err != nil {
			slog.Warn("dataset subscription failed", "error", err)
		}
	}

	deps.Engine = engine
	deps.Query = querySvc
	deps.Proximity = proximitySvc
	deps.Surface = mapSurface
	deps.NATS = natsConn

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Parkfinder API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "source", cfg.Source.Kind)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		case <-ctx.Done():
			return
		}
	}
}
