package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/parkfinder/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, 429, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")

	// Listing
	v1.Get("/parkings", timeout.NewWithContext(ListParkingsHandler(deps), requestTimeout))
	v1.Get("/parkings/geojson", timeout.NewWithContext(GeoJSONHandler(deps), requestTimeout))
	v1.Get("/parkings/nearby", timeout.NewWithContext(NearbyParkingsHandler(deps), requestTimeout))
	v1.Get("/parkings/:id", timeout.NewWithContext(GetParkingHandler(deps), requestTimeout))
	v1.Get("/parkings/:id/route", timeout.NewWithContext(ParkingRouteHandler(deps), requestTimeout))
	v1.Get("/dataset/status", timeout.NewWithContext(DatasetStatusHandler(deps), requestTimeout))

	// Engine state
	v1.Get("/state", StateHandler(deps))
	v1.Post("/search", timeout.NewWithContext(SearchHandler(deps), requestTimeout))
	v1.Delete("/search", ClearSearchHandler(deps))
	v1.Put("/selection", SelectHandler(deps))
	v1.Delete("/selection", DeselectHandler(deps))
	v1.Delete("/callout", CloseCalloutHandler(deps))

	// Map surface
	v1.Get("/map", MapCameraHandler(deps))
	v1.Post("/map/click", timeout.NewWithContext(MapClickHandler(deps), requestTimeout))
	v1.Put("/map/viewport", ViewportHandler(deps))
	v1.Post("/markers/:id/click", MarkerClickHandler(deps))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	if deps.NATS != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS, deps.Engine)))
	}
}
