package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/parkfinder/internal/adapters/postgres"
	"github.com/samirrijal/parkfinder/internal/adapters/surface"
	"github.com/samirrijal/parkfinder/internal/adapters/valkey"
	"github.com/samirrijal/parkfinder/internal/core/ports"
	"github.com/samirrijal/parkfinder/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Engine    *usecases.Engine
	Query     *usecases.QueryService
	Proximity *usecases.ProximityService
	Surface   *surface.Virtual
	Store     ports.ParkingRepository // optional, set when facilities live in postgres
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
