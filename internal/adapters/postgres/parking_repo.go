package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/parkfinder/internal/core/domain"
)

// searchLimit caps text search results.
const searchLimit = 100

const facilityColumns = `
	id, name, address,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lng,
	capacity, free_spots, zone_number, subway, price_info, category, blocked`

// ParkingRepo implements ports.ParkingDataSource and ports.ParkingRepository
// with pgx and PostGIS.
type ParkingRepo struct {
	db *DB
}

// NewParkingRepo creates a new ParkingRepo.
func NewParkingRepo(db *DB) *ParkingRepo {
	return &ParkingRepo{db: db}
}

// UpsertBatch inserts or updates many facilities using pgx.Batch.
func (r *ParkingRepo) UpsertBatch(ctx context.Context, facilities []domain.ParkingFacility) error {
	if len(facilities) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, f := range facilities {
		var lat, lng *float64
		if f.Coordinates != nil {
			lat, lng = &f.Coordinates.Lat, &f.Coordinates.Lng
		}
		batch.Queue(`
			INSERT INTO parkings (id, name, address, location, capacity, free_spots,
			                      zone_number, subway, price_info, category, blocked, updated_at)
			VALUES ($1, $2, $3,
			        CASE WHEN $4::float8 IS NULL OR $5::float8 IS NULL THEN NULL
			             ELSE ST_SetSRID(ST_MakePoint($5, $4), 4326)::geography END,
			        $6, $7, $8, $9, $10, $11, $12, now())
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, address = EXCLUDED.address, location = EXCLUDED.location,
			    capacity = EXCLUDED.capacity, free_spots = EXCLUDED.free_spots,
			    zone_number = EXCLUDED.zone_number, subway = EXCLUDED.subway,
			    price_info = EXCLUDED.price_info, category = EXCLUDED.category,
			    blocked = EXCLUDED.blocked, updated_at = now()
		`, f.ID, f.Name, f.Address, lat, lng, int64(f.Capacity), int64(f.FreeSpots),
			f.ZoneNumber, f.Subway, f.PriceInfo, f.Category, f.Blocked)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range facilities {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns a facility by id, or nil when it does not exist.
func (r *ParkingRepo) GetByID(ctx context.Context, id string) (*domain.ParkingFacility, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+facilityColumns+` FROM parkings WHERE id = $1`, id)
	f, err := scanFacility(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Count returns the number of stored facilities.
func (r *ParkingRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM parkings`).Scan(&n)
	return n, err
}

// ListAll returns every stored facility in canonical encoding.
func (r *ParkingRepo) ListAll(ctx context.Context) ([]json.RawMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+facilityColumns+` FROM parkings ORDER BY name, id`)
	if err != nil {
		return nil, transportError("list_all", err)
	}
	return collect("list_all", rows, false)
}

// ListNear returns facilities within radiusMeters using PostGIS ST_DWithin,
// nearest first, with the server distance attached.
func (r *ParkingRepo) ListNear(ctx context.Context, origin domain.GeoPoint, limitCount, radiusMeters uint32) ([]json.RawMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+facilityColumns+`,
		       ST_Distance(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) AS distance
		FROM parkings
		WHERE location IS NOT NULL
		  AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY distance, id
		LIMIT $4
	`, origin.Lng, origin.Lat, float64(radiusMeters), int64(limitCount))
	if err != nil {
		return nil, transportError("list_near", err)
	}
	return collect("list_near", rows, true)
}

// SearchByText performs substring and trigram search over the text fields.
func (r *ParkingRepo) SearchByText(ctx context.Context, text string) ([]json.RawMessage, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+facilityColumns+`
		FROM parkings
		WHERE name ILIKE '%' || $1 || '%'
		   OR address ILIKE '%' || $1 || '%'
		   OR zone_number ILIKE '%' || $1 || '%'
		   OR subway ILIKE '%' || $1 || '%'
		   OR name %> $1
		ORDER BY similarity(name, $1) DESC, id
		LIMIT $2
	`, text, searchLimit)
	if err != nil {
		return nil, transportError("search", err)
	}
	return collect("search", rows, false)
}

func collect(op string, rows pgx.Rows, withDistance bool) ([]json.RawMessage, error) {
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var (
			f   domain.ParkingFacility
			err error
		)
		if withDistance {
			f, err = scanFacilityWithDistance(rows)
		} else {
			f, err = scanFacility(rows)
		}
		if err != nil {
			return nil, transportError(op, err)
		}
		b, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, transportError(op, err)
	}
	return out, nil
}

type facilityRow struct {
	lat, lng            *float64
	capacity, freeSpots int64
}

func scanFacility(row pgx.Row) (domain.ParkingFacility, error) {
	var (
		f  domain.ParkingFacility
		fr facilityRow
	)
	err := row.Scan(&f.ID, &f.Name, &f.Address, &fr.lat, &fr.lng,
		&fr.capacity, &fr.freeSpots, &f.ZoneNumber, &f.Subway, &f.PriceInfo, &f.Category, &f.Blocked)
	if err != nil {
		return f, err
	}
	fr.apply(&f)
	return f, nil
}

func scanFacilityWithDistance(row pgx.Row) (domain.ParkingFacility, error) {
	var (
		f    domain.ParkingFacility
		fr   facilityRow
		dist float64
	)
	err := row.Scan(&f.ID, &f.Name, &f.Address, &fr.lat, &fr.lng,
		&fr.capacity, &fr.freeSpots, &f.ZoneNumber, &f.Subway, &f.PriceInfo, &f.Category, &f.Blocked,
		&dist)
	if err != nil {
		return f, err
	}
	fr.apply(&f)
	f.DistanceMeters = &dist
	return f, nil
}

func (fr facilityRow) apply(f *domain.ParkingFacility) {
	if fr.lat != nil && fr.lng != nil {
		f.Coordinates = &domain.GeoPoint{Lat: *fr.lat, Lng: *fr.lng}
	}
	if fr.capacity > 0 {
		f.Capacity = uint32(fr.capacity)
	}
	if fr.freeSpots > 0 {
		f.FreeSpots = uint32(fr.freeSpots)
	}
}

// transportError reports database failures in the data source error model.
func transportError(op string, err error) error {
	status := domain.StatusServerError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = domain.StatusNetworkError
	}
	return &domain.TransportError{Op: "postgres " + op, Status: status, Err: err}
}
