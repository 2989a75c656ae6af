package geostore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is the offline reverse-geocoding database (spec.md §3
// OfflineGeocodingRecord, §6 geocoding_offline.db), deduplicated on
// (lat, lon, trip_id) per spec.md §3.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and migrates
// it forward, mirroring internal/tripstore.Open's busy-timeout and
// single-writer settings.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("geostore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 10000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("geostore: set busy_timeout: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("geostore: migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("geostore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("geostore: migration setup: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("geostore: migrate up: %w", err)
	}
	return nil
}

// Close closes the underlying database handle. It has the signature of
// shutdown.Stoppable's Stop and is registered through a stopperFunc adapter.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// Record is one reverse-geocoded point, keyed for dedup on (Lat, Lon, TripID).
type Record struct {
	TripID       int64
	Lat, Lon     float64
	LocationType string // "center_waypoint" | "grid_point"
	DisplayName  string
	Road         string
	City         string
	State        string
	Country      string
	CountryCode  string
	Postcode     string
	BoundingBox  string // joined "south,north,west,east"
	RawResponse  string // full raw JSON response
}

// Upsert inserts a record, replacing any existing row for the same
// (lat, lon, trip_id) per spec.md §3's "Replace on duplicate (lat, lon,
// trip_id)".
func (s *Store) Upsert(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_geocoding_records
			(trip_id, lat, lon, location_type, display_name, road, city, state,
			 country, country_code, postcode, boundingbox, raw_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (lat, lon, trip_id) DO UPDATE SET
			location_type = excluded.location_type,
			display_name = excluded.display_name,
			road = excluded.road,
			city = excluded.city,
			state = excluded.state,
			country = excluded.country,
			country_code = excluded.country_code,
			postcode = excluded.postcode,
			boundingbox = excluded.boundingbox,
			raw_response = excluded.raw_response,
			created_at = excluded.created_at
	`, r.TripID, r.Lat, r.Lon, r.LocationType, r.DisplayName, r.Road, r.City,
		r.State, r.Country, r.CountryCode, r.Postcode, r.BoundingBox, r.RawResponse,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return &dashcamerrors.StorageFatal{Op: "geostore.Upsert", Err: err}
	}
	return nil
}

// CountByTrip returns how many records are stored for a trip, used by tests
// and by progress reconciliation after a pause/resume cycle.
func (s *Store) CountByTrip(ctx context.Context, tripID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_geocoding_records WHERE trip_id = ?`, tripID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("geostore: count by trip: %w", err)
	}
	return n, nil
}

// ListByTrip returns every stored record for a trip, ordered by insertion.
func (s *Store) ListByTrip(ctx context.Context, tripID int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trip_id, lat, lon, location_type, display_name, road, city, state,
		       country, country_code, postcode, boundingbox, raw_response
		FROM offline_geocoding_records WHERE trip_id = ? ORDER BY id`, tripID)
	if err != nil {
		return nil, fmt.Errorf("geostore: list by trip: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.TripID, &r.Lat, &r.Lon, &r.LocationType, &r.DisplayName,
			&r.Road, &r.City, &r.State, &r.Country, &r.CountryCode, &r.Postcode,
			&r.BoundingBox, &r.RawResponse); err != nil {
			return nil, fmt.Errorf("geostore: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
