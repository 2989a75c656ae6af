package tripstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
)

// StartTrip creates a new active trip (end_time = null). The partial
// unique index on trips((end_time IS NULL)) enforces spec.md §3's "at most
// one active trip at any time" invariant; a second concurrent StartTrip
// while one is already active fails the transaction, which this method
// returns wrapped as dashcamerrors.StorageFatal like any other non-busy
// failure (the caller is expected to have checked GetActiveTrip first).
func (s *Store) StartTrip(ctx context.Context, startLat, startLon *float64, plannedTripID *string) (int64, error) {
	var id int64
	err := s.withinScope(ctx, "start_trip", func(scope *Scope) error {
		res, err := scope.tx.ExecContext(ctx,
			`INSERT INTO trips (start_time, start_lat, start_lon, planned_trip_id) VALUES (?, ?, ?, ?)`,
			time.Now().UTC().Format(time.RFC3339Nano), startLat, startLon, plannedTripID)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if isBusy(err) {
			return 0, err
		}
		return 0, fatal("start_trip", err)
	}
	return id, nil
}

// EndTrip sets end_time = now for tripID. Idempotent: ending an
// already-ended trip returns (true, nil) without modifying it.
func (s *Store) EndTrip(ctx context.Context, tripID int64, endLat, endLon *float64) (bool, error) {
	return s.EndTripAt(ctx, tripID, time.Now(), endLat, endLon)
}

// EndTripAt is EndTrip with an explicit end_time, used by the orphan-trip
// recovery path (spec.md §7: "finalizes it with end_time = start_time +
// elapsed_db_age_capped_24h") where "now" would be the wrong value.
func (s *Store) EndTripAt(ctx context.Context, tripID int64, endTime time.Time, endLat, endLon *float64) (bool, error) {
	var alreadyEnded bool
	err := s.withinScope(ctx, "end_trip", func(scope *Scope) error {
		var currentEnd sql.NullString
		row := scope.tx.QueryRowContext(ctx, `SELECT end_time FROM trips WHERE id = ?`, tripID)
		if err := row.Scan(&currentEnd); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("end_trip: trip %d not found", tripID)
			}
			return err
		}
		if currentEnd.Valid {
			alreadyEnded = true
			return nil
		}
		_, err := scope.tx.ExecContext(ctx,
			`UPDATE trips SET end_time = ?, end_lat = ?, end_lon = ? WHERE id = ?`,
			endTime.UTC().Format(time.RFC3339Nano), endLat, endLon, tripID)
		return err
	})
	if err != nil {
		if isBusy(err) {
			return false, err
		}
		return false, fatal("end_trip", err)
	}
	return true, nil
}

// GetActiveTrip returns the trip with end_time = null, if one exists.
func (s *Store) GetActiveTrip(ctx context.Context) (*Trip, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, start_time, end_time, start_lat, start_lon, end_lat, end_lon, distance_km, planned_trip_id
		 FROM trips WHERE end_time IS NULL LIMIT 1`)
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get_active_trip: %w", err)
	}
	return trip, nil
}

// GetTripWithDetails returns tripID joined with its GPS track, landmark
// encounters, clips, and quality-upgrade log.
func (s *Store) GetTripWithDetails(ctx context.Context, tripID int64) (*TripDetails, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, start_time, end_time, start_lat, start_lon, end_lat, end_lon, distance_km, planned_trip_id
		 FROM trips WHERE id = ?`, tripID)
	trip, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get_trip_with_details: trip %d not found", tripID)
	}
	if err != nil {
		return nil, fmt.Errorf("get_trip_with_details: %w", err)
	}

	gps, err := s.gpsTrackForTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	encounters, err := s.landmarkEncountersForTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	clips, err := s.clipsForTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	upgrades, err := s.qualityUpgradesForTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}

	return &TripDetails{
		Trip:               *trip,
		GpsTrack:           gps,
		LandmarkEncounters: encounters,
		Clips:              clips,
		QualityUpgrades:    upgrades,
	}, nil
}

// GetCalendar returns, for every day in the given month that has at least
// one trip, the number of trips that started that day.
func (s *Store) GetCalendar(ctx context.Context, year, month int) ([]CalendarDay, error) {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	rows, err := s.db.QueryContext(ctx,
		`SELECT CAST(substr(start_time, 9, 2) AS INTEGER) AS day, COUNT(*)
		 FROM trips
		 WHERE start_time LIKE ? || '%'
		 GROUP BY day
		 ORDER BY day`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get_calendar: %w", err)
	}
	defer rows.Close()

	var days []CalendarDay
	for rows.Next() {
		var d CalendarDay
		if err := rows.Scan(&d.Day, &d.TripCount); err != nil {
			return nil, fmt.Errorf("get_calendar: scan: %w", err)
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

func scanTrip(row *sql.Row) (*Trip, error) {
	var (
		t             Trip
		startTime     string
		endTime       sql.NullString
		startLat      sql.NullFloat64
		startLon      sql.NullFloat64
		endLat        sql.NullFloat64
		endLon        sql.NullFloat64
		distanceKm    sql.NullFloat64
		plannedTripID sql.NullString
	)
	if err := row.Scan(&t.ID, &startTime, &endTime, &startLat, &startLon, &endLat, &endLon, &distanceKm, &plannedTripID); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, startTime)
	if err != nil {
		return nil, fmt.Errorf("parse start_time: %w", err)
	}
	t.StartTime = parsed
	if endTime.Valid {
		end, err := time.Parse(time.RFC3339Nano, endTime.String)
		if err != nil {
			return nil, fmt.Errorf("parse end_time: %w", err)
		}
		t.EndTime = &end
	}
	t.StartLat = nullFloatPtr(startLat)
	t.StartLon = nullFloatPtr(startLon)
	t.EndLat = nullFloatPtr(endLat)
	t.EndLon = nullFloatPtr(endLon)
	t.DistanceKm = nullFloatPtr(distanceKm)
	if plannedTripID.Valid {
		t.PlannedTripID = &plannedTripID.String
	}
	return &t, nil
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	val := v.Float64
	return &val
}

func isBusy(err error) bool {
	var busy *dashcamerrors.StorageBusy
	return errors.As(err, &busy)
}
