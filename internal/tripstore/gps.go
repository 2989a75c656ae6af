package tripstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// gpsBatchInterval is the hard cap spec.md §4.B sets on log_gps's durable
// persistence: "guarantees durable persistence within a bounded interval
// (batching permitted; hard cap 5 s)".
const gpsBatchInterval = 5 * time.Second

// gpsBatchSize flushes early if a trip accumulates this many samples
// before the interval elapses, keeping memory bounded during high-rate GPS
// logging.
const gpsBatchSize = 64

// gpsBatcher buffers GPS samples per trip and flushes them to the Trip
// Store either when gpsBatchSize is reached or gpsBatchInterval elapses,
// whichever comes first. It is the store-internal durability mechanism
// behind the public, synchronous-looking LogGPS API.
type gpsBatcher struct {
	store *Store

	mu      sync.Mutex
	pending map[int64][]GpsSample
	timer   *time.Timer
}

func newGPSBatcher(store *Store) *gpsBatcher {
	return &gpsBatcher{store: store, pending: make(map[int64][]GpsSample)}
}

// LogGPS appends a GPS sample for tripID. Samples with FixQuality < 1 are
// rejected: the GPS-logging task must only call this once it has a valid
// fix, per spec.md §3's "written only by the GPS-logging task when
// fix_quality >= 1".
func (s *Store) LogGPS(ctx context.Context, tripID int64, sample GpsSample) error {
	if sample.FixQuality < 1 {
		return fmt.Errorf("log_gps: fix_quality %d is below the minimum of 1", sample.FixQuality)
	}
	return s.gps.enqueue(ctx, tripID, sample)
}

func (b *gpsBatcher) enqueue(ctx context.Context, tripID int64, sample GpsSample) error {
	b.mu.Lock()
	b.pending[tripID] = append(b.pending[tripID], sample)
	flushNow := len(b.pending[tripID]) >= gpsBatchSize
	if b.timer == nil {
		b.timer = time.AfterFunc(gpsBatchInterval, b.flushAll)
	}
	b.mu.Unlock()

	if flushNow {
		return b.flushTrip(ctx, tripID)
	}
	return nil
}

// flushAll is invoked by the interval timer; it flushes every trip with
// pending samples and clears the timer; the next enqueue arms a new one.
func (b *gpsBatcher) flushAll() {
	b.mu.Lock()
	tripIDs := make([]int64, 0, len(b.pending))
	for id := range b.pending {
		tripIDs = append(tripIDs, id)
	}
	b.timer = nil
	b.mu.Unlock()

	for _, id := range tripIDs {
		if err := b.flushTrip(context.Background(), id); err != nil {
			b.store.logger.WithError(err).WithField("trip_id", fmt.Sprintf("%d", id)).Error("periodic GPS flush failed")
		}
	}
}

func (b *gpsBatcher) flushTrip(ctx context.Context, tripID int64) error {
	b.mu.Lock()
	batch := b.pending[tripID]
	delete(b.pending, tripID)
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := b.store.withinScope(ctx, "log_gps", func(scope *Scope) error {
		stmt, err := scope.tx.PrepareContext(ctx,
			`INSERT INTO gps_coordinates (trip_id, timestamp, latitude, longitude, altitude, speed, heading, satellites, fix_quality)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, sample := range batch {
			if _, err := stmt.ExecContext(ctx, tripID, sample.Timestamp.UTC().Format(time.RFC3339Nano),
				sample.Latitude, sample.Longitude, sample.Altitude, sample.Speed, sample.Heading,
				sample.Satellites, sample.FixQuality); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isBusy(err) {
			return err
		}
		return fatal("log_gps", err)
	}
	return nil
}

// FlushGPS forces any buffered GPS samples for tripID to disk immediately,
// bypassing the batching interval. Used when a trip ends, so its tail of
// GPS points is not left pending past process shutdown.
func (s *Store) FlushGPS(ctx context.Context, tripID int64) error {
	return s.gps.flushTrip(ctx, tripID)
}

func (s *Store) gpsTrackForTrip(ctx context.Context, tripID int64) ([]GpsCoordinate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, timestamp, latitude, longitude, altitude, speed, heading, satellites, fix_quality
		 FROM gps_coordinates WHERE trip_id = ? ORDER BY timestamp ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("gps track: %w", err)
	}
	defer rows.Close()

	var track []GpsCoordinate
	for rows.Next() {
		var (
			c          GpsCoordinate
			tripIDVal  sql.NullInt64
			ts         string
			altitude   sql.NullFloat64
			speed      sql.NullFloat64
			heading    sql.NullFloat64
			satellites sql.NullInt64
			fixQuality sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &tripIDVal, &ts, &c.Latitude, &c.Longitude, &altitude, &speed, &heading, &satellites, &fixQuality); err != nil {
			return nil, fmt.Errorf("gps track: scan: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("gps track: parse timestamp: %w", err)
		}
		c.Timestamp = parsed
		if tripIDVal.Valid {
			v := tripIDVal.Int64
			c.TripID = &v
		}
		c.Altitude = nullFloatPtr(altitude)
		c.Speed = nullFloatPtr(speed)
		c.Heading = nullFloatPtr(heading)
		if satellites.Valid {
			v := int(satellites.Int64)
			c.Satellites = &v
		}
		if fixQuality.Valid {
			c.FixQuality = int(fixQuality.Int64)
		}
		track = append(track, c)
	}
	return track, rows.Err()
}

// GPSTrackInRange returns tripID's GPS rows with timestamp in the
// half-open interval [start, end), ordered by timestamp ascending. This is
// the clip-enrichment lookup spec.md §4.G step 1 requires: "a clip's
// GPS-enrichment must cover the half-open interval [start_time, end_time)
// using GPS rows belonging to the clip's trip" (spec.md §3 invariant).
func (s *Store) GPSTrackInRange(ctx context.Context, tripID int64, start, end time.Time) ([]GpsCoordinate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, timestamp, latitude, longitude, altitude, speed, heading, satellites, fix_quality
		 FROM gps_coordinates
		 WHERE trip_id = ? AND timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp ASC`,
		tripID, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("gps track in range: %w", err)
	}
	defer rows.Close()

	var track []GpsCoordinate
	for rows.Next() {
		c, err := scanGPSCoordinate(rows)
		if err != nil {
			return nil, fmt.Errorf("gps track in range: %w", err)
		}
		track = append(track, c)
	}
	return track, rows.Err()
}

func scanGPSCoordinate(rows *sql.Rows) (GpsCoordinate, error) {
	var (
		c          GpsCoordinate
		tripIDVal  sql.NullInt64
		ts         string
		altitude   sql.NullFloat64
		speed      sql.NullFloat64
		heading    sql.NullFloat64
		satellites sql.NullInt64
		fixQuality sql.NullInt64
	)
	if err := rows.Scan(&c.ID, &tripIDVal, &ts, &c.Latitude, &c.Longitude, &altitude, &speed, &heading, &satellites, &fixQuality); err != nil {
		return c, fmt.Errorf("scan: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return c, fmt.Errorf("parse timestamp: %w", err)
	}
	c.Timestamp = parsed
	if tripIDVal.Valid {
		v := tripIDVal.Int64
		c.TripID = &v
	}
	c.Altitude = nullFloatPtr(altitude)
	c.Speed = nullFloatPtr(speed)
	c.Heading = nullFloatPtr(heading)
	if satellites.Valid {
		v := int(satellites.Int64)
		c.Satellites = &v
	}
	if fixQuality.Valid {
		c.FixQuality = int(fixQuality.Int64)
	}
	return c, nil
}

// CleanupGPSBefore deletes GPS rows strictly older than cutoff, returning
// the number of rows removed.
func (s *Store) CleanupGPSBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var affected int64
	err := s.withinScope(ctx, "cleanup_gps_before", func(scope *Scope) error {
		res, err := scope.tx.ExecContext(ctx,
			`DELETE FROM gps_coordinates WHERE timestamp < ?`, cutoff.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if isBusy(err) {
			return 0, err
		}
		return 0, fatal("cleanup_gps_before", err)
	}
	return affected, nil
}
