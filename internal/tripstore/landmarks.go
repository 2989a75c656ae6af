package tripstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AddLandmarkEncounter appends a landmark encounter row for tripID. Callers
// are expected to have already applied the Landmark Index's per-landmark
// 300-second notify cooldown (spec.md §3); this method does not
// re-evaluate it, it only persists what it is given.
func (s *Store) AddLandmarkEncounter(ctx context.Context, tripID int64, encounter LandmarkEncounter) error {
	err := s.withinScope(ctx, "add_landmark_encounter", func(scope *Scope) error {
		_, err := scope.tx.ExecContext(ctx,
			`INSERT INTO landmark_encounters (trip_id, landmark_id, landmark_name, lat, lon, encounter_time, landmark_type, is_priority_landmark)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tripID, encounter.LandmarkID, encounter.LandmarkName, encounter.Lat, encounter.Lon,
			encounter.EncounterTime.UTC().Format(time.RFC3339Nano), string(encounter.LandmarkType), encounter.IsPriorityLandmark)
		return err
	})
	if err != nil {
		if isBusy(err) {
			return err
		}
		return fatal("add_landmark_encounter", err)
	}
	return nil
}

func (s *Store) landmarkEncountersForTrip(ctx context.Context, tripID int64) ([]LandmarkEncounter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, landmark_id, landmark_name, lat, lon, encounter_time, landmark_type, is_priority_landmark
		 FROM landmark_encounters WHERE trip_id = ? ORDER BY encounter_time ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("landmark encounters: %w", err)
	}
	defer rows.Close()

	var out []LandmarkEncounter
	for rows.Next() {
		var (
			e    LandmarkEncounter
			lat  sql.NullFloat64
			lon  sql.NullFloat64
			ts   string
			kind string
		)
		if err := rows.Scan(&e.ID, &e.TripID, &e.LandmarkID, &e.LandmarkName, &lat, &lon, &ts, &kind, &e.IsPriorityLandmark); err != nil {
			return nil, fmt.Errorf("landmark encounters: scan: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("landmark encounters: parse encounter_time: %w", err)
		}
		e.EncounterTime = parsed
		e.LandmarkType = LandmarkType(kind)
		if lat.Valid {
			e.Lat = lat.Float64
		}
		if lon.Valid {
			e.Lon = lon.Float64
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
