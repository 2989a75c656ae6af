package tripstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// LogQualityUpgrade appends an audit row recording that a clip's quality
// was upgraded (e.g. on approach to a priority landmark). Append-only: no
// update or delete path exists.
func (s *Store) LogQualityUpgrade(ctx context.Context, tripID int64, upgrade UpgradeRecord) error {
	err := s.withinScope(ctx, "log_quality_upgrade", func(scope *Scope) error {
		_, err := scope.tx.ExecContext(ctx,
			`INSERT INTO quality_upgrades (trip_id, timestamp, landmark_id, landmark_name, distance_meters, reason)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tripID, upgrade.Timestamp.UTC().Format(time.RFC3339Nano), upgrade.LandmarkID,
			upgrade.LandmarkName, upgrade.DistanceMeters, upgrade.Reason)
		return err
	})
	if err != nil {
		if isBusy(err) {
			return err
		}
		return fatal("log_quality_upgrade", err)
	}
	return nil
}

func (s *Store) qualityUpgradesForTrip(ctx context.Context, tripID int64) ([]QualityUpgrade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, timestamp, landmark_id, landmark_name, distance_meters, reason
		 FROM quality_upgrades WHERE trip_id = ? ORDER BY timestamp ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("quality upgrades: %w", err)
	}
	defer rows.Close()

	var out []QualityUpgrade
	for rows.Next() {
		var (
			u              QualityUpgrade
			ts             string
			landmarkID     sql.NullString
			landmarkName   sql.NullString
			distanceMeters sql.NullFloat64
			reason         sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.TripID, &ts, &landmarkID, &landmarkName, &distanceMeters, &reason); err != nil {
			return nil, fmt.Errorf("quality upgrades: scan: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("quality upgrades: parse timestamp: %w", err)
		}
		u.Timestamp = parsed
		u.LandmarkID = landmarkID.String
		u.LandmarkName = landmarkName.String
		u.DistanceMeters = distanceMeters.Float64
		u.Reason = reason.String
		out = append(out, u)
	}
	return out, rows.Err()
}
