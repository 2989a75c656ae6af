package tripstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordClip inserts a completed clip and, in the same transaction,
// adds the distance between the clip's start/end coordinates to the trip's
// distance_km
// (the trip's "aggregate video-file list" update spec.md §4.B requires to
// happen alongside the insert). sequence_num must be unique per trip; a
// duplicate (e.g. a retried callback) fails the unique index and the
// transaction rolls back.
func (s *Store) RecordClip(ctx context.Context, tripID int64, clip ClipRecord) (int64, error) {
	var id int64
	err := s.withinScope(ctx, "record_clip", func(scope *Scope) error {
		res, err := scope.tx.ExecContext(ctx,
			`INSERT INTO video_clips (trip_id, start_time, end_time, sequence_num, quality, road_video_file,
			    interior_video_file, near_landmark, landmark_id, landmark_type, location,
			    start_lat, start_lon, end_lat, end_lon)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tripID, clip.StartTime.UTC().Format(time.RFC3339Nano), clip.EndTime.UTC().Format(time.RFC3339Nano),
			clip.SequenceNum, string(clip.Quality), clip.RoadVideoFile, clip.InteriorVideoFile,
			clip.NearLandmark, clip.LandmarkID, string(clip.LandmarkType), clip.Location,
			clip.StartLat, clip.StartLon, clip.EndLat, clip.EndLon)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		if clip.StartLat != nil && clip.StartLon != nil && clip.EndLat != nil && clip.EndLon != nil {
			distance := haversineKm(*clip.StartLat, *clip.StartLon, *clip.EndLat, *clip.EndLon)
			_, err = scope.tx.ExecContext(ctx,
				`UPDATE trips SET distance_km = COALESCE(distance_km, 0) + ? WHERE id = ?`, distance, tripID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isBusy(err) {
			return 0, err
		}
		return 0, fatal("record_clip", err)
	}
	return id, nil
}

func (s *Store) clipsForTrip(ctx context.Context, tripID int64) ([]VideoClip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, start_time, end_time, sequence_num, quality, road_video_file, interior_video_file,
		        near_landmark, landmark_id, landmark_type, location, start_lat, start_lon, end_lat, end_lon
		 FROM video_clips WHERE trip_id = ? ORDER BY sequence_num ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("clips: %w", err)
	}
	defer rows.Close()

	var clips []VideoClip
	for rows.Next() {
		var (
			c                 VideoClip
			startTime         string
			endTime           string
			quality           string
			landmarkID        sql.NullString
			landmarkType      sql.NullString
			location          sql.NullString
			roadVideoFile     sql.NullString
			interiorVideoFile sql.NullString
			startLat          sql.NullFloat64
			startLon          sql.NullFloat64
			endLat            sql.NullFloat64
			endLon            sql.NullFloat64
		)
		if err := rows.Scan(&c.ID, &c.TripID, &startTime, &endTime, &c.SequenceNum, &quality,
			&roadVideoFile, &interiorVideoFile, &c.NearLandmark, &landmarkID, &landmarkType, &location,
			&startLat, &startLon, &endLat, &endLon); err != nil {
			return nil, fmt.Errorf("clips: scan: %w", err)
		}
		c.Quality = ClipQuality(quality)
		c.RoadVideoFile = roadVideoFile.String
		c.InteriorVideoFile = interiorVideoFile.String
		c.LandmarkID = landmarkID.String
		c.LandmarkType = LandmarkType(landmarkType.String)
		c.Location = location.String
		c.StartLat = nullFloatPtr(startLat)
		c.StartLon = nullFloatPtr(startLon)
		c.EndLat = nullFloatPtr(endLat)
		c.EndLon = nullFloatPtr(endLon)

		parsedStart, err := time.Parse(time.RFC3339Nano, startTime)
		if err != nil {
			return nil, fmt.Errorf("clips: parse start_time: %w", err)
		}
		parsedEnd, err := time.Parse(time.RFC3339Nano, endTime)
		if err != nil {
			return nil, fmt.Errorf("clips: parse end_time: %w", err)
		}
		c.StartTime = parsedStart
		c.EndTime = parsedEnd

		clips = append(clips, c)
	}
	return clips, rows.Err()
}
