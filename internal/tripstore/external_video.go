package tripstore

import (
	"context"
	"database/sql"
	"fmt"
)

// ExternalVideo support is a supplemented feature (spec.md §3 names the
// entity; original_source/backend/trip_logger_package keeps an equivalent
// table for out-of-band uploaded footage not produced by the Capture
// Manager). Insert and ListByDateRange mirror its read/write surface.

// InsertExternalVideo records an out-of-band uploaded video.
func (s *Store) InsertExternalVideo(ctx context.Context, video ExternalVideo) (int64, error) {
	var id int64
	err := s.withinScope(ctx, "insert_external_video", func(scope *Scope) error {
		res, err := scope.tx.ExecContext(ctx,
			`INSERT INTO external_videos (date, file_path, lat, lon, source, tags) VALUES (?, ?, ?, ?, ?, ?)`,
			video.Date, video.FilePath, video.Lat, video.Lon, video.Source, video.Tags)
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
		return 0, fatal("insert_external_video", err)
	}
	return id, nil
}

// ListExternalVideosByDateRange returns external videos whose date column
// falls within [fromDate, toDate] (inclusive, "YYYY-MM-DD" lexical
// comparison).
func (s *Store) ListExternalVideosByDateRange(ctx context.Context, fromDate, toDate string) ([]ExternalVideo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, file_path, lat, lon, source, tags
		 FROM external_videos WHERE date BETWEEN ? AND ? ORDER BY date ASC`, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("list external videos: %w", err)
	}
	defer rows.Close()

	var out []ExternalVideo
	for rows.Next() {
		var (
			v      ExternalVideo
			lat    sql.NullFloat64
			lon    sql.NullFloat64
			source sql.NullString
			tags   sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Date, &v.FilePath, &lat, &lon, &source, &tags); err != nil {
			return nil, fmt.Errorf("list external videos: scan: %w", err)
		}
		v.Lat = nullFloatPtr(lat)
		v.Lon = nullFloatPtr(lon)
		v.Source = source.String
		v.Tags = tags.String
		out = append(out, v)
	}
	return out, rows.Err()
}
