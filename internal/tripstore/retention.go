package tripstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RetainedClip is the subset of a video_clips row the disk manager's
// retention sweep needs: enough to locate and remove the clip's files,
// then its database row.
type RetainedClip struct {
	ID                int64
	TripID            int64
	StartTime         time.Time
	RoadVideoFile     string
	InteriorVideoFile string
}

// ClipsOlderThan returns every clip whose start_time is strictly before
// cutoff, across all trips, for the disk manager's retention sweep
// (spec.md §4.J).
func (s *Store) ClipsOlderThan(ctx context.Context, cutoff time.Time) ([]RetainedClip, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trip_id, start_time, road_video_file, interior_video_file
		 FROM video_clips WHERE start_time < ? ORDER BY start_time ASC`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("retention: %w", err)
	}
	defer rows.Close()

	var clips []RetainedClip
	for rows.Next() {
		var (
			c                 RetainedClip
			startTime         string
			roadVideoFile     sql.NullString
			interiorVideoFile sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TripID, &startTime, &roadVideoFile, &interiorVideoFile); err != nil {
			return nil, fmt.Errorf("retention: scan: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, startTime)
		if err != nil {
			return nil, fmt.Errorf("retention: parse start_time: %w", err)
		}
		c.StartTime = parsed
		c.RoadVideoFile = roadVideoFile.String
		c.InteriorVideoFile = interiorVideoFile.String
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// DeleteClip removes one video_clips row by id, within its own
// transactional scope, per spec.md §4.J: "remove its database row
// (within a single transaction per file)."
func (s *Store) DeleteClip(ctx context.Context, id int64) error {
	err := s.withinScope(ctx, "delete_clip", func(scope *Scope) error {
		_, err := scope.tx.ExecContext(ctx, `DELETE FROM video_clips WHERE id = ?`, id)
		return err
	})
	if err != nil {
		if isBusy(err) {
			return err
		}
		return fatal("delete_clip", err)
	}
	return nil
}
