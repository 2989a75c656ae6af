package diskmanager

import (
	"context"
	"time"

	"github.com/dashcamv2/control-go/internal/tripstore"
)

// TripClipStore adapts *tripstore.Store to ClipStore. A thin wrapper is
// needed because tripstore.RetainedClip and diskmanager.ClipRecord are
// distinct named types (tripstore must not import diskmanager, and
// diskmanager's ClipStore interface must not import tripstore's other
// exported surface) even though their fields line up exactly.
type TripClipStore struct {
	Store *tripstore.Store
}

func (t TripClipStore) ClipsOlderThan(ctx context.Context, cutoff time.Time) ([]ClipRecord, error) {
	rows, err := t.Store.ClipsOlderThan(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	clips := make([]ClipRecord, len(rows))
	for i, r := range rows {
		clips[i] = ClipRecord{
			ID:                r.ID,
			TripID:            r.TripID,
			StartTime:         r.StartTime,
			RoadVideoFile:     r.RoadVideoFile,
			InteriorVideoFile: r.InteriorVideoFile,
		}
	}
	return clips, nil
}

func (t TripClipStore) DeleteClip(ctx context.Context, id int64) error {
	return t.Store.DeleteClip(ctx, id)
}
