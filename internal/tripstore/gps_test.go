package tripstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogGPSRejectsLowFixQuality(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tripID, err := store.StartTrip(ctx, nil, nil, nil)
	require.NoError(t, err)

	err = store.LogGPS(ctx, tripID, GpsSample{Latitude: 1, Longitude: 2, FixQuality: 0})
	assert.Error(t, err)
}

func TestFlushGPSPersistsBufferedSamples(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tripID, err := store.StartTrip(ctx, nil, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.LogGPS(ctx, tripID, GpsSample{
			Timestamp: time.Now(), Latitude: float64(i), Longitude: float64(i), FixQuality: 4,
		}))
	}
	require.NoError(t, store.FlushGPS(ctx, tripID))

	track, err := store.gpsTrackForTrip(ctx, tripID)
	require.NoError(t, err)
	assert.Len(t, track, 3)
}

func TestGPSTrackInRangeIsHalfOpen(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tripID, err := store.StartTrip(ctx, nil, nil, nil)
	require.NoError(t, err)

	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		require.NoError(t, store.LogGPS(ctx, tripID, GpsSample{
			Timestamp: base.Add(time.Duration(i) * time.Second), Latitude: float64(i), Longitude: float64(i), FixQuality: 4,
		}))
	}
	require.NoError(t, store.FlushGPS(ctx, tripID))

	track, err := store.GPSTrackInRange(ctx, tripID, base.Add(1*time.Second), base.Add(4*time.Second))
	require.NoError(t, err)
	require.Len(t, track, 3)
	assert.Equal(t, 1.0, track[0].Latitude)
	assert.Equal(t, 3.0, track[len(track)-1].Latitude)
}

func TestCleanupGPSBeforeDeletesOlderRows(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tripID, err := store.StartTrip(ctx, nil, nil, nil)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	recent := time.Now()

	require.NoError(t, store.LogGPS(ctx, tripID, GpsSample{Timestamp: old, Latitude: 1, Longitude: 1, FixQuality: 4}))
	require.NoError(t, store.LogGPS(ctx, tripID, GpsSample{Timestamp: recent, Latitude: 2, Longitude: 2, FixQuality: 4}))
	require.NoError(t, store.FlushGPS(ctx, tripID))

	deleted, err := store.CleanupGPSBefore(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	track, err := store.gpsTrackForTrip(ctx, tripID)
	require.NoError(t, err)
	require.Len(t, track, 1)
	assert.Equal(t, 2.0, track[0].Latitude)
}

func TestGPSTrackInRangeMatchesLoggedSamples(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	tripID, err := store.StartTrip(ctx, nil, nil, nil)
	require.NoError(t, err)

	base := time.Now().Truncate(time.Second)
	want := []GpsSample{
		{Timestamp: base, Latitude: 10, Longitude: 20, FixQuality: 4},
		{Timestamp: base.Add(time.Second), Latitude: 10.1, Longitude: 20.1, FixQuality: 4},
	}
	for _, s := range want {
		require.NoError(t, store.LogGPS(ctx, tripID, s))
	}
	require.NoError(t, store.FlushGPS(ctx, tripID))

	got, err := store.GPSTrackInRange(ctx, tripID, base, base.Add(2*time.Second))
	require.NoError(t, err)

	wantRows := make([]GpsCoordinate, len(want))
	for i, s := range want {
		wantRows[i] = GpsCoordinate{TripID: &tripID, Timestamp: s.Timestamp, Latitude: s.Latitude, Longitude: s.Longitude, FixQuality: s.FixQuality}
	}
	if diff := cmp.Diff(wantRows, got, cmpopts.EquateApproxTime(time.Millisecond), cmpopts.IgnoreFields(GpsCoordinate{}, "ID")); diff != "" {
		t.Errorf("GPSTrackInRange mismatch (-want +got):\n%s", diff)
	}
}
