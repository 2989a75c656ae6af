package capture

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/paths"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

func sampleClip(t *testing.T) recording.ClipRecord {
	t.Helper()
	dir := t.TempDir()
	return recording.ClipRecord{
		StartTime:   time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 7, 31, 10, 1, 0, 0, time.UTC),
		SequenceNum: 3,
		Quality:     camera.QualityNormal,
		Files: map[recording.CameraSlot]string{
			recording.CameraRoad: filepath.Join(dir, "10-00-00_seq003_NQ_road.mp4"),
		},
	}
}

func TestEnrichClipSetsGPSBoundsFromTrack(t *testing.T) {
	m, _, _, _, store, _, _ := newTestManager()
	store.gpsTrack = []tripstore.GpsCoordinate{
		{Latitude: 10.0, Longitude: 20.0, Timestamp: time.Unix(0, 0)},
		{Latitude: 10.1, Longitude: 20.1, Timestamp: time.Unix(1, 0)},
		{Latitude: 10.2, Longitude: 20.2, Timestamp: time.Unix(2, 0)},
	}

	record := m.enrichClip(context.Background(), 1, sampleClip(t))

	require.NotNil(t, record.StartLat)
	require.NotNil(t, record.EndLat)
	assert.Equal(t, 10.0, *record.StartLat)
	assert.Equal(t, 10.2, *record.EndLat)
	assert.Equal(t, 20.2, *record.EndLon)
}

func TestEnrichClipNoGPSRowsLeavesBoundsNil(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	record := m.enrichClip(context.Background(), 1, sampleClip(t))
	assert.Nil(t, record.StartLat)
	assert.Nil(t, record.EndLat)
}

func TestEnrichClipPrefersPriorityLandmarkOnSample(t *testing.T) {
	m, _, _, _, store, _, index := newTestManager()
	store.gpsTrack = []tripstore.GpsCoordinate{
		{Latitude: 1, Longitude: 1},
		{Latitude: 1, Longitude: 1},
		{Latitude: 1, Longitude: 1},
		{Latitude: 1, Longitude: 1},
		{Latitude: 1, Longitude: 1}, // sample index 0 and 5 under stride 5
		{Latitude: 1, Longitude: 1},
	}
	index.nearbyHit = &landmark.Hit{Landmark: landmark.Landmark{ID: "lm-priority", Category: "museum"}, DistanceM: 10}

	record := m.enrichClip(context.Background(), 1, sampleClip(t))

	assert.True(t, record.NearLandmark)
	assert.Equal(t, "lm-priority", record.LandmarkID)
	assert.Equal(t, tripstore.LandmarkPriority, record.LandmarkType)
}

func TestEnrichClipAppliesPendingMarkOverSampledLandmark(t *testing.T) {
	m, _, _, _, store, _, index := newTestManager()
	clip := sampleClip(t)
	store.gpsTrack = []tripstore.GpsCoordinate{{Latitude: 1, Longitude: 1}}
	index.nearbyHit = &landmark.Hit{Landmark: landmark.Landmark{ID: "sampled", Category: "restaurant"}, DistanceM: 10}

	m.mu.Lock()
	m.pendingMark = &pendingLandmarkMark{
		at:           clip.StartTime.Add(10 * time.Second),
		landmarkID:   "marked",
		landmarkType: tripstore.LandmarkPriority,
	}
	m.mu.Unlock()

	record := m.enrichClip(context.Background(), 1, clip)

	assert.Equal(t, "marked", record.LandmarkID)
	assert.Equal(t, tripstore.LandmarkPriority, record.LandmarkType)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Nil(t, m.pendingMark, "pending mark should be consumed once applied")
}

func TestEnrichClipPendingMarkOutsideWindowIsIgnored(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	clip := sampleClip(t)

	m.mu.Lock()
	m.pendingMark = &pendingLandmarkMark{at: clip.EndTime.Add(time.Hour), landmarkID: "too-late"}
	m.mu.Unlock()

	record := m.enrichClip(context.Background(), 1, clip)
	assert.Empty(t, record.LandmarkID)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotNil(t, m.pendingMark, "mark outside this clip's window should remain pending")
}

func TestEnrichClipCallsGeocoderAndStoresLocation(t *testing.T) {
	road := &fakeDriver{name: "road"}
	interior := &fakeDriver{name: "interior"}
	store := &fakeTripStore{gpsTrack: []tripstore.GpsCoordinate{{Latitude: 5, Longitude: 6}}}
	geocoder := &fakeGeocoder{result: &GeocodeResult{DisplayName: "Somewhere", City: "Townsville"}}
	m := New(road, interior, &fakeEngine{}, store, &fakeGPSReader{}, &fakeLandmarkIndex{}, geocoder, nil, nil, testLogger())

	record := m.enrichClip(context.Background(), 1, sampleClip(t))

	assert.Equal(t, 1, geocoder.calls)
	require.NotEmpty(t, record.Location)
	var decoded GeocodeResult
	require.NoError(t, json.Unmarshal([]byte(record.Location), &decoded))
	assert.Equal(t, "Somewhere", decoded.DisplayName)
}

func TestEnrichClipGeocoderErrorLeavesLocationEmpty(t *testing.T) {
	road := &fakeDriver{name: "road"}
	interior := &fakeDriver{name: "interior"}
	store := &fakeTripStore{gpsTrack: []tripstore.GpsCoordinate{{Latitude: 5, Longitude: 6}}}
	geocoder := &fakeGeocoder{err: assertErr}
	m := New(road, interior, &fakeEngine{}, store, &fakeGPSReader{}, &fakeLandmarkIndex{}, geocoder, nil, nil, testLogger())

	record := m.enrichClip(context.Background(), 1, sampleClip(t))
	assert.Empty(t, record.Location)
}

func TestInjectOrSidecarPrefersInjectorOnSuccess(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	injector := &fakeInjector{}
	m.injector = injector

	clip := sampleClip(t)
	m.injectOrSidecar(clip, nil, tripstore.ClipRecord{Quality: tripstore.ClipQualityNormal})

	assert.Len(t, injector.calls, 1)
	_, err := os.Stat(paths.SidecarGPXPath(clip.Files[recording.CameraRoad]))
	assert.True(t, os.IsNotExist(err), "sidecar should not be written when injection succeeds")
}

func TestInjectOrSidecarFallsBackOnInjectorFailure(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	m.injector = &fakeInjector{failErr: assertErr}

	clip := sampleClip(t)
	gps := []tripstore.GpsCoordinate{{Latitude: 1, Longitude: 2, Timestamp: time.Now()}}
	record := tripstore.ClipRecord{Quality: tripstore.ClipQualityHigh, NearLandmark: true, LandmarkID: "lm-1"}
	m.injectOrSidecar(clip, gps, record)

	videoPath := clip.Files[recording.CameraRoad]
	gpxBytes, err := os.ReadFile(paths.SidecarGPXPath(videoPath))
	require.NoError(t, err)
	assert.Contains(t, string(gpxBytes), "trkpt")

	jsonBytes, err := os.ReadFile(paths.SidecarMetadataPath(videoPath))
	require.NoError(t, err)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(jsonBytes, &fields))
	assert.Equal(t, "high", fields["recording_quality"])
	assert.Equal(t, "lm-1", fields["landmark_id"])
	assert.Equal(t, "dashcam-v2", fields["dashcam_system"])
}

func TestCompressTrackEveryTenthPoint(t *testing.T) {
	var gps []tripstore.GpsCoordinate
	for i := 0; i < 25; i++ {
		gps = append(gps, tripstore.GpsCoordinate{Latitude: float64(i), Longitude: float64(i)})
	}
	track := compressTrack(gps)
	assert.Equal(t, "0.000000,0.000000|10.000000,10.000000|20.000000,20.000000", track)
}

func TestInjectOrSidecarNoVideoFileIsNoop(t *testing.T) {
	m, _, _, _, _, _, _ := newTestManager()
	clip := recording.ClipRecord{Files: map[recording.CameraSlot]string{}}
	m.injectOrSidecar(clip, nil, tripstore.ClipRecord{})
}
