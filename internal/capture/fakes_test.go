package capture

import (
	"context"
	"sync"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/gpsreader"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// fakeDriver is a minimal camera.Driver double: every call succeeds unless
// the corresponding error field is set.
type fakeDriver struct {
	mu          sync.Mutex
	name        string
	initErr     error
	releaseErr  error
	captureErr  error
	initCalls   int
	releaseCalls int
	frame       *camera.Frame
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initCalls++
	return d.initErr
}

func (d *fakeDriver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.releaseCalls++
	return d.releaseErr
}

func (d *fakeDriver) CaptureFrame(ctx context.Context) (*camera.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.captureErr != nil {
		return nil, d.captureErr
	}
	if d.frame != nil {
		return d.frame, nil
	}
	return &camera.Frame{Data: []byte("jpeg"), Width: 640, Height: 480, Timestamp: time.Now()}, nil
}

func (d *fakeDriver) StartRecording(ctx context.Context, path string, quality camera.QualityConfig) error {
	return nil
}

func (d *fakeDriver) StopRecording(ctx context.Context) error { return nil }

// fakeEngine is an Engine double driven directly by tests, bypassing real
// camera I/O and clip timing.
type fakeEngine struct {
	mu            sync.Mutex
	state         recording.State
	quality       camera.Quality
	startErr      error
	stopErr       error
	stopClips     []recording.ClipRecord
	startCalls    int
	stopCalls     int
	setQualityLog []camera.Quality
	callback      recording.CompletedClipFunc
}

func (e *fakeEngine) StartRecording(ctx context.Context, quality camera.Quality, callback recording.CompletedClipFunc) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startCalls++
	if e.startErr != nil {
		return e.startErr
	}
	e.quality = quality
	e.state = recording.StateRecording
	e.callback = callback
	return nil
}

func (e *fakeEngine) StopRecording(ctx context.Context) ([]recording.ClipRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopCalls++
	if e.stopErr != nil {
		return nil, e.stopErr
	}
	e.state = recording.StateIdle
	return e.stopClips, nil
}

func (e *fakeEngine) SetQuality(quality camera.Quality) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quality = quality
	e.setQualityLog = append(e.setQualityLog, quality)
}

func (e *fakeEngine) Quality() camera.Quality {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quality
}

func (e *fakeEngine) State() recording.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// invokeCallback lets a test simulate the Recording Engine rolling a clip.
func (e *fakeEngine) invokeCallback(clip recording.ClipRecord) {
	e.mu.Lock()
	cb := e.callback
	e.mu.Unlock()
	if cb != nil {
		cb(clip)
	}
}

// fakeTripStore is an in-memory TripStore double.
type fakeTripStore struct {
	mu                sync.Mutex
	nextTripID        int64
	activeTrip        *tripstore.Trip
	startErr          error
	endErr            error
	gpsSamples        []tripstore.GpsSample
	gpsTrack          []tripstore.GpsCoordinate
	encounters        []tripstore.LandmarkEncounter
	clips             []tripstore.ClipRecord
	upgrades          []tripstore.UpgradeRecord
	endedTrips        []int64
	endedAt           []time.Time
}

func (s *fakeTripStore) StartTrip(ctx context.Context, startLat, startLon *float64, plannedTripID *string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return 0, s.startErr
	}
	s.nextTripID++
	return s.nextTripID, nil
}

func (s *fakeTripStore) EndTrip(ctx context.Context, tripID int64, endLat, endLon *float64) (bool, error) {
	return s.EndTripAt(ctx, tripID, time.Now(), endLat, endLon)
}

func (s *fakeTripStore) EndTripAt(ctx context.Context, tripID int64, endTime time.Time, endLat, endLon *float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endErr != nil {
		return false, s.endErr
	}
	s.endedTrips = append(s.endedTrips, tripID)
	s.endedAt = append(s.endedAt, endTime)
	return true, nil
}

func (s *fakeTripStore) LogGPS(ctx context.Context, tripID int64, sample tripstore.GpsSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gpsSamples = append(s.gpsSamples, sample)
	return nil
}

func (s *fakeTripStore) FlushGPS(ctx context.Context, tripID int64) error { return nil }

func (s *fakeTripStore) GPSTrackInRange(ctx context.Context, tripID int64, start, end time.Time) ([]tripstore.GpsCoordinate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gpsTrack, nil
}

func (s *fakeTripStore) AddLandmarkEncounter(ctx context.Context, tripID int64, encounter tripstore.LandmarkEncounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounters = append(s.encounters, encounter)
	return nil
}

func (s *fakeTripStore) RecordClip(ctx context.Context, tripID int64, clip tripstore.ClipRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clips = append(s.clips, clip)
	return int64(len(s.clips)), nil
}

func (s *fakeTripStore) LogQualityUpgrade(ctx context.Context, tripID int64, upgrade tripstore.UpgradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upgrades = append(s.upgrades, upgrade)
	return nil
}

func (s *fakeTripStore) GetActiveTrip(ctx context.Context) (*tripstore.Trip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTrip, nil
}

// fakeGPSReader returns a fixed, settable fix.
type fakeGPSReader struct {
	mu  sync.Mutex
	fix *gpsreader.Fix
}

func (g *fakeGPSReader) Read() *gpsreader.Fix {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fix
}

func (g *fakeGPSReader) set(fix *gpsreader.Fix) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fix = fix
}

// fakeLandmarkIndex lets tests script Nearby/NearbyWithin/ShouldNotify
// results directly, without a real spatial index.
type fakeLandmarkIndex struct {
	mu           sync.Mutex
	nearbyHit    *landmark.Hit
	nearbyWithin []landmark.Proximity
	notify       map[string]bool
}

func (f *fakeLandmarkIndex) Nearby(lat, lon float64) *landmark.Hit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nearbyHit
}

func (f *fakeLandmarkIndex) NearbyWithin(lat, lon, radiusKm float64) []landmark.Proximity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nearbyWithin
}

func (f *fakeLandmarkIndex) ShouldNotify(landmarkID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notify == nil {
		return true
	}
	v, ok := f.notify[landmarkID]
	if !ok {
		return true
	}
	return v
}

// fakeGeocoder returns a fixed result or error.
type fakeGeocoder struct {
	result *GeocodeResult
	err    error
	calls  int
}

func (g *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (*GeocodeResult, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

// fakeInjector records Inject calls and optionally fails.
type fakeInjector struct {
	mu      sync.Mutex
	calls   []string
	lastFields map[string]string
	failErr error
}

func (i *fakeInjector) Inject(videoPath string, fields map[string]string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, videoPath)
	i.lastFields = fields
	return i.failErr
}

// fakeSettingsBus records Publish calls.
type fakeSettingsBus struct {
	mu    sync.Mutex
	calls []map[string]interface{}
	err   error
}

func (b *fakeSettingsBus) Publish(settings map[string]interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, settings)
	return b.err
}
