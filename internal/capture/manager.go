package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/dashcamerrors"
	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
	"github.com/dashcamv2/control-go/internal/recording"
)

// initializeDeadline bounds the parallel dual-camera Initialize join.
const initializeDeadline = 10 * time.Second

// Manager is the Capture Manager (spec.md §4.G): it glues the camera
// drivers, the Recording Engine, the GPS Reader, the Landmark Index, and
// the Trip Store. Every collaborator is injected at construction (spec.md
// §9), never reached for via a global.
type Manager struct {
	road     camera.Driver
	interior camera.Driver
	engine   Engine
	store    TripStore
	gps      GPSReader
	index    LandmarkIndex
	geocoder Geocoder // optional
	injector MetadataInjector // optional
	settings SettingsBus // optional
	logger   *logging.Logger

	mu             sync.Mutex
	recordingOwned bool // true while the Recording Engine owns both drivers
	activeTripID   int64
	lastPersisted  int // highest clip sequence_num already persisted via the callback
	lastFix        *captureFixSnapshot

	gpsCancel context.CancelFunc
	gpsDone   chan struct{}

	pendingMark *pendingLandmarkMark

	preview previewTracker
}

type captureFixSnapshot struct {
	lat, lon float64
}

// New constructs a Manager. geocoder and injector may be nil: their
// absence degrades gracefully per spec.md §4.G step 4/5 and §6's sidecar
// fallback.
func New(road, interior camera.Driver, engine Engine, store TripStore, gps GPSReader, index LandmarkIndex, geocoder Geocoder, injector MetadataInjector, settings SettingsBus, logger *logging.Logger) *Manager {
	return &Manager{
		road:     road,
		interior: interior,
		engine:   engine,
		store:    store,
		gps:      gps,
		index:    index,
		geocoder: geocoder,
		injector: injector,
		settings: settings,
		logger:   logger,
		preview:  newPreviewTracker(),
	}
}

// Initialize brings up both cameras in parallel, bounded by
// initializeDeadline, per spec.md §4.G ("parallel init of both cameras
// (join with deadlines)").
func (m *Manager) Initialize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, initializeDeadline)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.road.Initialize(gctx) })
	g.Go(func() error { return m.interior.Initialize(gctx) })
	return g.Wait()
}

// StartRecording starts the Recording Engine, opens a new trip, and
// launches the GPS logger task.
func (m *Manager) StartRecording(ctx context.Context, quality camera.Quality) error {
	m.mu.Lock()
	if m.recordingOwned {
		m.mu.Unlock()
		return fmt.Errorf("capture: recording already in progress")
	}
	m.mu.Unlock()

	tripID, err := m.store.StartTrip(ctx, nil, nil, nil)
	if err != nil {
		return fmt.Errorf("capture: start trip: %w", err)
	}

	if err := m.engine.StartRecording(ctx, quality, m.onClipCompleted); err != nil {
		m.store.EndTrip(ctx, tripID, nil, nil)
		return fmt.Errorf("capture: start recording: %w", err)
	}

	gpsCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.recordingOwned = true
	m.activeTripID = tripID
	m.lastPersisted = 0
	m.gpsCancel = cancel
	m.gpsDone = done
	m.mu.Unlock()

	go m.runGPSLogger(gpsCtx, done, tripID)
	return nil
}

// StopRecording stops the GPS logger, stops the engine, persists the
// final (not-yet-persisted) clip, and ends the trip. It returns every
// clip from this session, completed ones already persisted via the
// callback as well as the final one persisted here.
func (m *Manager) StopRecording(ctx context.Context) ([]recording.ClipRecord, error) {
	m.mu.Lock()
	if !m.recordingOwned {
		m.mu.Unlock()
		return nil, fmt.Errorf("capture: not recording")
	}
	tripID := m.activeTripID
	cancel := m.gpsCancel
	done := m.gpsDone
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if err := m.store.FlushGPS(ctx, tripID); err != nil {
		m.logger.WithError(err).Warn("flush GPS on stop failed")
	}

	clips, err := m.engine.StopRecording(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: stop recording: %w", err)
	}

	m.mu.Lock()
	lastPersisted := m.lastPersisted
	m.mu.Unlock()

	var endLat, endLon *float64
	for _, clip := range clips {
		if clip.SequenceNum <= lastPersisted {
			continue // already persisted via the completed-clip callback
		}
		record := m.enrichClip(ctx, tripID, clip)
		if _, err := m.store.RecordClip(ctx, tripID, record); err != nil {
			m.logger.WithError(err).WithField("sequence_num", fmt.Sprintf("%d", clip.SequenceNum)).Error("failed to persist final clip")
		}
		if record.EndLat != nil && record.EndLon != nil {
			endLat, endLon = record.EndLat, record.EndLon
		}
	}

	if _, err := m.store.EndTrip(ctx, tripID, endLat, endLon); err != nil {
		m.logger.WithError(err).Error("failed to end trip")
	}

	m.mu.Lock()
	m.recordingOwned = false
	m.activeTripID = 0
	m.gpsCancel = nil
	m.gpsDone = nil
	m.mu.Unlock()

	return clips, nil
}

// onClipCompleted is the Recording Engine's per-clip callback: it
// enriches and persists every clip as it is rolled (spec.md §4.F step 3 /
// §4.G's "Clip-completed callback").
func (m *Manager) onClipCompleted(clip recording.ClipRecord) {
	m.mu.Lock()
	tripID := m.activeTripID
	m.mu.Unlock()
	if tripID == 0 {
		return
	}

	ctx := context.Background()
	record := m.enrichClip(ctx, tripID, clip)
	if _, err := m.store.RecordClip(ctx, tripID, record); err != nil {
		m.logger.WithError(err).WithField("sequence_num", fmt.Sprintf("%d", clip.SequenceNum)).Error("failed to persist completed clip")
		return
	}

	m.mu.Lock()
	if clip.SequenceNum > m.lastPersisted {
		m.lastPersisted = clip.SequenceNum
	}
	m.mu.Unlock()

	metrics.RecordingClipsCompletedTotal.WithLabelValues(string(record.Quality)).Inc()
}

// GetPreviewFrame reads a single frame from the named camera for live
// preview, enforcing the exclusive-ownership rule against an active
// recording session and driving the per-camera failure/reset policy
// (spec.md §4.G).
func (m *Manager) GetPreviewFrame(ctx context.Context, which CameraSlot) (*camera.Frame, error) {
	m.mu.Lock()
	owned := m.recordingOwned
	m.mu.Unlock()
	if owned {
		return nil, &dashcamerrors.CameraContention{Device: string(which), HeldBy: "recording"}
	}

	drv := m.driverFor(which)
	frame, err := drv.CaptureFrame(ctx)
	if err != nil {
		m.preview.recordFailure(ctx, which, drv, err, m.logger)
		return nil, &dashcamerrors.FrameCaptureFailed{Device: string(which), Err: err}
	}
	m.preview.recordSuccess(which)
	return frame, nil
}

func (m *Manager) driverFor(which CameraSlot) camera.Driver {
	if which == CameraInterior {
		return m.interior
	}
	return m.road
}

// ApplySettings forwards settings to the injected subscription bus, per
// spec.md §4.G ("updates recording/audio/storage settings via a
// subscription bus (out of scope here)"). A nil bus is a no-op success.
func (m *Manager) ApplySettings(settings map[string]interface{}) error {
	if m.settings == nil {
		return nil
	}
	return m.settings.Publish(settings)
}

// RecoverOrphanTrip finalizes any active trip left over from a prior
// process run, per spec.md §7: "the Capture Manager detects any orphan
// active trip (row with end_time = null from a prior run) and finalizes
// it with end_time = start_time + elapsed_db_age_capped_24h".
func (m *Manager) RecoverOrphanTrip(ctx context.Context) error {
	trip, err := m.store.GetActiveTrip(ctx)
	if err != nil {
		return fmt.Errorf("capture: recover orphan trip: %w", err)
	}
	if trip == nil {
		return nil
	}

	elapsed := time.Since(trip.StartTime)
	if elapsed > 24*time.Hour {
		elapsed = 24 * time.Hour
	}
	endTime := trip.StartTime.Add(elapsed)

	m.logger.WithField("trip_id", fmt.Sprintf("%d", trip.ID)).Warn("recovering orphan active trip from a prior process run")
	if _, err := m.store.EndTripAt(ctx, trip.ID, endTime, trip.EndLat, trip.EndLon); err != nil {
		return fmt.Errorf("capture: finalize orphan trip %d: %w", trip.ID, err)
	}
	return nil
}
