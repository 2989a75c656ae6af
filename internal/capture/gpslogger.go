package capture

import (
	"context"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// pendingLandmarkMark is the "mark the current clip segment with the
// landmark's id" side effect of the ≤100 m threshold (spec.md §4.G
// Landmark Approach, third bullet). It is consumed by enrichClip for
// whichever clip is open when the approach was detected.
type pendingLandmarkMark struct {
	at           time.Time
	landmarkID   string
	landmarkType tripstore.LandmarkType
}

// runGPSLogger is the background GPS logger task (spec.md §4.G): every
// 2 s it persists the current fix, and every 5 s it checks nearby
// landmarks within a 2 km radius and runs the Landmark Approach handler
// on each. It exits once ctx is cancelled (StopRecording) and closes
// done.
func (m *Manager) runGPSLogger(ctx context.Context, done chan struct{}, tripID int64) {
	defer close(done)

	gpsTicker := time.NewTicker(gpsLogInterval)
	defer gpsTicker.Stop()
	landmarkTicker := time.NewTicker(landmarkCheckInterval)
	defer landmarkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gpsTicker.C:
			m.logCurrentFix(ctx, tripID)
		case <-landmarkTicker.C:
			m.checkNearbyLandmarks(ctx, tripID)
		}
	}
}

func (m *Manager) logCurrentFix(ctx context.Context, tripID int64) {
	fix := m.gps.Read()
	if fix == nil || fix.FixQuality < 1 {
		return
	}

	m.mu.Lock()
	m.lastFix = &captureFixSnapshot{lat: fix.Latitude, lon: fix.Longitude}
	m.mu.Unlock()

	sample := tripstore.GpsSample{
		Timestamp:  time.Now(),
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Altitude:   fix.Altitude,
		Speed:      fix.Speed,
		Heading:    fix.Heading,
		Satellites: fix.Satellites,
		FixQuality: fix.FixQuality,
	}
	if err := m.store.LogGPS(ctx, tripID, sample); err != nil {
		m.logger.WithError(err).Warn("log GPS sample failed")
	}
}

func (m *Manager) checkNearbyLandmarks(ctx context.Context, tripID int64) {
	m.mu.Lock()
	fix := m.lastFix
	m.mu.Unlock()
	if fix == nil {
		return
	}

	hits := m.index.NearbyWithin(fix.lat, fix.lon, landmarkCheckRadiusKm)
	for _, hit := range hits {
		m.handleLandmarkApproach(ctx, tripID, hit)
	}
}

// handleLandmarkApproach implements the three distance thresholds of
// spec.md §4.G's Landmark Approach handler.
func (m *Manager) handleLandmarkApproach(ctx context.Context, tripID int64, hit landmark.Proximity) {
	l := hit.Landmark
	priority := landmark.IsPriorityCategory(l.Category)

	if hit.DistanceM <= qualityUpgradeRadiusM && priority && m.engine.State() == recording.StateRecording && m.engine.Quality() == camera.QualityNormal {
		m.engine.SetQuality(camera.QualityHigh)
		upgrade := tripstore.UpgradeRecord{
			Timestamp:      time.Now(),
			LandmarkID:     l.ID,
			LandmarkName:   l.Name,
			DistanceMeters: hit.DistanceM,
			Reason:         "priority landmark within 500m",
		}
		if err := m.store.LogQualityUpgrade(ctx, tripID, upgrade); err != nil {
			m.logger.WithError(err).Warn("log quality upgrade failed")
		}
	}

	if hit.DistanceM <= landmarkEncounterRadiusM && m.index.ShouldNotify(l.ID) {
		encounter := tripstore.LandmarkEncounter{
			TripID:             tripID,
			LandmarkID:         l.ID,
			LandmarkName:       l.Name,
			Lat:                l.Lat,
			Lon:                l.Lon,
			EncounterTime:      time.Now(),
			LandmarkType:       landmarkTypeFor(l.Category),
			IsPriorityLandmark: priority,
		}
		if err := m.store.AddLandmarkEncounter(ctx, tripID, encounter); err != nil {
			m.logger.WithError(err).Warn("add landmark encounter failed")
		}
	}

	if hit.DistanceM <= autoStartRadiusM {
		// Recording is already active whenever this task runs (it is only
		// started from StartRecording), so "auto-start if not" is always
		// already satisfied here; only the clip-segment mark applies.
		m.mu.Lock()
		m.pendingMark = &pendingLandmarkMark{at: time.Now(), landmarkID: l.ID, landmarkType: landmarkTypeFor(l.Category)}
		m.mu.Unlock()
	}
}

// landmarkTypeFor maps a landmark's free-text category onto the fixed
// tripstore.LandmarkType enum, defaulting to priority/standard per
// spec.md §3's LandmarkEncounter definition.
func landmarkTypeFor(category string) tripstore.LandmarkType {
	switch tripstore.LandmarkType(category) {
	case tripstore.LandmarkHighway, tripstore.LandmarkCity, tripstore.LandmarkScenic,
		tripstore.LandmarkRestaurant, tripstore.LandmarkGasStation, tripstore.LandmarkHotel:
		return tripstore.LandmarkType(category)
	}
	if landmark.IsPriorityCategory(category) {
		return tripstore.LandmarkPriority
	}
	return tripstore.LandmarkStandard
}
