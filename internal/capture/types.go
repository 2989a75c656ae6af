package capture

import (
	"context"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/gpsreader"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// CameraSlot identifies one of the two fixed cameras. It mirrors
// recording.CameraSlot so the Capture Manager never needs to reach into
// the recording package's internals to name a camera.
type CameraSlot string

const (
	CameraRoad     CameraSlot = "road"
	CameraInterior CameraSlot = "interior"
)

// gpsLogInterval and landmarkCheckInterval are the GPS logger task's two
// cadences (spec.md §4.G): "every 2 s, reads the current fix... every 5 s,
// also checks nearby landmarks within a 2 km radius".
const (
	gpsLogInterval       = 2 * time.Second
	landmarkCheckInterval = 5 * time.Second
	landmarkCheckRadiusKm = 2.0

	previewFailureThreshold = 5
	previewLogInterval      = 10 * time.Second

	qualityUpgradeRadiusM  = 500.0
	landmarkEncounterRadiusM = 200.0
	autoStartRadiusM        = 100.0

	gpsSampleStride = 5 // "sample the track at every 5th row"
)

// Engine is the subset of *recording.Engine the Capture Manager drives.
// Defined as an interface so tests can substitute a fake recording loop
// without spinning up real camera drivers.
type Engine interface {
	StartRecording(ctx context.Context, quality camera.Quality, callback recording.CompletedClipFunc) error
	StopRecording(ctx context.Context) ([]recording.ClipRecord, error)
	SetQuality(quality camera.Quality)
	Quality() camera.Quality
	State() recording.State
}

// TripStore is the subset of *tripstore.Store the Capture Manager uses,
// named explicitly per spec.md §9's constructor-injection design note
// ("each component receives its collaborators at creation and never
// reaches into globals").
type TripStore interface {
	StartTrip(ctx context.Context, startLat, startLon *float64, plannedTripID *string) (int64, error)
	EndTrip(ctx context.Context, tripID int64, endLat, endLon *float64) (bool, error)
	EndTripAt(ctx context.Context, tripID int64, endTime time.Time, endLat, endLon *float64) (bool, error)
	LogGPS(ctx context.Context, tripID int64, sample tripstore.GpsSample) error
	FlushGPS(ctx context.Context, tripID int64) error
	GPSTrackInRange(ctx context.Context, tripID int64, start, end time.Time) ([]tripstore.GpsCoordinate, error)
	AddLandmarkEncounter(ctx context.Context, tripID int64, encounter tripstore.LandmarkEncounter) error
	RecordClip(ctx context.Context, tripID int64, clip tripstore.ClipRecord) (int64, error)
	LogQualityUpgrade(ctx context.Context, tripID int64, upgrade tripstore.UpgradeRecord) error
	GetActiveTrip(ctx context.Context) (*tripstore.Trip, error)
}

// GPSReader is the subset of *gpsreader.Reader the Capture Manager reads
// from: a cheap, non-blocking snapshot of the latest fix.
type GPSReader interface {
	Read() *gpsreader.Fix
}

// LandmarkIndex is the subset of *landmark.Index the Capture Manager
// queries.
type LandmarkIndex interface {
	Nearby(lat, lon float64) *landmark.Hit
	NearbyWithin(lat, lon, radiusKm float64) []landmark.Proximity
	ShouldNotify(landmarkID string) bool
}

// Geocoder is the narrow reverse-geocoding collaborator spec.md §4.G step
// 4 names ("optionally call the reverse-geocoding service on the clip's
// start coordinate"). It is out of scope for this package to implement the
// HTTP transport beyond the shared internal/geocode client wired in by the
// process's composition root.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (*GeocodeResult, error)
}

// GeocodeResult is the flat location text spec.md §6 names for clip
// metadata injection: "{display_name, city, town, village, state,
// country, country_code, timestamp}".
type GeocodeResult struct {
	DisplayName string    `json:"display_name"`
	City        string    `json:"city"`
	Town        string    `json:"town"`
	Village     string    `json:"village"`
	State       string    `json:"state"`
	Country     string    `json:"country"`
	CountryCode string    `json:"country_code"`
	Timestamp   time.Time `json:"timestamp"`
}

// MetadataInjector is the narrow container-tag injection collaborator
// spec.md §6 names. Out of scope per spec.md §1; when nil or when Inject
// fails, the Capture Manager falls back to the GPX+JSON sidecar files
// spec.md §6 describes as the fallback path.
type MetadataInjector interface {
	Inject(videoPath string, fields map[string]string) error
}

// SettingsBus is the narrow "subscription bus" collaborator
// ApplySettings forwards to (spec.md §4.G: "updates recording/audio/
// storage settings via a subscription bus (out of scope here)").
type SettingsBus interface {
	Publish(settings map[string]interface{}) error
}

