package geodata

import (
	"context"
	"time"
)

// Waypoint is one point along a trip's route: the start, an intermediate
// sample, or the end, per spec.md §4.I's "the trip's ordered waypoints
// (start + intermediate + end)".
type Waypoint struct {
	Lat, Lon float64
	Name     string
}

// WaypointSource resolves a trip's ordered waypoints. Defined as an
// interface so the downloader never reaches into internal/tripstore
// directly, per spec.md §9's constructor-injection design note.
type WaypointSource interface {
	Waypoints(ctx context.Context, tripID int64) ([]Waypoint, error)
}

// GeocodeResponse is the subset of internal/geocode.Response the downloader
// persists; kept as its own type so this package does not need to import
// internal/geocode's HTTP plumbing types, only the narrow Geocoder
// interface below.
type GeocodeResponse struct {
	DisplayName string
	Road        string
	City        string
	State       string
	Country     string
	CountryCode string
	Postcode    string
	BoundingBox []string
	Raw         string // full raw JSON, stored verbatim
}

// Geocoder is the narrow reverse-geocoding collaborator the downloader
// drives. internal/geocode.Client satisfies it via a thin adapter in the
// process composition root (see cmd/dashcamd).
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*GeocodeResponse, error)
}

// RecordStore is the narrow persistence collaborator: internal/geostore.Store
// satisfies it through a thin adapter in the process composition root (see
// cmd/dashcamd).
type RecordStore interface {
	Upsert(ctx context.Context, r StoredRecord) error
}

// StoredRecord mirrors geostore.Record without this package importing
// database/sql-adjacent types; the process composition root converts
// between the two only at the wiring boundary.
type StoredRecord struct {
	TripID       int64
	Lat, Lon     float64
	LocationType string
	DisplayName  string
	Road         string
	City         string
	State        string
	Country      string
	CountryCode  string
	Postcode     string
	BoundingBox  string
	RawResponse  string
}

// Phase is the job's current stage, per spec.md §4.I's Progress fields.
type Phase string

const (
	PhaseInitializing       Phase = "initializing"
	PhaseDownloadingWaypoint Phase = "downloading_waypoint"
	PhaseSavingData         Phase = "saving_data"
	PhaseCompletingWaypoint Phase = "completing_waypoint"
	PhaseComplete           Phase = "complete"
	PhaseError              Phase = "error"
	PhaseStopped            Phase = "stopped"
)

// Status is the job's coarse control-plane state.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
)

// Progress is the shared progress record per trip_id, per spec.md §4.I and
// the SSE wire format of spec.md §6.
type Progress struct {
	TripID             int64     `json:"trip_id"`
	Phase              Phase     `json:"phase"`
	Status             Status    `json:"status"`
	ProgressPercent    float64   `json:"progress_percent"`
	WaypointsProcessed int       `json:"waypoints_processed"`
	TotalWaypoints     int       `json:"total_waypoints"`
	GridProcessed      int       `json:"grid_processed"`
	GridTotal          int       `json:"grid_total"`
	SuccessfulCalls    int       `json:"successful_calls"`
	FailedCalls        int       `json:"failed_calls"`
	ETASeconds         float64   `json:"eta_seconds"`
	Message            string    `json:"message,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Options configures one job, per spec.md §4.I's "a per-waypoint radius
// (adaptive) or a single-center (lat, lon, radius_km), and a mode flag
// use_single_center".
type Options struct {
	UseSingleCenter bool
	CenterLat       float64
	CenterLon       float64
	CenterRadiusKm  float64
}
