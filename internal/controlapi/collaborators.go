package controlapi

import (
	"context"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/geodata"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

// CaptureManager is the subset of *capture.Manager the control-plane API
// drives: start/stop recording and settings push, named explicitly per
// spec.md §9's constructor-injection design note.
type CaptureManager interface {
	StartRecording(ctx context.Context, quality camera.Quality) error
	StopRecording(ctx context.Context) ([]recording.ClipRecord, error)
	ApplySettings(settings map[string]interface{}) error
}

// TripStore is the subset of *tripstore.Store the control-plane API
// reads from for trip/calendar queries.
type TripStore interface {
	GetActiveTrip(ctx context.Context) (*tripstore.Trip, error)
	GetTripWithDetails(ctx context.Context, tripID int64) (*tripstore.TripDetails, error)
	GetCalendar(ctx context.Context, year, month int) ([]tripstore.CalendarDay, error)
}

// GeodataJobs is the subset of *geodata.Downloader the control-plane API
// drives: start/pause/resume/cancel and progress polling, per
// SPEC_FULL.md's "geodata pause/resume/cancel" control-plane requirement.
type GeodataJobs interface {
	Start(ctx context.Context, tripID int64, opts geodata.Options) error
	Pause(tripID int64) error
	Resume(tripID int64) error
	Cancel(tripID int64) error
	Progress(tripID int64) (geodata.Progress, error)
}
