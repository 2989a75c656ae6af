package recording

import (
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
)

// CameraSlot identifies which of the two fixed cameras a file belongs to.
type CameraSlot string

const (
	CameraRoad     CameraSlot = "road"
	CameraInterior CameraSlot = "interior"
)

// State is the recording session's state machine position (spec.md §4.F:
// "Idle → Recording → Stopping → Idle").
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// clipDuration is the fixed clip length ("At clip_duration = 60 s
// elapsed...").
const clipDuration = 60 * time.Second

// framePumpInterval drives the interior driver's frame-by-frame polling
// ("the recording task polls record_frame() at ~30 fps").
const framePumpInterval = 33 * time.Millisecond

// ClipRecord describes one completed (or, on stop_recording, final) clip.
type ClipRecord struct {
	StartTime   time.Time
	EndTime     time.Time
	SequenceNum int
	Quality     camera.Quality
	Files       map[CameraSlot]string
}

// CompletedClipFunc is invoked once per completed clip. Panics and errors
// from it are recovered/logged, never propagated into the recording loop.
type CompletedClipFunc func(ClipRecord)

// qualityToken renders a Quality as the filename token spec.md §6 names
// ("HH-MM-SS_seq{03d}_{HQ|NQ}_{road|interior}.mp4").
func qualityToken(q camera.Quality) string {
	if q == camera.QualityHigh {
		return "HQ"
	}
	return "NQ"
}
