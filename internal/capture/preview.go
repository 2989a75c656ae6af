package capture

import (
	"context"
	"sync"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// previewResetPause is the pause the reset policy holds between Release
// and Initialize, matching internal/camera's own reset pause (spec.md
// §4.E's policy, applied here to preview-frame failures rather than
// recording-frame failures since the two counters are independent: a
// camera can be failing preview captures while recording succeeds via its
// own encoder, or vice versa).
const previewResetPause = 1 * time.Second

// previewTracker counts consecutive preview-frame capture failures per
// camera and rate-limits the warning logs GetPreviewFrame emits, per
// spec.md §4.G ("maintains per-camera failure counter, triggers driver
// reset at threshold 5. Logs are rate-limited (at most one per 10 s per
// camera)").
type previewTracker struct {
	mu     sync.Mutex
	states map[CameraSlot]*previewState
}

type previewState struct {
	consecutive int
	lastLogged  time.Time
}

func newPreviewTracker() previewTracker {
	return previewTracker{states: make(map[CameraSlot]*previewState)}
}

func (t *previewTracker) recordSuccess(which CameraSlot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[which]; ok {
		s.consecutive = 0
	}
}

func (t *previewTracker) recordFailure(ctx context.Context, which CameraSlot, drv camera.Driver, err error, logger *logging.Logger) {
	t.mu.Lock()
	s, ok := t.states[which]
	if !ok {
		s = &previewState{}
		t.states[which] = s
	}
	s.consecutive++
	shouldLog := time.Since(s.lastLogged) >= previewLogInterval
	if shouldLog {
		s.lastLogged = time.Now()
	}
	reset := s.consecutive >= previewFailureThreshold
	if reset {
		s.consecutive = 0
	}
	t.mu.Unlock()

	if shouldLog {
		logger.WithFields(logging.Fields{"camera": string(which), "error": err}).Warn("preview frame capture failed")
	}

	if !reset {
		return
	}
	logger.WithField("camera", string(which)).Warn("resetting camera driver after 5 consecutive preview failures")
	metrics.RecordingDeviceResetsTotal.WithLabelValues(string(which)).Inc()
	if relErr := drv.Release(); relErr != nil {
		logger.WithError(relErr).Warn("preview driver release during reset failed")
	}
	time.Sleep(previewResetPause)
	if initErr := drv.Initialize(ctx); initErr != nil {
		logger.WithError(initErr).Error("preview driver reinitialize after reset failed")
	}
}
