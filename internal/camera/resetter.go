package camera

import (
	"context"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
)

// maxConsecutiveFailures and resetPause implement spec.md §4.E's shared
// reset policy: "5 consecutive frame failures trigger release() → 1 s
// pause → initialize(); failure counter is reset on any success."
const (
	maxConsecutiveFailures = 5
	resetPause             = 1 * time.Second
)

// failureTracker counts consecutive capture_frame failures for a single
// driver and drives its release/pause/initialize reset, independent of
// whether the driver is the road or interior implementation.
type failureTracker struct {
	driver      Driver
	logger      *logging.Logger
	consecutive int
	sleep       func(time.Duration)
}

func newFailureTracker(driver Driver, logger *logging.Logger) *failureTracker {
	return &failureTracker{driver: driver, logger: logger, sleep: time.Sleep}
}

// recordSuccess resets the consecutive-failure counter.
func (t *failureTracker) recordSuccess() {
	t.consecutive = 0
}

// recordFailure bumps the counter and, once it reaches
// maxConsecutiveFailures, releases and reinitializes the driver, resetting
// the counter regardless of whether reinitialization itself succeeds (a
// fresh run starts counting from zero).
func (t *failureTracker) recordFailure(ctx context.Context, err error) {
	t.consecutive++
	t.logger.WithFields(logging.Fields{
		"driver":      t.driver.Name(),
		"consecutive": t.consecutive,
		"error":       err,
	}).Warn("camera frame failure")

	if t.consecutive < maxConsecutiveFailures {
		return
	}

	t.logger.WithField("driver", t.driver.Name()).Warn("resetting camera driver after 5 consecutive failures")
	if relErr := t.driver.Release(); relErr != nil {
		t.logger.WithError(relErr).Warn("driver release during reset failed")
	}
	t.sleep(resetPause)
	if initErr := t.driver.Initialize(ctx); initErr != nil {
		t.logger.WithError(initErr).Error("driver reinitialize after reset failed")
	}
	t.consecutive = 0
}
