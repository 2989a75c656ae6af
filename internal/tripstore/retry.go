package tripstore

import (
	"strings"
	"time"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
)

// maxBusyRetries is spec's "retried with exponential backoff up to 3
// tries; thereafter the operation fails with StorageBusy" (spec.md §4.B),
// narrower than the teacher pack's banshee lidar store (5 tries) since the
// dashcam's 10 s busy-timeout budget is tighter.
const maxBusyRetries = 3

const retryBaseDelay = 10 * time.Millisecond

// isSQLiteBusy reports whether err is SQLite's lock-contention error,
// grounded on banshee-data-velocity.report's internal/lidar analysis run
// store, which recognizes the same two driver-reported substrings.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// retryOnBusy retries op with exponential backoff (10ms, 20ms, 40ms) on
// SQLITE_BUSY, matching the teacher pack's retryOnBusy helper but capped
// at spec's 3-try budget. Any other error is returned unchanged; a busy
// error that survives all retries is returned wrapped as
// dashcamerrors.StorageBusy so callers can distinguish contention from a
// structural failure.
func retryOnBusy(op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxBusyRetries-1 {
			time.Sleep(retryBaseDelay * (1 << uint(attempt)))
		}
	}
	return &dashcamerrors.StorageBusy{Op: op, Err: err}
}
