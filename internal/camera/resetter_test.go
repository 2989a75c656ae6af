package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	name         string
	releaseCalls int
	initCalls    int
	releaseErr   error
	initErr      error
}

func (d *fakeDriver) Name() string { return d.name }
func (d *fakeDriver) Initialize(ctx context.Context) error {
	d.initCalls++
	return d.initErr
}
func (d *fakeDriver) Release() error {
	d.releaseCalls++
	return d.releaseErr
}
func (d *fakeDriver) CaptureFrame(ctx context.Context) (*Frame, error)   { return nil, nil }
func (d *fakeDriver) StartRecording(ctx context.Context, path string, q QualityConfig) error {
	return nil
}
func (d *fakeDriver) StopRecording(ctx context.Context) error { return nil }

func TestFailureTrackerResetsAfterFiveConsecutiveFailures(t *testing.T) {
	driver := &fakeDriver{name: "test"}
	tracker := newFailureTracker(driver, testLogger())
	tracker.sleep = func(time.Duration) {}

	for i := 0; i < 4; i++ {
		tracker.recordFailure(context.Background(), errors.New("boom"))
		assert.Equal(t, 0, driver.releaseCalls, "must not reset before the 5th consecutive failure")
	}
	tracker.recordFailure(context.Background(), errors.New("boom"))

	assert.Equal(t, 1, driver.releaseCalls)
	assert.Equal(t, 1, driver.initCalls)
	assert.Equal(t, 0, tracker.consecutive)
}

func TestFailureTrackerSuccessResetsCounter(t *testing.T) {
	driver := &fakeDriver{name: "test"}
	tracker := newFailureTracker(driver, testLogger())
	tracker.sleep = func(time.Duration) {}

	tracker.recordFailure(context.Background(), errors.New("boom"))
	tracker.recordFailure(context.Background(), errors.New("boom"))
	tracker.recordSuccess()
	assert.Equal(t, 0, tracker.consecutive)

	for i := 0; i < 4; i++ {
		tracker.recordFailure(context.Background(), errors.New("boom"))
	}
	require.Equal(t, 0, driver.releaseCalls, "the post-success count should not yet have reached 5")
}
