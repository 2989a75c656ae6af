package recording

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/paths"
)

func newTestEngine(t *testing.T) (*Engine, *fakeDriver, *fakeFrameDriver) {
	t.Helper()
	layout, err := paths.New(t.TempDir(), "", "")
	require.NoError(t, err)

	road := &fakeDriver{name: "road"}
	interior := &fakeFrameDriver{fakeDriver: fakeDriver{name: "interior"}}
	e := New(road, interior, layout, logging.NewLogger("recording-test"))
	return e, road, interior
}

func TestStartRecordingBeginsFirstClipOnBothCameras(t *testing.T) {
	e, road, interior := newTestEngine(t)

	err := e.StartRecording(context.Background(), camera.QualityNormal, nil)
	require.NoError(t, err)
	assert.Equal(t, StateRecording, e.State())

	road.mu.Lock()
	assert.Equal(t, 1, road.started)
	road.mu.Unlock()

	interior.mu.Lock()
	assert.Equal(t, 1, interior.started)
	interior.mu.Unlock()

	clips, err := e.StopRecording(context.Background())
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, 1, clips[0].SequenceNum)
}

func TestStartRecordingFailsWhenAlreadyRecording(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, nil))

	err := e.StartRecording(context.Background(), camera.QualityNormal, nil)
	assert.Error(t, err)
}

func TestStartWithRetrySucceedsOnSecondAttempt(t *testing.T) {
	e, road, _ := newTestEngine(t)
	road.startErr = errors.New("device busy")
	road.startErrOnce = true

	err := e.StartRecording(context.Background(), camera.QualityNormal, nil)
	require.NoError(t, err)

	road.mu.Lock()
	assert.Equal(t, 2, road.started)
	road.mu.Unlock()
}

func TestStartRecordingTerminatesSessionWhenRetryExhausted(t *testing.T) {
	e, road, _ := newTestEngine(t)
	road.startErr = errors.New("device permanently gone")

	err := e.StartRecording(context.Background(), camera.QualityNormal, nil)
	assert.Error(t, err)
	assert.Equal(t, StateIdle, e.State())
}

func TestSetQualityRollsImmediatelyWithNewSuffix(t *testing.T) {
	e, _, _ := newTestEngine(t)

	var mu sync.Mutex
	var completed []ClipRecord
	callback := func(c ClipRecord) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, c)
	}

	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, callback))
	e.SetQuality(camera.QualityHigh)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, camera.QualityNormal, completed[0].Quality)
	mu.Unlock()

	assert.Equal(t, camera.QualityHigh, e.Quality())
	assert.Equal(t, StateRecording, e.State())

	clips, err := e.StopRecording(context.Background())
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, camera.QualityHigh, clips[0].Quality)
	assert.Equal(t, 2, clips[0].SequenceNum)
}

func TestSetQualitySameValueDoesNotRoll(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, nil))

	e.SetQuality(camera.QualityNormal)
	time.Sleep(50 * time.Millisecond)

	clips, err := e.StopRecording(context.Background())
	require.NoError(t, err)
	require.Len(t, clips, 1)
	assert.Equal(t, 1, clips[0].SequenceNum)
}

func TestStopRecordingWhenNotInProgressErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.StopRecording(context.Background())
	assert.Error(t, err)
}

func TestCompletedClipFileAbsentWhenCameraFailsMidClip(t *testing.T) {
	e, road, _ := newTestEngine(t)
	road.skipFileWrite = true

	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, nil))
	clips, err := e.StopRecording(context.Background())
	require.NoError(t, err)
	require.Len(t, clips, 1)

	_, ok := clips[0].Files[CameraRoad]
	assert.False(t, ok, "road file should be absent from the map since it was never written")
}

func TestCallbackPanicIsRecoveredNotPropagated(t *testing.T) {
	e, _, _ := newTestEngine(t)
	callback := func(ClipRecord) { panic("boom") }

	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, callback))
	e.SetQuality(camera.QualityHigh)

	require.Eventually(t, func() bool {
		return e.Quality() == camera.QualityHigh
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, StateRecording, e.State())
}

func TestInteriorFramePumpIsDriven(t *testing.T) {
	e, _, interior := newTestEngine(t)
	require.NoError(t, e.StartRecording(context.Background(), camera.QualityNormal, nil))

	require.Eventually(t, func() bool {
		interior.mu.Lock()
		defer interior.mu.Unlock()
		return interior.frameCalls > 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := e.StopRecording(context.Background())
	require.NoError(t, err)
}
