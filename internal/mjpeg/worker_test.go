package mjpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/stretchr/testify/require"
)

func solidJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type fakeSource struct {
	calls int64
	jpg   []byte
}

func (f *fakeSource) CaptureFrame(ctx context.Context) (*Frame, error) {
	atomic.AddInt64(&f.calls, 1)
	return &Frame{JPEG: f.jpg, Timestamp: time.Now()}, nil
}

func testLoggerMJPEG() *logging.Logger {
	return logging.GetLogger("mjpeg-test")
}

func TestCameraWorkerCachesFrameWithNoClients(t *testing.T) {
	hub := NewHub()
	src := &fakeSource{jpg: solidJPEG(t, 64, 48)}
	w := newCameraWorker(CameraRoad, src, hub, testLoggerMJPEG())

	require.NoError(t, w.captureOnce(context.Background()))

	f, ok := hub.LastFrame(CameraRoad)
	require.True(t, ok)
	require.Equal(t, src.jpg, f.JPEG)
}

func TestCameraWorkerAnnotatesAndBroadcastsWithClients(t *testing.T) {
	hub := NewHub()
	src := &fakeSource{jpg: solidJPEG(t, 64, 48)}
	w := newCameraWorker(CameraRoad, src, hub, testLoggerMJPEG())

	c, err := hub.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)

	require.NoError(t, w.captureOnce(context.Background()))

	select {
	case f := <-c.queue:
		require.NotEqual(t, src.jpg, f.JPEG)
		img, err := jpeg.Decode(bytes.NewReader(f.JPEG))
		require.NoError(t, err)
		require.GreaterOrEqual(t, img.Bounds().Dx(), minWidth)
		require.GreaterOrEqual(t, img.Bounds().Dy(), minHeight)
	default:
		t.Fatal("expected a broadcast frame")
	}
}

func TestManagerRunStopsOnContextCancel(t *testing.T) {
	hub := NewHub()
	_ = hub
	src := &fakeSource{jpg: solidJPEG(t, 64, 48)}
	m := NewManager(Sources{CameraRoad: src}, testLoggerMJPEG())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Manager.Run did not return after cancel")
	}
	require.Greater(t, atomic.LoadInt64(&src.calls), int64(0))
}
