package recording

import (
	"context"
	"os"
	"sync"

	"github.com/dashcamv2/control-go/internal/camera"
)

// fakeDriver is a camera.Driver double. StartRecording writes a small
// non-empty file immediately, simulating an encoder that has already
// produced output by the time the clip rolls (verifyFiles only checks
// existence and non-zero size, never content).
type fakeDriver struct {
	mu            sync.Mutex
	name          string
	startErr      error
	startErrOnce  bool // if true, startErr only fires on the first call
	started       int
	stopped       int
	lastPath      string
	lastQuality   camera.QualityConfig
	skipFileWrite bool // simulate a camera whose file never materializes
}

func (d *fakeDriver) Name() string { return d.name }

func (d *fakeDriver) Initialize(ctx context.Context) error { return nil }

func (d *fakeDriver) Release() error { return nil }

func (d *fakeDriver) CaptureFrame(ctx context.Context) (*camera.Frame, error) {
	return &camera.Frame{Data: []byte("jpeg")}, nil
}

func (d *fakeDriver) StartRecording(ctx context.Context, path string, quality camera.QualityConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started++
	d.lastPath = path
	d.lastQuality = quality

	if d.startErr != nil {
		err := d.startErr
		if d.startErrOnce {
			d.startErr = nil
		}
		return err
	}
	if d.skipFileWrite {
		return nil
	}
	return os.WriteFile(path, []byte("fake-clip-bytes"), 0o644)
}

func (d *fakeDriver) StopRecording(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped++
	return nil
}

// fakeFrameDriver additionally implements camera.FrameDrivenRecorder, like
// the interior camera.
type fakeFrameDriver struct {
	fakeDriver
	frameCalls int
}

func (d *fakeFrameDriver) RecordFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameCalls++
	return nil
}
