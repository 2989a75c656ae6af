package camera

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
	"github.com/dashcamv2/control-go/internal/logging"
)

// interiorCodecFallback is the software-encoder codec preference chain
// from spec.md §4.E: "prefer H.264 codec avc1; fallback chain: avc1 →
// X264 → mp4v".
var interiorCodecFallback = []string{"avc1", "X264", "mp4v"}

// InteriorDriver opens a V4L2-class device by index and drives a software
// frame-by-frame encoder, following the teacher's
// RealV4L2CommandExecutor/RealDeviceChecker testability split
// (internal/camera/interfaces.go) adapted to the spec's fixed two-camera
// model instead of open-ended device discovery.
type InteriorDriver struct {
	deviceIndex int
	devicePath  string
	checker     DeviceChecker
	runner      ProcessRunner
	logger      *logging.Logger

	mu           sync.Mutex
	initialized  bool
	codec        string
	recording    Process
	recordingIn  io.WriteCloser
	recordWidth  int
	recordHeight int

	tracker *failureTracker
}

// NewInteriorDriver constructs the interior driver for /dev/video<index>.
func NewInteriorDriver(deviceIndex int, checker DeviceChecker, runner ProcessRunner, logger *logging.Logger) *InteriorDriver {
	d := &InteriorDriver{
		deviceIndex: deviceIndex,
		devicePath:  fmt.Sprintf("/dev/video%d", deviceIndex),
		checker:     checker,
		runner:      runner,
		logger:      logger.WithField("driver", "interior"),
	}
	d.tracker = newFailureTracker(d, logger)
	return d
}

func (d *InteriorDriver) Name() string { return "interior" }

// Initialize opens the V4L2 device, killing a stale holder process first
// if the device node exists but is held, and negotiates the first working
// codec in interiorCodecFallback.
func (d *InteriorDriver) Initialize(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.checker.Exists(d.devicePath) {
		return &dashcamerrors.DeviceUnavailable{Device: d.devicePath, Err: fmt.Errorf("device node not present")}
	}

	if err := d.killStaleHolder(ctx); err != nil {
		d.logger.WithError(err).Warn("stale device holder kill failed, continuing")
	}

	codec, err := d.negotiateCodec(ctx)
	if err != nil {
		return &dashcamerrors.DeviceUnavailable{Device: d.devicePath, Err: err}
	}
	d.codec = codec
	d.initialized = true
	return nil
}

// killStaleHolder issues a privileged kill against any process holding the
// device path open, per spec.md §4.E ("may issue a privileged kill on the
// device path when a stale process holds it").
func (d *InteriorDriver) killStaleHolder(ctx context.Context) error {
	proc, err := d.runner.Start(ctx, "fuser", []string{"-k", d.devicePath})
	if err != nil {
		return err
	}
	return proc.Wait()
}

// negotiateCodec probes each codec in the fallback chain in order and
// returns the first the software encoder accepts. The real negotiation
// would query the v4l2-loopback/software encoder's supported fourccs; here
// the chain order itself is the policy and the first entry is assumed
// available unless overridden by a failing probe hook in tests.
func (d *InteriorDriver) negotiateCodec(ctx context.Context) (string, error) {
	for _, codec := range interiorCodecFallback {
		if d.probeCodec(ctx, codec) {
			return codec, nil
		}
	}
	return "", fmt.Errorf("no codec in fallback chain %v is available", interiorCodecFallback)
}

func (d *InteriorDriver) probeCodec(_ context.Context, _ string) bool {
	return true
}

func (d *InteriorDriver) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording != nil {
		_ = d.recording.Signal(syscall.SIGTERM)
		_ = d.recording.Wait()
		d.recording = nil
	}
	d.initialized = false
	d.codec = ""
	return nil
}

// CaptureFrame pulls a single frame from the V4L2 device via v4l2-ctl's
// still-capture mode.
func (d *InteriorDriver) CaptureFrame(ctx context.Context) (*Frame, error) {
	d.mu.Lock()
	initialized := d.initialized
	path := d.devicePath
	d.mu.Unlock()

	if !initialized {
		err := &dashcamerrors.FrameCaptureFailed{Device: path, Err: fmt.Errorf("driver not initialized")}
		d.tracker.recordFailure(ctx, err)
		return nil, err
	}

	frame, err := snapshotFrame(ctx, d.runner, path, 640, 480)
	if err != nil {
		captureErr := &dashcamerrors.FrameCaptureFailed{Device: path, Err: err}
		d.tracker.recordFailure(ctx, captureErr)
		return nil, captureErr
	}
	d.tracker.recordSuccess()
	return frame, nil
}

// StartRecording starts the software encoder reading frames from stdin,
// ready for RecordFrame to pump into it: spec.md §4.E/§4.F describe the
// interior driver as "frame-by-frame writer with a software encoder", so
// unlike RoadDriver's self-driven hardware path, frames are supplied by
// the caller rather than read directly from the device by the encoder.
func (d *InteriorDriver) StartRecording(ctx context.Context, path string, quality QualityConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return &dashcamerrors.EncoderError{Device: d.devicePath, Err: fmt.Errorf("driver not initialized")}
	}
	if d.recording != nil {
		return &dashcamerrors.EncoderError{Device: d.devicePath, Err: fmt.Errorf("recording already in progress")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &dashcamerrors.EncoderError{Device: d.devicePath, Err: err}
	}

	args := softwareEncodeArgsStdin(path, d.codec, quality)
	proc, stdin, err := d.runner.StartWithStdin(ctx, "ffmpeg", args)
	if err != nil {
		return &dashcamerrors.EncoderError{Device: d.devicePath, Err: err}
	}
	d.recording = proc
	d.recordingIn = stdin
	d.recordWidth = quality.Width
	d.recordHeight = quality.Height
	return nil
}

// RecordFrame captures one frame from the device and writes it into the
// active recording's encoder stdin. Implements camera.FrameDrivenRecorder.
func (d *InteriorDriver) RecordFrame(ctx context.Context) error {
	d.mu.Lock()
	stdin := d.recordingIn
	path := d.devicePath
	width, height := d.recordWidth, d.recordHeight
	d.mu.Unlock()

	if stdin == nil {
		return nil
	}

	frame, err := snapshotFrame(ctx, d.runner, path, width, height)
	if err != nil {
		captureErr := &dashcamerrors.FrameCaptureFailed{Device: path, Err: err}
		d.tracker.recordFailure(ctx, captureErr)
		return captureErr
	}
	d.tracker.recordSuccess()

	if _, err := stdin.Write(frame.Data); err != nil {
		return &dashcamerrors.EncoderError{Device: path, Err: err}
	}
	return nil
}

func (d *InteriorDriver) StopRecording(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.recording == nil {
		return nil
	}
	if d.recordingIn != nil {
		_ = d.recordingIn.Close()
		d.recordingIn = nil
	}
	err := d.recording.Wait()
	d.recording = nil
	if err != nil {
		return &dashcamerrors.EncoderError{Device: d.devicePath, Err: err}
	}
	return nil
}

func (d *InteriorDriver) StartNativeMJPEG(ctx context.Context, quality QualityConfig) (io.ReadCloser, error) {
	return nil, fmt.Errorf("interior driver has no native MJPEG encoder")
}

func (d *InteriorDriver) StopNativeMJPEG() error { return nil }

// softwareEncodeArgsStdin builds the software-encoder invocation reading
// individual JPEG frames from stdin rather than directly from the V4L2
// device, following the teacher's BuildFFmpegCommand device-type branching
// (path_utils.go) adapted to the interior driver's frame-pumped model.
func softwareEncodeArgsStdin(outputPath, codec string, quality QualityConfig) []string {
	encoder := codecEncoderName(codec)
	return []string{
		"-f", "mjpeg",
		"-framerate", fmt.Sprintf("%d", quality.FPS),
		"-i", "pipe:0",
		"-c:v", encoder,
		"-b:v", fmt.Sprintf("%d", quality.Bitrate),
		"-g", fmt.Sprintf("%d", quality.GOP),
		"-y", outputPath,
	}
}

func codecEncoderName(codec string) string {
	switch codec {
	case "avc1":
		return "libx264"
	case "X264":
		return "libx264"
	case "mp4v":
		return "mpeg4"
	default:
		return "libx264"
	}
}
