package mjpeg

import (
	"bytes"
	"context"
	"image/jpeg"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// cameraWorker drives one camera's FrameSource in a loop, adapting target
// FPS and JPEG quality to the hub's observed client count and queue
// saturation, and broadcasts each processed frame, per spec.md §4.H's
// "single shared capture loop per camera."
type cameraWorker struct {
	camera CameraType
	source FrameSource
	hub    *Hub
	logger *logging.Logger

	done chan struct{}
}

func newCameraWorker(camera CameraType, source FrameSource, hub *Hub, logger *logging.Logger) *cameraWorker {
	return &cameraWorker{
		camera: camera,
		source: source,
		hub:    hub,
		logger: logger.WithField("camera", string(camera)),
		done:   make(chan struct{}),
	}
}

func (w *cameraWorker) run(ctx context.Context) {
	defer close(w.done)

	fps := baseFPS
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		if err := w.captureOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.WithError(err).Warn("preview frame capture failed")
		}

		clients := w.hub.ActiveCount(w.camera)
		if clients == 0 {
			fps = idleFPS
		} else {
			fps = targetFPS(w.hub.Saturation(w.camera))
		}

		interval := time.Second / time.Duration(fps)
		elapsed := time.Since(start)
		if wait := interval - elapsed; wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
	}
}

func (w *cameraWorker) captureOnce(ctx context.Context) error {
	frame, err := w.source.CaptureFrame(ctx)
	if err != nil {
		return err
	}

	clients := w.hub.ActiveCount(w.camera)
	if clients == 0 {
		// No viewers: cache the raw frame so a newly connecting client gets
		// an immediate first image, but skip the encode/annotate work.
		w.hub.SetLastFrame(w.camera, *frame)
		return nil
	}

	processed, err := w.processFrame(frame)
	if err != nil {
		return err
	}

	w.hub.SetLastFrame(w.camera, *processed)
	delivered := w.hub.Broadcast(w.camera, *processed)
	metrics.MJPEGFramesServedTotal.WithLabelValues(string(w.camera)).Add(float64(delivered))
	metrics.MJPEGQueueSaturation.WithLabelValues(string(w.camera)).Set(w.hub.Saturation(w.camera))
	return nil
}

func (w *cameraWorker) processFrame(frame *Frame) (*Frame, error) {
	clients := w.hub.ActiveCount(w.camera)
	level := qualityLevel(clients, w.hub.Saturation(w.camera))

	img, err := jpeg.Decode(bytes.NewReader(frame.JPEG))
	if err != nil {
		return nil, err
	}

	resized := resize(img, resizeFactorFor(level))
	annotated := annotate(resized, cameraLabel(w.camera), frame.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))

	data, err := encodeJPEG(annotated, jpegQualityFor(level))
	if err != nil {
		return nil, err
	}
	return &Frame{JPEG: data, Timestamp: frame.Timestamp}, nil
}

func cameraLabel(camera CameraType) string {
	switch camera {
	case CameraRoad:
		return "ROAD"
	case CameraInterior:
		return "INTERIOR"
	default:
		return string(camera)
	}
}
