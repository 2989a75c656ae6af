package mjpeg

import (
	"context"
	"time"
)

// CameraType names the two preview sources the fan-out multiplexes, per
// spec.md §4.H's "per-camera counter active_clients[road|interior]".
type CameraType string

const (
	CameraRoad     CameraType = "road"
	CameraInterior CameraType = "interior"
)

// Frame is a single captured JPEG image and its capture timestamp, the
// unit the capture worker reads and the broadcast/generator paths move
// around.
type Frame struct {
	JPEG      []byte
	Timestamp time.Time
}

// FrameSource is the narrow preview-capture collaborator the capture
// worker drives: a single blocking read of the next frame from one
// camera. internal/capture.Manager.GetPreviewFrame satisfies it via a thin
// adapter at the process composition root, per spec.md §9's
// constructor-injection design note.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (*Frame, error)
}

// clientQueueCapacity is the bounded per-client queue capacity spec.md
// §4.H fixes at exactly 1: "latency-first: if a frame arrives and the
// queue is non-empty, the old frame is discarded before inserting."
const clientQueueCapacity = 1
