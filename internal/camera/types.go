package camera

import "time"

// Quality names the two recording profiles spec.md §4.E names by bitrate
// and resolution.
type Quality string

const (
	QualityNormal Quality = "normal"
	QualityHigh   Quality = "high"
)

// QualityConfig carries the encoder parameters for a recording segment.
// Road and Interior drivers interpret Bitrate/Width/Height/GOP differently
// (hardware ISP encoder vs software frame writer) but share the struct.
type QualityConfig struct {
	Quality Quality
	Bitrate int // bits/sec
	Width   int
	Height  int
	FPS     int
	GOP     int
}

// RoadQualityConfig returns the road driver's normal/high presets from
// spec.md §4.E ("normal ≈ 1.5 Mbit/s at 1280×720; high ≈ 3 Mbit/s at
// 1920×1080), GOP = 30").
func RoadQualityConfig(q Quality) QualityConfig {
	switch q {
	case QualityHigh:
		return QualityConfig{Quality: QualityHigh, Bitrate: 3_000_000, Width: 1920, Height: 1080, FPS: 30, GOP: 30}
	default:
		return QualityConfig{Quality: QualityNormal, Bitrate: 1_500_000, Width: 1280, Height: 720, FPS: 30, GOP: 30}
	}
}

// InteriorQualityConfig returns the interior driver's default profile
// ("Resolution 640×480 @ 30 fps default").
func InteriorQualityConfig(q Quality) QualityConfig {
	cfg := QualityConfig{Quality: q, Width: 640, Height: 480, FPS: 30, GOP: 30}
	if q == QualityHigh {
		cfg.Bitrate = 2_000_000
	} else {
		cfg.Bitrate = 1_000_000
	}
	return cfg
}

// Frame is a single captured image, handed to the MJPEG fan-out and to the
// preview-frame surface of the Capture Manager.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}
