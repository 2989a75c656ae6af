// Package metrics exposes the process's Prometheus instrumentation:
// MJPEG frame/queue-saturation gauges, recording clip counters, and
// geodata reverse-geocoding success/failure counters, per SPEC_FULL.md
// §B. Grounded on stefanpenner-lcc.live/metrics's promauto global-vars
// style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MJPEGFramesServedTotal counts frames successfully delivered to a
	// client, per camera.
	MJPEGFramesServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcam_mjpeg_frames_served_total",
			Help: "Total number of MJPEG frames delivered to clients",
		},
		[]string{"camera"},
	)

	// MJPEGActiveClients tracks the current number of connected viewers
	// per camera.
	MJPEGActiveClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashcam_mjpeg_active_clients",
			Help: "Current number of active MJPEG viewers",
		},
		[]string{"camera"},
	)

	// MJPEGQueueSaturation tracks the fraction of per-client queues that
	// are currently full, per camera — the signal the adaptive FPS/
	// quality logic keys off of.
	MJPEGQueueSaturation = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dashcam_mjpeg_queue_saturation",
			Help: "Fraction of active client queues currently non-empty",
		},
		[]string{"camera"},
	)

	// MJPEGClientsReapedTotal counts clients evicted by the idle reaper.
	MJPEGClientsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashcam_mjpeg_clients_reaped_total",
			Help: "Total number of MJPEG clients evicted for inactivity",
		},
	)

	// RecordingClipsCompletedTotal counts clips a trip's recording
	// session has completed, by quality.
	RecordingClipsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcam_recording_clips_completed_total",
			Help: "Total number of video clips completed",
		},
		[]string{"quality"},
	)

	// RecordingDeviceResetsTotal counts camera driver resets triggered by
	// the frame-capture-failure threshold.
	RecordingDeviceResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcam_recording_device_resets_total",
			Help: "Total number of camera device resets triggered by repeated capture failures",
		},
		[]string{"camera"},
	)

	// GeodataReverseGeocodeTotal counts reverse-geocoding HTTP calls by
	// outcome (success/failure), for the geodata downloader.
	GeodataReverseGeocodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcam_geodata_reverse_geocode_total",
			Help: "Total number of reverse-geocoding calls by outcome",
		},
		[]string{"outcome"},
	)

	// GeodataJobsActive tracks the number of in-flight geodata download
	// jobs.
	GeodataJobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashcam_geodata_jobs_active",
			Help: "Number of geodata download jobs currently running",
		},
	)

	// DiskManagerCleanupDeletedClipsTotal counts clips removed by the
	// retention sweep.
	DiskManagerCleanupDeletedClipsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashcam_diskmanager_cleanup_deleted_clips_total",
			Help: "Total number of video clips deleted by the retention sweep",
		},
	)

	// DiskManagerCleanupFreedBytesTotal sums bytes freed by the
	// retention sweep.
	DiskManagerCleanupFreedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dashcam_diskmanager_cleanup_freed_bytes_total",
			Help: "Total number of bytes freed by the retention sweep",
		},
	)

	// ControlAPIRequestsTotal counts JSON-RPC requests handled by the
	// control-plane server, by method and outcome.
	ControlAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dashcam_controlapi_requests_total",
			Help: "Total number of control-plane JSON-RPC requests by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// ControlAPIActiveConnections tracks currently connected control-plane
	// websocket clients.
	ControlAPIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dashcam_controlapi_active_connections",
			Help: "Number of currently connected control-plane websocket clients",
		},
	)
)
