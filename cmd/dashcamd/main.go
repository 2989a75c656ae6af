// Command dashcamd is the dashcam control software's process entry point:
// it assembles every subsystem in dependency order, serves the combined
// MJPEG preview + control-plane HTTP surface, and runs until an interrupt
// signal triggers an orderly shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/capture"
	"github.com/dashcamv2/control-go/internal/config"
	"github.com/dashcamv2/control-go/internal/controlapi"
	"github.com/dashcamv2/control-go/internal/diskmanager"
	"github.com/dashcamv2/control-go/internal/geocode"
	"github.com/dashcamv2/control-go/internal/geodata"
	"github.com/dashcamv2/control-go/internal/geostore"
	"github.com/dashcamv2/control-go/internal/gpsreader"
	"github.com/dashcamv2/control-go/internal/health"
	"github.com/dashcamv2/control-go/internal/landmark"
	"github.com/dashcamv2/control-go/internal/logging"
	_ "github.com/dashcamv2/control-go/internal/metrics"
	"github.com/dashcamv2/control-go/internal/mjpeg"
	"github.com/dashcamv2/control-go/internal/paths"
	"github.com/dashcamv2/control-go/internal/recording"
	"github.com/dashcamv2/control-go/internal/security"
	"github.com/dashcamv2/control-go/internal/shutdown"
	"github.com/dashcamv2/control-go/internal/tripstore"
)

const version = "2.0.0"

func main() {
	configPath := flag.String("config", "", "path to config/default.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dashcamd: load config: %v\n", err)
		os.Exit(1)
	}

	logging.ConfigureGlobalLogging(&cfg.Logging)
	logger := logging.GetLogger("dashcamd")

	if err := run(cfg, *configPath, logger); err != nil {
		logger.WithError(err).Fatal("dashcamd exited with error")
	}
}

func run(cfg *config.Config, configPath string, logger *logging.Logger) error {
	controller := shutdown.NewController()

	// Storage & Paths.
	layout, err := paths.NewFromEnvironment("", "", "")
	if err != nil {
		return fmt.Errorf("resolve storage layout: %w", err)
	}
	if err := layout.EnsureDataPath(); err != nil {
		return fmt.Errorf("prepare data path: %w", err)
	}
	if err := layout.EnsureDBDir(); err != nil {
		return fmt.Errorf("prepare database directory: %w", err)
	}

	// Trip Store.
	tripStore, err := tripstore.Open(layout.DBPath())
	if err != nil {
		return fmt.Errorf("open trip store: %w", err)
	}
	controller.Register("tripstore", stopperFunc(tripStore.Close))

	// Geodata offline store.
	geoStore, err := geostore.Open(layout.OfflineGeocodingDBPath())
	if err != nil {
		return fmt.Errorf("open offline geocoding store: %w", err)
	}
	controller.Register("geostore", stopperFunc(geoStore.Close))

	// GPS Reader.
	var gpsCollaborator capture.GPSReader = noGPSFix{}
	if gpsReader, gpsErr := gpsreader.Open(controller.Context(), cfg.GPS.SerialPort); gpsErr != nil {
		logger.WithError(gpsErr).Warn("gps reader unavailable, continuing without live fixes")
	} else {
		controller.Register("gpsreader", gpsReader)
		gpsCollaborator = gpsReader
	}

	// Landmark Index.
	landmarkIndex, err := loadLandmarkIndex(cfg.Landmark)
	if err != nil {
		logger.WithError(err).Warn("landmark index unavailable, continuing without landmark lookups")
		landmarkIndex = landmark.New(nil)
	}

	// Camera Drivers.
	roadDriver := camera.NewRoadDriver(cfg.Camera.RoadDevicePath, camera.RealProcessRunner{}, logging.GetLogger("camera.road"))
	interiorDriver := camera.NewInteriorDriver(cfg.Camera.InteriorDeviceIndex, camera.RealDeviceChecker{}, camera.RealProcessRunner{}, logging.GetLogger("camera.interior"))

	// Recording Engine.
	engine := recording.New(roadDriver, interiorDriver, layout, logging.GetLogger("recording"))

	// Reverse-geocoding transport, shared by the Capture Manager's clip
	// metadata injection and the Geodata Downloader, each paced by its own
	// rate limiter: interactive lookups use a longer minimum delay than bulk
	// background preparation.
	geocodeClient := geocode.New(cfg.Geodata.UserAgent, rate.NewLimiter(rate.Every(cfg.Geodata.InteractiveMinDelay), 1))
	bulkGeocodeClient := geocode.New(cfg.Geodata.UserAgent, rate.NewLimiter(rate.Every(cfg.Geodata.InterRequestDelay), 1))

	// Capture Manager.
	captureManager := capture.New(
		roadDriver, interiorDriver, engine, tripStore, gpsCollaborator, landmarkIndex,
		captureGeocoderAdapter{client: geocodeClient}, nil, nil,
		logging.GetLogger("capture"),
	)
	captureInitErr := captureManager.Initialize(controller.Context())
	if captureInitErr != nil {
		logger.WithError(captureInitErr).Warn("camera initialization failed, continuing in degraded mode")
	}

	// MJPEG Fan-out.
	mjpegManager := mjpeg.NewManager(mjpeg.Sources{
		mjpeg.CameraRoad:     previewFrameSource{manager: captureManager, slot: capture.CameraRoad},
		mjpeg.CameraInterior: previewFrameSource{manager: captureManager, slot: capture.CameraInterior},
	}, logging.GetLogger("mjpeg"))
	go mjpegManager.Run(controller.Context())
	controller.Register("mjpeg", stopperFunc(func(ctx context.Context) error {
		mjpegManager.Stop()
		return nil
	}))

	// Geodata Downloader.
	geodataDownloader := geodata.New(
		tripWaypointSource{store: tripStore},
		geodataGeocoderAdapter{client: bulkGeocodeClient},
		geostoreRecordStore{store: geoStore},
		logging.GetLogger("geodata"),
	)

	// Disk/USB Manager.
	diskCleaner := diskmanager.NewCleaner(diskmanager.TripClipStore{Store: tripStore}, diskmanager.GopsutilUsageProbe{}, logging.GetLogger("diskmanager"))
	storageSettings, err := diskmanager.LoadSettings(layout.SettingsPath())
	if err != nil {
		logger.WithError(err).Warn("failed to load storage settings, using defaults")
		storageSettings = diskmanager.DefaultSettings()
	}
	startRetentionLoop(controller.Context(), diskCleaner, layout, storageSettings, logging.GetLogger("diskmanager"))

	// Security collaborators for the control-plane API.
	jwtHandler, err := security.NewJWTHandler(cfg.Security.JWTSecretKey, logging.GetLogger("security"))
	if err != nil {
		return fmt.Errorf("build jwt handler: %w", err)
	}
	permissionChecker := security.NewPermissionChecker()
	securityAdapter := security.NewConfigAdapter(&cfg.Security, &cfg.Logging)
	rateLimiter := security.NewEnhancedRateLimiter(logging.GetLogger("security"), securityAdapter)

	// Control-plane API.
	controlServer := controlapi.New(controlapi.DefaultServerConfig(), jwtHandler, permissionChecker, rateLimiter, logging.GetLogger("controlapi"))
	controlServer.Bind(captureManager, tripStore, geodataDownloader)
	controller.Register("controlapi", controlServer)

	// Health monitor. Seed component status from what's already known at
	// startup; a failed camera initialization above marks capture degraded
	// rather than healthy.
	healthMonitor := health.NewHealthMonitor(version)
	captureStatus := health.HealthStatusHealthy
	captureMessage := "camera drivers initialized"
	if captureInitErr != nil {
		captureStatus = health.HealthStatusDegraded
		captureMessage = captureInitErr.Error()
	}
	healthMonitor.UpdateComponentStatus(health.ComponentCapture, captureStatus, captureMessage, nil)
	healthMonitor.UpdateComponentStatus(health.ComponentTripStore, health.HealthStatusHealthy, "trip database open", nil)
	healthMonitor.UpdateComponentStatus(health.ComponentMJPEG, health.HealthStatusHealthy, "fan-out running", nil)
	healthMonitor.UpdateComponentStatus(health.ComponentGeodata, health.HealthStatusHealthy, "downloader ready", nil)
	healthMonitor.UpdateComponentStatus(health.ComponentDiskManager, health.HealthStatusHealthy, "retention loop running", nil)
	var healthServer *health.HTTPHealthServer
	if cfg.Health.Enabled {
		healthServer, err = health.NewHTTPHealthServer(&cfg.Health, healthMonitor, logging.GetLogger("health"))
		if err != nil {
			return fmt.Errorf("build health server: %w", err)
		}
		controller.Register("health", stopperFunc(func(ctx context.Context) error { return healthServer.Stop() }))
	}

	// HTTP glue: MJPEG streams + heartbeat, mounted alongside the
	// control-plane websocket upgrade endpoint on one listener.
	mux := http.NewServeMux()
	mux.Handle("/stream/road", mjpeg.Handler(mjpegManager, mjpeg.CameraRoad))
	mux.Handle("/stream/interior", mjpeg.Handler(mjpegManager, mjpeg.CameraInterior))
	mux.HandleFunc(controlapi.DefaultServerConfig().Path, controlServer.Handler())

	httpSrv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: mux}
	controller.Register("http", stopperFunc(func(ctx context.Context) error { return httpSrv.Shutdown(ctx) }))
	go func() {
		logger.WithFields(logging.Fields{"addr": cfg.HTTP.ListenAddr}).Info("serving mjpeg + control-plane http")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("http server stopped unexpectedly")
		}
	}()

	if healthServer != nil {
		go func() {
			if err := healthServer.Start(controller.Context()); err != nil {
				logger.WithError(err).Error("health server stopped unexpectedly")
			}
		}()
	}

	// Config hot-reload: logging level/format changes apply without a
	// restart; other sections take effect on the next process start.
	if configPath != "" {
		watcher, watchErr := config.NewWatcher(configPath, func(reloaded *config.Config, err error) {
			if err != nil {
				logger.WithError(err).Warn("config reload failed, keeping previous configuration")
				return
			}
			logging.ConfigureGlobalLogging(&reloaded.Logging)
			logger.Info("configuration reloaded")
		})
		if watchErr != nil {
			logger.WithError(watchErr).Warn("config hot-reload watcher unavailable")
		} else {
			if startErr := watcher.Start(controller.Context()); startErr != nil {
				logger.WithError(startErr).Warn("failed to start config watcher")
			}
			controller.Register("config-watcher", stopperFunc(func(ctx context.Context) error {
				watcher.Stop()
				return nil
			}))
		}
	}

	waitForShutdownSignal(logger)
	errs := controller.Shutdown(10 * time.Second)
	for name, err := range errs {
		logger.WithError(err).WithField("component", name).Error("component shutdown failed")
	}
	return nil
}

func loadLandmarkIndex(cfg config.LandmarkConfig) (*landmark.Index, error) {
	if cfg.Format == "sqlite" {
		return landmark.LoadSQLite(cfg.SourcePath)
	}
	return landmark.LoadJSON(cfg.SourcePath)
}

// noGPSFix is the capture.GPSReader used when the serial port could not be
// opened: every read reports no fix rather than degrading the whole
// process to a hard failure, per spec.md §7's graceful-degradation policy.
type noGPSFix struct{}

func (noGPSFix) Read() *gpsreader.Fix { return nil }

func startRetentionLoop(ctx context.Context, cleaner *diskmanager.Cleaner, layout *paths.Layout, settings diskmanager.Settings, logger *logging.Logger) {
	const sweepInterval = 10 * time.Minute
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := cleaner.Sweep(ctx, layout.DataPath(), settings, time.Now())
				if err != nil {
					logger.WithError(err).Warn("retention sweep failed")
					continue
				}
				if report.DeletedClips > 0 {
					logger.WithFields(logging.Fields{
						"deleted_clips": report.DeletedClips,
						"freed_bytes":   report.FreedBytes,
					}).Info("retention sweep freed storage")
				}
			}
		}
	}()
}

func waitForShutdownSignal(logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.WithField("signal", sig.String()).Info("shutdown signal received")
}

// stopperFunc adapts a plain func(context.Context) error to
// shutdown.Stoppable.
type stopperFunc func(ctx context.Context) error

func (f stopperFunc) Stop(ctx context.Context) error { return f(ctx) }
