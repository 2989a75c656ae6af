package mjpeg

import (
	"context"
	"sync"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// reapPeriod is how often the idle reaper sweeps the client table, per
// spec.md §4.H: "A periodic reaper runs every 5 s."
const reapPeriod = 5 * time.Second

// Manager owns the two per-camera capture workers and the shared client
// hub, and is the package's composition-root entry point: one Manager per
// process, started once and run for the process lifetime.
type Manager struct {
	hub     *Hub
	workers map[CameraType]*cameraWorker
	logger  *logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// Sources maps each camera to the FrameSource that feeds its capture
// worker. Both entries are optional; a camera with no source is simply
// never broadcast to.
type Sources map[CameraType]FrameSource

// NewManager builds a Manager over sources, none of which are started
// until Run is called.
func NewManager(sources Sources, logger *logging.Logger) *Manager {
	hub := NewHub()
	workers := make(map[CameraType]*cameraWorker, len(sources))
	for camera, source := range sources {
		workers[camera] = newCameraWorker(camera, source, hub, logger)
	}
	return &Manager{hub: hub, workers: workers, logger: logger}
}

// Run starts every camera's capture loop and the idle reaper, and blocks
// until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range m.workers {
		wg.Add(1)
		go func(w *cameraWorker) {
			defer wg.Done()
			w.run(runCtx)
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.reapLoop(runCtx)
	}()

	<-runCtx.Done()
	wg.Wait()
}

// Stop cancels the capture loops and reaper started by Run.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(reapPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if reaped := m.hub.ReapIdle(now); len(reaped) > 0 {
				metrics.MJPEGClientsReapedTotal.Add(float64(len(reaped)))
				m.logger.WithFields(logging.Fields{"count": len(reaped)}).Debug("reaped idle mjpeg clients")
			}
		}
	}
}

// Register admits a new viewer for camera, enforcing the hub's per-camera
// and per-IP caps.
func (m *Manager) Register(id string, camera CameraType, remoteAddr string) (*client, error) {
	c, err := m.hub.Register(id, camera, remoteAddr)
	if err != nil {
		return nil, err
	}
	metrics.MJPEGActiveClients.WithLabelValues(string(camera)).Set(float64(m.hub.ActiveCount(camera)))
	return c, nil
}

// Remove runs cleanup for a disconnected viewer. Idempotent.
func (m *Manager) Remove(id string) {
	m.hub.Remove(id)
	for camera := range m.workers {
		metrics.MJPEGActiveClients.WithLabelValues(string(camera)).Set(float64(m.hub.ActiveCount(camera)))
	}
}

// Heartbeat refreshes a viewer's liveness and optional visibility state,
// or disconnects it immediately, per spec.md §4.H's heartbeat endpoint.
func (m *Manager) Heartbeat(id string, visible *bool, disconnect bool) bool {
	return m.hub.Heartbeat(id, visible, disconnect)
}

// LastFrame returns the most recently captured frame for camera, used to
// hand a just-connected client an immediate first image.
func (m *Manager) LastFrame(camera CameraType) (Frame, bool) {
	return m.hub.LastFrame(camera)
}
