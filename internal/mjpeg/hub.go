package mjpeg

import (
	"fmt"
	"sync"
	"time"
)

// Per-camera client and per-IP connection caps, spec.md §4.H's generator
// steps 1-2: "Reject if active_clients[camera] > 5... Reject if the same
// remote IP already holds 3 active connections."
const (
	maxClientsPerCamera = 5
	maxConnectionsPerIP = 3
)

// idleTimeout is the reaper's eviction threshold, spec.md §4.H: "deletes
// any client with now - last_activity > 20 s."
const idleTimeout = 20 * time.Second

// ErrTooManyClients is returned when a camera already has
// maxClientsPerCamera active viewers.
var ErrTooManyClients = fmt.Errorf("mjpeg: camera has reached the maximum number of active clients")

// ErrTooManyConnectionsFromIP is returned when the requesting IP already
// holds maxConnectionsPerIP active connections.
var ErrTooManyConnectionsFromIP = fmt.Errorf("mjpeg: too many active connections from this address")

// Hub is the shared client table spec.md §4.H names: a structural-edit
// mutex guarding inserts/removes, lock-free per-client bounded channels for
// frame delivery, a per-camera active-client counter, and a last-frame
// cache used both as the generator's immediate first frame and as the
// capture worker's "what did we last see" reference.
type Hub struct {
	mu            sync.Mutex
	clients       map[string]*client
	activeByCam   map[CameraType]int
	connsByIP     map[string]int
	lastFrames    map[CameraType]Frame
}

// NewHub constructs an empty client table.
func NewHub() *Hub {
	return &Hub{
		clients:     make(map[string]*client),
		activeByCam: make(map[CameraType]int),
		connsByIP:   make(map[string]int),
		lastFrames:  make(map[CameraType]Frame),
	}
}

// Register admits a new client for camera, enforcing the per-camera and
// per-IP caps before inserting, per spec.md §4.H generator steps 1-3.
func (h *Hub) Register(id string, camera CameraType, remoteAddr string) (*client, error) {
	ip := remoteHost(remoteAddr)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.activeByCam[camera] >= maxClientsPerCamera {
		return nil, ErrTooManyClients
	}
	if h.connsByIP[ip] >= maxConnectionsPerIP {
		return nil, ErrTooManyConnectionsFromIP
	}

	c := newClient(id, camera, ip)
	h.clients[id] = c
	h.activeByCam[camera]++
	h.connsByIP[ip]++
	return c, nil
}

// Remove runs cleanup for id: marks inactive, drains the queue, decrements
// counters, and removes the table entry. Idempotent, per spec.md §4.H's
// "Cleanup ... Idempotent."
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

func (h *Hub) removeLocked(id string) {
	c, ok := h.clients[id]
	if !ok {
		return
	}
	c.markInactive()
	select {
	case <-c.queue:
	default:
	}
	delete(h.clients, id)
	h.activeByCam[c.camera]--
	if h.activeByCam[c.camera] < 0 {
		h.activeByCam[c.camera] = 0
	}
	h.connsByIP[c.remoteIP]--
	if h.connsByIP[c.remoteIP] <= 0 {
		delete(h.connsByIP, c.remoteIP)
	}
}

// Heartbeat updates id's last_activity and optionally its visibility, or
// runs cleanup immediately if disconnect is true, per spec.md §4.H's
// "POST heartbeat/{client_id}" contract.
func (h *Hub) Heartbeat(id string, visible *bool, disconnect bool) bool {
	h.mu.Lock()
	c, ok := h.clients[id]
	h.mu.Unlock()
	if !ok {
		return false
	}
	if disconnect {
		h.Remove(id)
		return true
	}
	c.touch()
	if visible != nil {
		c.setVisible(*visible)
	}
	return true
}

// ReapIdle removes every client idle for longer than idleTimeout, per
// spec.md §4.H's periodic idle reaper, and returns the removed IDs.
func (h *Hub) ReapIdle(now time.Time) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var reaped []string
	for id, c := range h.clients {
		if now.Sub(c.lastActivitySnapshot()) > idleTimeout {
			reaped = append(reaped, id)
		}
	}
	for _, id := range reaped {
		h.removeLocked(id)
	}
	return reaped
}

func (c *client) lastActivitySnapshot() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// clientsFor returns a stable snapshot of the active clients for camera,
// used by the broadcast loop so it never holds the structural mutex while
// enqueuing (queue sends are lock-free per-client channels).
func (h *Hub) clientsFor(camera CameraType) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if c.camera == camera && c.isActive() {
			out = append(out, c)
		}
	}
	return out
}

// ActiveCount returns the number of active clients currently registered
// for camera.
func (h *Hub) ActiveCount(camera CameraType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeByCam[camera]
}

// Saturation returns the fraction of camera's active client queues that
// are currently non-empty, the "queue saturation" spec.md §4.H's FPS/
// quality adaptation keys off of.
func (h *Hub) Saturation(camera CameraType) float64 {
	clients := h.clientsFor(camera)
	if len(clients) == 0 {
		return 0
	}
	full := 0
	for _, c := range clients {
		if len(c.queue) > 0 {
			full++
		}
	}
	return float64(full) / float64(len(clients))
}

// SetLastFrame caches the most recently captured frame for camera.
func (h *Hub) SetLastFrame(camera CameraType, f Frame) {
	h.mu.Lock()
	h.lastFrames[camera] = f
	h.mu.Unlock()
}

// LastFrame returns the cached most recent frame for camera, if any.
func (h *Hub) LastFrame(camera CameraType) (Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.lastFrames[camera]
	return f, ok
}

// Broadcast delivers f to every active client of camera, per spec.md
// §4.H's per-frame broadcast algorithm: drain-then-insert on each
// client's bounded-1 queue, never blocking.
func (h *Hub) Broadcast(camera CameraType, f Frame) int {
	clients := h.clientsFor(camera)
	for _, c := range clients {
		c.enqueue(f)
	}
	return len(clients)
}
