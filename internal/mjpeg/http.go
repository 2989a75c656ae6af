package mjpeg

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// frameTimeout is the generator's keep-alive write cadence: if no new
// frame arrives within this window, the last cached frame is resent so
// the connection never stalls, per spec.md §4.H: "the generator keeps the
// connection alive with a 1 s timeout between writes."
const frameTimeout = 1 * time.Second

// Handler builds the net/http handler that serves the multipart MJPEG
// stream for camera, per spec.md §4.H's HTTP generator contract. The
// handler registers a client with the given Manager on connect and runs
// cleanup on disconnect, satisfying the generator's full lifecycle.
func Handler(m *Manager, camera CameraType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		id := uuid.NewString()
		c, err := m.Register(id, camera, r.RemoteAddr)
		if err != nil {
			status := http.StatusTooManyRequests
			http.Error(w, err.Error(), status)
			return
		}
		defer m.Remove(id)

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")
		w.Header().Set("X-Accel-Buffering", "no")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("X-MJPEG-Client-Id", id)
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		if last, ok := m.LastFrame(camera); ok {
			if err := writeFrame(w, last); err != nil {
				return
			}
			flusher.Flush()
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-c.queue:
				if !ok {
					return
				}
				c.framesSent++
				if err := writeFrame(w, frame); err != nil {
					return
				}
				flusher.Flush()
			case <-time.After(frameTimeout):
				if !c.isVisible() {
					// Visibility-based slow loop: the tab isn't foregrounded,
					// so skip the keep-alive resend and just wait again.
					continue
				}
				if last, ok := m.LastFrame(camera); ok {
					if err := writeFrame(w, last); err != nil {
						return
					}
					flusher.Flush()
				}
			}
		}
	}
}

func writeFrame(w http.ResponseWriter, f Frame) error {
	const header = "--frame\r\nContent-Type: image/jpeg\r\n\r\n"
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := w.Write(f.JPEG); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

// heartbeatRequest is the optional JSON body accepted by HeartbeatHandler:
// {"visible": true|false}.
type heartbeatRequest struct {
	Visible *bool `json:"visible"`
}

// HeartbeatHandler builds the handler for "POST heartbeat/{client_id}",
// which refreshes a viewer's liveness (and optionally its visibility), or
// disconnects it immediately on DELETE, per spec.md §4.H.
func HeartbeatHandler(m *Manager, clientIDParam func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := clientIDParam(r)
		if id == "" {
			http.Error(w, "missing client id", http.StatusBadRequest)
			return
		}

		var visible *bool
		if r.Method == http.MethodPost && r.ContentLength != 0 {
			var body heartbeatRequest
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				visible = body.Visible
			}
		}

		disconnect := r.Method == http.MethodDelete
		if !m.Heartbeat(id, visible, disconnect) {
			http.Error(w, "unknown client", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
