package mjpeg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterEnforcesPerCameraCap(t *testing.T) {
	h := NewHub()
	for i := 0; i < maxClientsPerCamera; i++ {
		_, err := h.Register(string(rune('a'+i)), CameraRoad, "10.0.0.1:5000")
		require.NoError(t, err)
	}
	_, err := h.Register("overflow", CameraRoad, "10.0.0.2:5000")
	require.ErrorIs(t, err, ErrTooManyClients)
}

func TestRegisterEnforcesPerIPCap(t *testing.T) {
	h := NewHub()
	for i := 0; i < maxConnectionsPerIP; i++ {
		_, err := h.Register(string(rune('a'+i)), CameraRoad, "10.0.0.1:5000")
		require.NoError(t, err)
	}
	_, err := h.Register("overflow", CameraInterior, "10.0.0.1:6000")
	require.ErrorIs(t, err, ErrTooManyConnectionsFromIP)
}

func TestRemoveIsIdempotent(t *testing.T) {
	h := NewHub()
	_, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)

	h.Remove("c1")
	require.Equal(t, 0, h.ActiveCount(CameraRoad))
	require.NotPanics(t, func() { h.Remove("c1") })
}

func TestBroadcastDrainsThenInserts(t *testing.T) {
	h := NewHub()
	c, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)

	h.Broadcast(CameraRoad, Frame{JPEG: []byte("one")})
	h.Broadcast(CameraRoad, Frame{JPEG: []byte("two")})

	select {
	case f := <-c.queue:
		require.Equal(t, "two", string(f.JPEG))
	default:
		t.Fatal("expected a frame in the queue")
	}
}

func TestSaturationReflectsFullQueues(t *testing.T) {
	h := NewHub()
	_, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)
	_, err = h.Register("c2", CameraRoad, "10.0.0.2:5000")
	require.NoError(t, err)

	require.Equal(t, 0.0, h.Saturation(CameraRoad))
	h.Broadcast(CameraRoad, Frame{JPEG: []byte("x")})
	require.Greater(t, h.Saturation(CameraRoad), 0.0)
}

func TestHeartbeatDisconnectRemovesClient(t *testing.T) {
	h := NewHub()
	_, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)

	require.True(t, h.Heartbeat("c1", nil, true))
	require.Equal(t, 0, h.ActiveCount(CameraRoad))
	require.False(t, h.Heartbeat("c1", nil, false))
}

func TestHeartbeatUpdatesVisibility(t *testing.T) {
	h := NewHub()
	c, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)

	visible := false
	require.True(t, h.Heartbeat("c1", &visible, false))
	require.False(t, c.isVisible())
}

func TestReapIdleEvictsStaleClients(t *testing.T) {
	h := NewHub()
	c, err := h.Register("c1", CameraRoad, "10.0.0.1:5000")
	require.NoError(t, err)
	c.mu.Lock()
	c.lastActivity = time.Now().Add(-1 * time.Hour)
	c.mu.Unlock()

	reaped := h.ReapIdle(time.Now())
	require.Equal(t, []string{"c1"}, reaped)
	require.Equal(t, 0, h.ActiveCount(CameraRoad))
}
