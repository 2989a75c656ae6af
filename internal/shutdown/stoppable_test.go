package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingStopper struct {
	name    string
	order   *[]string
	failErr error
}

func (r *recordingStopper) Stop(ctx context.Context) error {
	*r.order = append(*r.order, r.name)
	return r.failErr
}

func TestControllerStopsInReverseRegistrationOrder(t *testing.T) {
	c := NewController()
	var order []string

	c.Register("tripstore", &recordingStopper{name: "tripstore", order: &order})
	c.Register("capture", &recordingStopper{name: "capture", order: &order})
	c.Register("mjpeg", &recordingStopper{name: "mjpeg", order: &order})

	errs := c.Shutdown(time.Second)

	assert.Empty(t, errs)
	assert.Equal(t, []string{"mjpeg", "capture", "tripstore"}, order)
}

func TestControllerCollectsErrorsFromAllServices(t *testing.T) {
	c := NewController()
	var order []string
	boom := assert.AnError

	c.Register("a", &recordingStopper{name: "a", order: &order, failErr: boom})
	c.Register("b", &recordingStopper{name: "b", order: &order})

	errs := c.Shutdown(time.Second)

	assert.Len(t, errs, 1)
	assert.ErrorIs(t, errs["a"], boom)
}

func TestControllerContextCancelledOnShutdown(t *testing.T) {
	c := NewController()
	ctx := c.Context()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before shutdown")
	default:
	}

	c.Shutdown(time.Second)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("context not cancelled after shutdown")
	}
}
