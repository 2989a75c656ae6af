// Package shutdown provides a common interface for services that need
// graceful shutdown, plus a registry-based controller that hands out
// cancellable contexts to the dashcam's long-lived tasks (recording loop,
// GPS logger, MJPEG capture worker, idle-client reaper, geodata worker) and
// stops them in reverse registration order.
package shutdown

import (
	"context"
	"sync"
	"time"
)

// Stoppable is implemented by any service that can be gracefully stopped
// with context-aware cancellation and timeout enforcement.
type Stoppable interface {
	// Stop gracefully stops the service. Returns an error if the service
	// fails to stop within the context's deadline.
	Stop(ctx context.Context) error
}

// StopWithTimeout creates a timeout context and calls Stop on service.
func StopWithTimeout(service Stoppable, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return service.Stop(ctx)
}

// Controller hands out cancellation tokens to registered long-lived tasks
// and stops every registered Stoppable in reverse registration order on
// Shutdown, replacing the teacher's ad-hoc "daemon goroutine" pattern with
// an explicit registry (spec.md §9).
type Controller struct {
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	services []namedStoppable
}

type namedStoppable struct {
	name string
	svc  Stoppable
}

// NewController creates a controller whose root context is cancelled on
// Shutdown, and which every long-lived task should select on at its
// natural yield points.
func NewController() *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{ctx: ctx, cancel: cancel}
}

// Context returns the controller's root cancellation context.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Register records svc so Shutdown stops it. Services are stopped in
// reverse registration order, mirroring dependency teardown (e.g. the
// Capture Manager before the Trip Store it writes to).
func (c *Controller) Register(name string, svc Stoppable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = append(c.services, namedStoppable{name: name, svc: svc})
}

// Shutdown cancels the root context, then stops every registered service
// in reverse order, each bounded by perServiceTimeout. It collects and
// returns all stop errors rather than aborting at the first one, so that
// one slow service does not prevent others from being given a chance to
// clean up.
func (c *Controller) Shutdown(perServiceTimeout time.Duration) map[string]error {
	c.cancel()

	c.mu.Lock()
	services := append([]namedStoppable(nil), c.services...)
	c.mu.Unlock()

	errs := make(map[string]error)
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		if err := StopWithTimeout(ns.svc, perServiceTimeout); err != nil {
			errs[ns.name] = err
		}
	}
	return errs
}
