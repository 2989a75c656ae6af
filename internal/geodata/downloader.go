package geodata

import (
	"context"
	"fmt"
	"sync"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// Downloader is the Geodata Downloader (spec.md §4.I): it owns one job per
// trip_id and exposes the start/pause/resume/cancel control surface plus a
// progress snapshot for the SSE wire format of spec.md §6.
type Downloader struct {
	waypoints WaypointSource
	geocoder  Geocoder
	store     RecordStore
	logger    *logging.Logger

	mu   sync.Mutex
	jobs map[int64]*job
}

// New constructs a Downloader. waypoints, geocoder, and store are narrow
// collaborator interfaces injected at construction per spec.md §9.
func New(waypoints WaypointSource, geocoder Geocoder, store RecordStore, logger *logging.Logger) *Downloader {
	return &Downloader{
		waypoints: waypoints,
		geocoder:  geocoder,
		store:     store,
		logger:    logger,
		jobs:      make(map[int64]*job),
	}
}

// Start launches a new job for tripID, resolving its waypoints via the
// injected WaypointSource. Starting a job for a trip that already has one
// running is an error; callers must Cancel first.
func (d *Downloader) Start(ctx context.Context, tripID int64, opts Options) error {
	d.mu.Lock()
	if _, exists := d.jobs[tripID]; exists {
		d.mu.Unlock()
		return fmt.Errorf("geodata: job already running for trip %d", tripID)
	}
	j := newJob(context.Background(), tripID, opts, d.geocoder, d.store, d.logger)
	d.jobs[tripID] = j
	d.mu.Unlock()

	waypoints, err := d.waypoints.Waypoints(ctx, tripID)
	if err != nil {
		d.mu.Lock()
		delete(d.jobs, tripID)
		d.mu.Unlock()
		return fmt.Errorf("geodata: resolve waypoints for trip %d: %w", tripID, err)
	}

	metrics.GeodataJobsActive.Inc()
	go func() {
		j.run(waypoints)
		metrics.GeodataJobsActive.Dec()
	}()
	return nil
}

// Pause quiesces the trip's job at its current waypoint boundary.
func (d *Downloader) Pause(tripID int64) error {
	j, err := d.get(tripID)
	if err != nil {
		return err
	}
	j.pause()
	return nil
}

// Resume clears the trip's job pause flag.
func (d *Downloader) Resume(tripID int64) error {
	j, err := d.get(tripID)
	if err != nil {
		return err
	}
	j.resume()
	return nil
}

// Cancel stops the trip's job and removes its progress entry immediately,
// per spec.md §4.I: "Cancel removes the progress entry; the worker must
// detect this and exit without updating to complete or error."
func (d *Downloader) Cancel(tripID int64) error {
	j, err := d.get(tripID)
	if err != nil {
		return err
	}
	j.cancelJob()

	d.mu.Lock()
	delete(d.jobs, tripID)
	d.mu.Unlock()
	return nil
}

// Progress returns the trip's current progress snapshot.
func (d *Downloader) Progress(tripID int64) (Progress, error) {
	j, err := d.get(tripID)
	if err != nil {
		return Progress{}, err
	}
	return j.snapshot(), nil
}

func (d *Downloader) get(tripID int64) (*job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	j, ok := d.jobs[tripID]
	if !ok {
		return nil, fmt.Errorf("geodata: no job running for trip %d", tripID)
	}
	return j, nil
}
