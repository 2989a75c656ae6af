package geodata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/metrics"
)

// interRequestDelay is the rate-limit courtesy pause spec.md §4.I requires
// between reverse-geocoding requests during bulk preparation ("Inter-request
// delay: 100 ms minimum").
const interRequestDelay = 100 * time.Millisecond

// job runs one trip's geodata download: grid generation over its waypoints,
// rate-limited reverse-geocoding, and persistence, with pause/resume/cancel
// control per spec.md §4.I.
type job struct {
	tripID   int64
	opts     Options
	geocoder Geocoder
	store    RecordStore
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu                  sync.Mutex
	cond                *sync.Cond
	paused              bool
	progress            Progress
	consecutiveFailures int
}

// sustainedFailureThreshold is the consecutive-failure count that
// reclassifies a run of NetworkTransient errors as NetworkFatal, per
// spec.md §7: "NetworkFatal — DNS/connect failure sustained > N seconds;
// the worker marks status error and exits; the job can be restarted."
// Each request already costs at least interRequestDelay, so 50 consecutive
// failures bound the sustained-outage detection to a few seconds of wall
// time without tripping on an isolated flaky lookup.
const sustainedFailureThreshold = 50

var errSustainedNetworkFailure = fmt.Errorf("geodata: sustained reverse-geocoding failures exceeded threshold")

func newJob(ctx context.Context, tripID int64, opts Options, geocoder Geocoder, store RecordStore, logger *logging.Logger) *job {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &job{
		tripID:   tripID,
		opts:     opts,
		geocoder: geocoder,
		store:    store,
		logger:   logger,
		ctx:      jobCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: Progress{TripID: tripID, Phase: PhaseInitializing, Status: StatusDownloading, UpdatedAt: time.Now()},
	}
	j.cond = sync.NewCond(&j.mu)
	return j
}

// pause sets the job to quiesce at the next waypoint boundary.
func (j *job) pause() {
	j.mu.Lock()
	j.paused = true
	j.progress.Status = StatusPaused
	j.mu.Unlock()
}

// resume clears the pause flag and wakes the worker loop if it is waiting.
func (j *job) resume() {
	j.mu.Lock()
	j.paused = false
	if j.progress.Status == StatusPaused {
		j.progress.Status = StatusDownloading
	}
	j.mu.Unlock()
	j.cond.Broadcast()
}

// cancelJob stops the worker; per spec.md §4.I it must exit "without
// updating to complete or error" — the caller (Downloader) is responsible
// for dropping the progress entry, not this job.
func (j *job) cancelJob() {
	j.cancel()
	j.cond.Broadcast()
}

// waitIfPaused blocks at a waypoint boundary while paused, returning false
// if the job was cancelled while waiting.
func (j *job) waitIfPaused() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.paused {
		select {
		case <-j.ctx.Done():
			return false
		default:
		}
		j.cond.Wait()
		if j.ctx.Err() != nil {
			return false
		}
	}
	return j.ctx.Err() == nil
}

func (j *job) snapshot() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *job) updateProgress(fn func(*Progress)) {
	j.mu.Lock()
	fn(&j.progress)
	j.progress.UpdatedAt = time.Now()
	j.mu.Unlock()
}

// run executes the full job: resolves waypoints (single-center or
// per-waypoint adaptive), then processes each waypoint's grid serially,
// honoring pause/cancel at every waypoint boundary and every grid point.
func (j *job) run(waypoints []Waypoint) {
	defer close(j.done)

	plan := j.buildPlan(waypoints)
	total := len(plan)

	j.updateProgress(func(p *Progress) {
		p.Phase = PhaseDownloadingWaypoint
		p.TotalWaypoints = total
	})

	for i, wp := range plan {
		if !j.waitIfPaused() {
			return // cancelled
		}

		j.updateProgress(func(p *Progress) {
			p.Message = fmt.Sprintf("downloading waypoint %d/%d", i+1, total)
		})

		if err := j.processWaypoint(wp); err != nil {
			if j.ctx.Err() != nil {
				return // cancelled mid-waypoint
			}
			if err == errSustainedNetworkFailure {
				j.updateProgress(func(p *Progress) {
					p.Phase = PhaseError
					p.Status = StatusError
					p.Message = err.Error()
				})
				j.logger.WithField("trip_id", fmt.Sprintf("%d", j.tripID)).Error("geodata job exiting: sustained reverse-geocoding outage")
				return
			}
			j.logger.WithError(err).WithField("trip_id", fmt.Sprintf("%d", j.tripID)).Warn("waypoint processing failed, continuing")
		}

		j.updateProgress(func(p *Progress) {
			p.Phase = PhaseCompletingWaypoint
			p.WaypointsProcessed = i + 1
			p.ProgressPercent = float64(i+1) / float64(total) * 100
		})
	}

	j.updateProgress(func(p *Progress) {
		p.Phase = PhaseComplete
		p.Status = StatusComplete
		p.ProgressPercent = 100
		p.Message = ""
	})
}

// waypointPlan is one waypoint together with its resolved radius.
type waypointPlan struct {
	wp        Waypoint
	radiusKm  float64
}

// buildPlan resolves the Options into a concrete per-waypoint radius plan:
// a single center point in single-center mode, or every trip waypoint with
// its adaptive radius otherwise. Per spec.md §4.I's fallback note, a caller
// that detects single-center failure at runtime should re-invoke with
// UseSingleCenter cleared; buildPlan itself always returns a usable plan.
func (j *job) buildPlan(waypoints []Waypoint) []waypointPlan {
	if j.opts.UseSingleCenter {
		return []waypointPlan{{
			wp:       Waypoint{Lat: j.opts.CenterLat, Lon: j.opts.CenterLon, Name: "center"},
			radiusKm: j.opts.CenterRadiusKm,
		}}
	}

	radii := AdaptiveRadii(waypoints)
	plan := make([]waypointPlan, len(waypoints))
	for i, wp := range waypoints {
		plan[i] = waypointPlan{wp: wp, radiusKm: radii[i]}
	}
	return plan
}

// processWaypoint generates the grid around one waypoint and downloads
// reverse-geocoding data for every point in it, serially, pacing requests
// by interRequestDelay and checking cancellation between points.
func (j *job) processWaypoint(wp waypointPlan) error {
	grid := GenerateGrid(wp.wp.Lat, wp.wp.Lon, wp.radiusKm)

	j.updateProgress(func(p *Progress) {
		p.GridTotal = len(grid)
		p.GridProcessed = 0
	})

	for i, pt := range grid {
		select {
		case <-j.ctx.Done():
			return j.ctx.Err()
		default:
		}

		resp, err := j.geocoder.Reverse(j.ctx, pt.Lat, pt.Lon)
		if err != nil || resp == nil {
			metrics.GeodataReverseGeocodeTotal.WithLabelValues("failure").Inc()
			j.updateProgress(func(p *Progress) { p.FailedCalls++ })
			j.mu.Lock()
			j.consecutiveFailures++
			sustained := j.consecutiveFailures >= sustainedFailureThreshold
			j.mu.Unlock()
			if sustained {
				return errSustainedNetworkFailure
			}
		} else {
			metrics.GeodataReverseGeocodeTotal.WithLabelValues("success").Inc()
			j.mu.Lock()
			j.consecutiveFailures = 0
			j.mu.Unlock()
			j.updateProgress(func(p *Progress) { p.Phase = PhaseSavingData })
			record := StoredRecord{
				TripID:       j.tripID,
				Lat:          pt.Lat,
				Lon:          pt.Lon,
				LocationType: pt.Type,
				DisplayName:  resp.DisplayName,
				Road:         resp.Road,
				City:         resp.City,
				State:        resp.State,
				Country:      resp.Country,
				CountryCode:  resp.CountryCode,
				Postcode:     resp.Postcode,
				RawResponse:  resp.Raw,
			}
			if len(resp.BoundingBox) == 4 {
				record.BoundingBox = fmt.Sprintf("%s,%s,%s,%s", resp.BoundingBox[0], resp.BoundingBox[1], resp.BoundingBox[2], resp.BoundingBox[3])
			}
			if err := j.store.Upsert(j.ctx, record); err != nil {
				j.logger.WithError(err).Warn("geodata: failed to persist reverse-geocoding record")
				j.updateProgress(func(p *Progress) { p.FailedCalls++ })
			} else {
				j.updateProgress(func(p *Progress) { p.SuccessfulCalls++ })
			}
			j.updateProgress(func(p *Progress) { p.Phase = PhaseDownloadingWaypoint })
		}

		j.updateProgress(func(p *Progress) { p.GridProcessed = i + 1 })

		if i < len(grid)-1 {
			select {
			case <-time.After(interRequestDelay):
			case <-j.ctx.Done():
				return j.ctx.Err()
			}
		}
	}
	return nil
}
