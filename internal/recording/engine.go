package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dashcamv2/control-go/internal/camera"
	"github.com/dashcamv2/control-go/internal/logging"
	"github.com/dashcamv2/control-go/internal/paths"
)

// activeClip tracks the clip currently being recorded.
type activeClip struct {
	startTime   time.Time
	sequenceNum int
	quality     camera.Quality
	files       map[CameraSlot]string
}

// Engine drives the two fixed camera drivers through the clip-rolling
// state machine in spec.md §4.F. It is the sole caller of Driver methods
// on each of its two drivers; StopRecording/rollClip/frame-pump never run
// concurrently against the same driver because the frame pump observes
// ctx.Done() before the engine touches a driver directly during stop.
type Engine struct {
	road     camera.Driver
	interior camera.Driver
	layout   *paths.Layout
	logger   *logging.Logger

	mu             sync.Mutex
	state          State
	quality        camera.Quality
	sequenceNum    int
	completedClips []ClipRecord
	callback       CompletedClipFunc
	currentClip    *activeClip
	cancel         context.CancelFunc
	done           chan struct{}
	rollNow        chan struct{}
}

// New constructs an Engine over the road and interior drivers. Drivers are
// expected to already be initialized (spec.md §4.G owns parallel
// initialization of both cameras).
func New(road, interior camera.Driver, layout *paths.Layout, logger *logging.Logger) *Engine {
	return &Engine{
		road:     road,
		interior: interior,
		layout:   layout,
		logger:   logger,
		state:    StateIdle,
	}
}

// State returns the engine's current state-machine position.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// StartRecording begins a new recording session at the given quality,
// installing callback to be invoked once per completed clip.
func (e *Engine) StartRecording(ctx context.Context, quality camera.Quality, callback CompletedClipFunc) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("recording: already %s", e.state)
	}
	e.quality = quality
	e.sequenceNum = 0
	e.completedClips = nil
	e.callback = callback
	e.state = StateRecording
	e.rollNow = make(chan struct{}, 1)
	e.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	if err := e.beginClip(runCtx); err != nil {
		cancel()
		e.mu.Lock()
		e.state = StateIdle
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	e.cancel = cancel
	e.done = make(chan struct{})
	done := e.done
	e.mu.Unlock()

	go e.run(runCtx, done)
	return nil
}

// run drives the clip-rollover timer and, for frame-driven drivers, the
// ~30 fps frame pump. It never touches completedClips/currentClip directly
// except through rollClip, which takes the engine lock.
func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	clipTimer := time.NewTimer(clipDuration)
	defer clipTimer.Stop()
	framePump := time.NewTicker(framePumpInterval)
	defer framePump.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-clipTimer.C:
			e.rollClip(ctx)
			clipTimer.Reset(clipDuration)
		case <-e.rollNow:
			e.rollClip(ctx)
			clipTimer.Reset(clipDuration)
		case <-framePump.C:
			e.pumpInteriorFrame(ctx)
		}
	}
}

// pumpInteriorFrame drives the interior driver's RecordFrame if it
// implements camera.FrameDrivenRecorder, per spec.md §4.F step 4 ("the
// interior driver is frame-driven: the recording task polls record_frame()
// at ~30 fps. The road driver is encoder-driven and needs no polling.").
func (e *Engine) pumpInteriorFrame(ctx context.Context) {
	recorder, ok := e.interior.(camera.FrameDrivenRecorder)
	if !ok {
		return
	}
	if err := recorder.RecordFrame(ctx); err != nil {
		e.logger.WithError(err).Debug("interior frame pump failed")
	}
}

// beginClip opens the next clip's encoder(s) and files. A failure to start
// either camera is retried once; a second failure is fatal to the whole
// session (spec.md §4.F "Failure semantics").
func (e *Engine) beginClip(ctx context.Context) error {
	e.mu.Lock()
	e.sequenceNum++
	seq := e.sequenceNum
	quality := e.quality
	e.mu.Unlock()

	now := time.Now()
	date := now.Format("2006-01-02")
	dir, err := e.layout.EnsureVideosDirForDate(date)
	if err != nil {
		return fmt.Errorf("recording: ensure videos dir: %w", err)
	}

	files := make(map[CameraSlot]string)
	drivers := map[CameraSlot]camera.Driver{CameraRoad: e.road, CameraInterior: e.interior}
	for slot, drv := range drivers {
		filename := paths.ClipFileName(now.Hour(), now.Minute(), now.Second(), seq, qualityToken(quality), string(slot))
		clipPath := dir + string(os.PathSeparator) + filename
		cfg := qualityConfigFor(slot, quality)

		if err := startWithRetry(ctx, drv, clipPath, cfg); err != nil {
			e.logger.WithError(err).WithField("camera", string(slot)).Error("camera failed to start clip after retry")
			return fmt.Errorf("recording: start %s: %w", slot, err)
		}
		files[slot] = clipPath
	}

	e.mu.Lock()
	e.currentClip = &activeClip{startTime: now, sequenceNum: seq, quality: quality, files: files}
	e.mu.Unlock()
	return nil
}

// startWithRetry starts a single driver's recording, retrying once on
// failure per spec.md §4.F's failure semantics.
func startWithRetry(ctx context.Context, drv camera.Driver, path string, cfg camera.QualityConfig) error {
	if err := drv.StartRecording(ctx, path, cfg); err != nil {
		if err := drv.StartRecording(ctx, path, cfg); err != nil {
			return err
		}
	}
	return nil
}

func qualityConfigFor(slot CameraSlot, quality camera.Quality) camera.QualityConfig {
	if slot == CameraRoad {
		return camera.RoadQualityConfig(quality)
	}
	return camera.InteriorQualityConfig(quality)
}

// rollClip closes the current clip, invokes the completed-clip callback,
// and opens the next one. Invoked from run()'s goroutine only.
func (e *Engine) rollClip(ctx context.Context) {
	e.mu.Lock()
	clip := e.currentClip
	callback := e.callback
	e.mu.Unlock()
	if clip == nil {
		return
	}

	now := time.Now()
	e.stopDrivers(ctx)
	files := verifyFiles(clip.files)

	record := ClipRecord{
		StartTime:   clip.startTime,
		EndTime:     now,
		SequenceNum: clip.sequenceNum,
		Quality:     clip.quality,
		Files:       files,
	}

	e.mu.Lock()
	e.completedClips = append(e.completedClips, record)
	e.mu.Unlock()

	invokeCallback(callback, record, e.logger)

	if err := e.beginClip(ctx); err != nil {
		e.logger.WithError(err).Error("recording session terminated: could not begin next clip")
		e.mu.Lock()
		e.state = StateIdle
		cancel := e.cancel
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// invokeCallback recovers a panic from callback so a faulty caller-supplied
// hook never takes down the recording loop (spec.md §4.F: "exceptions in
// the callback are logged, never propagated").
func invokeCallback(callback CompletedClipFunc, record ClipRecord, logger *logging.Logger) {
	if callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", fmt.Sprintf("%v", r)).Error("completed-clip callback panicked")
		}
	}()
	callback(record)
}

func (e *Engine) stopDrivers(ctx context.Context) {
	if err := e.road.StopRecording(ctx); err != nil {
		e.logger.WithError(err).Warn("road driver stop_recording failed")
	}
	if err := e.interior.StopRecording(ctx); err != nil {
		e.logger.WithError(err).Warn("interior driver stop_recording failed")
	}
}

// verifyFiles keeps only the files that exist on disk with non-zero size,
// per spec.md §4.F step 3 ("verify each file exists with non-zero size").
// A camera whose file is missing or empty is simply absent from the
// returned map; the clip is still recorded.
func verifyFiles(candidates map[CameraSlot]string) map[CameraSlot]string {
	out := make(map[CameraSlot]string)
	for slot, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			continue
		}
		out[slot] = path
	}
	return out
}

// StopRecording stops the session: the background loop is cancelled and
// allowed to exit, then the final (still-open) clip is closed and returned
// together with every previously completed clip, bypassing the callback
// (spec.md §4.F step 5).
func (e *Engine) StopRecording(ctx context.Context) ([]ClipRecord, error) {
	e.mu.Lock()
	if e.state == StateIdle {
		e.mu.Unlock()
		return nil, fmt.Errorf("recording: not in progress")
	}
	e.state = StateStopping
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	e.mu.Lock()
	clip := e.currentClip
	e.mu.Unlock()

	var final *ClipRecord
	if clip != nil {
		now := time.Now()
		e.stopDrivers(ctx)
		files := verifyFiles(clip.files)
		record := ClipRecord{
			StartTime:   clip.startTime,
			EndTime:     now,
			SequenceNum: clip.sequenceNum,
			Quality:     clip.quality,
			Files:       files,
		}
		final = &record
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	all := append([]ClipRecord{}, e.completedClips...)
	if final != nil {
		all = append(all, *final)
	}
	e.completedClips = nil
	e.currentClip = nil
	e.state = StateIdle
	return all, nil
}

// SetQuality updates the recording quality. If recording is active and the
// quality actually changes, it rolls immediately to a new clip so the new
// quality takes effect on the next file (spec.md §4.F step 6).
func (e *Engine) SetQuality(newQuality camera.Quality) {
	e.mu.Lock()
	if e.state != StateRecording || e.quality == newQuality {
		e.mu.Unlock()
		return
	}
	e.quality = newQuality
	rollNow := e.rollNow
	e.mu.Unlock()

	select {
	case rollNow <- struct{}{}:
	default:
	}
}

// Quality returns the currently configured recording quality.
func (e *Engine) Quality() camera.Quality {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.quality
}
