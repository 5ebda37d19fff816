package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/gazepoint/internal/config"
	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/gaze/filter"
	"github.com/banshee-data/gazepoint/internal/gaze/geometry"
	"github.com/banshee-data/gazepoint/internal/monitoring"
)

// ErrNoStorage is returned by persistence calls on a tracker built without
// a Storage.
var ErrNoStorage = errors.New("no storage configured")

// MaxConsecutiveDetectorErrors stops Run after this many detector failures
// in a row.
const MaxConsecutiveDetectorErrors = 30

// Config bundles the tuning of every pipeline stage.
type Config struct {
	Geometry    geometry.Config
	Filter      filter.Config
	Calibration calibration.Config
}

// DefaultConfig returns the built-in tuning defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Geometry:    geometry.ConfigFromTuning(cfg),
		Filter:      filter.ConfigFromTuning(cfg),
		Calibration: calibration.ConfigFromTuning(cfg),
	}
}

// Estimate is the outcome of one frame.
type Estimate struct {
	// X and Y are screen pixels when Calibrated, otherwise the smoothed raw
	// gaze.
	X, Y     float64
	Raw      gaze.Vec2 // Fused gaze before smoothing
	Smoothed gaze.Vec2
	Gaze     gaze.GazeResult

	Valid      bool // False when the frame produced no estimate
	Calibrated bool
	Held       bool // Repeats the last estimate; filters were not updated
	Fixation   bool

	Timestamp time.Time
}

// Stats counts frame outcomes since the tracker was created.
type Stats struct {
	Frames     int64 `json:"frames"`
	Estimates  int64 `json:"estimates"`
	NoFace     int64 `json:"no_face"`
	EyesClosed int64 `json:"eyes_closed"`
	Held       int64 `json:"held"`
	Dropped    int64 `json:"dropped"`
}

// Tracker owns the per-frame pipeline state: smoother, calibration engine
// and the last estimate.
type Tracker struct {
	det      Detector
	store    Storage
	settings *Settings
	cfg      Config
	calc     *geometry.Calculator
	log      monitoring.Logger

	busy atomic.Bool

	mu         sync.Mutex
	smoother   filter.Smoother
	smoothMode gaze.SmoothingMode
	engine     *calibration.Engine
	last       Estimate
	hasLast    bool
	stats      Stats
}

// NewTracker wires a tracker. store may be nil, in which case persistence
// calls return ErrNoStorage. A nil log uses monitoring.L().
func NewTracker(det Detector, store Storage, settings *Settings, cfg Config, log monitoring.Logger) *Tracker {
	if log == nil {
		log = monitoring.L()
	}
	snap := settings.Snapshot()
	calCfg := cfg.Calibration
	calCfg.Mode = snap.CalibrationMode
	return &Tracker{
		det:      det,
		store:    store,
		settings: settings,
		cfg:      cfg,
		calc:     geometry.NewCalculator(cfg.Geometry),
		log:      log,
		engine:   calibration.NewEngine(calCfg),
	}
}

// Settings returns the settings the tracker reads each frame.
func (t *Tracker) Settings() *Settings { return t.settings }

// Initialize prepares the detector.
func (t *Tracker) Initialize(ctx context.Context, useGPU bool) error {
	if err := t.det.Initialize(ctx, useGPU); err != nil {
		t.log.Error("detector initialisation failed", err, "gpu", useGPU)
		return err
	}
	t.log.Info("detector ready", "gpu_requested", useGPU, "gpu", t.det.IsUsingGPU())
	return nil
}

// Ready reports whether the detector can serve frames.
func (t *Tracker) Ready() bool { return t.det.IsReady() }

// UsingGPU reports whether the detector runs on a GPU.
func (t *Tracker) UsingGPU() bool { return t.det.IsUsingGPU() }

// Close releases the detector.
func (t *Tracker) Close() error { return t.det.Close() }

// ProcessFrame requests one detection and runs it through the pipeline.
// Only one call may be in flight; a concurrent call fails with
// gaze.ErrFrameInFlight. When ctx ends during detection the result is
// discarded and ctx.Err() returned.
func (t *Tracker) ProcessFrame(ctx context.Context) (Estimate, error) {
	if !t.busy.CompareAndSwap(false, true) {
		return Estimate{}, gaze.ErrFrameInFlight
	}
	defer t.busy.Store(false)

	face, err := t.det.DetectLandmarks(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		t.mu.Lock()
		t.stats.Dropped++
		t.mu.Unlock()
		return Estimate{}, ctxErr
	}
	if err != nil {
		return Estimate{}, fmt.Errorf("detect landmarks: %w", err)
	}
	return t.ProcessLandmarks(face), nil
}

// ProcessLandmarks runs one detection through geometry, fusion, smoothing
// and the calibration transform. A nil face means no face was found.
func (t *Tracker) ProcessLandmarks(face *gaze.FaceLandmarkResult) Estimate {
	snap := t.settings.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Frames++
	t.ensureSmoother(snap.SmoothingMode)

	if face == nil {
		t.stats.NoFace++
		return t.noEstimate(snap, gaze.GazeResult{})
	}

	res, detail, err := t.calc.Compute(face, snap.geometry())
	if err != nil {
		t.stats.NoFace++
		t.log.Debug("frame skipped", "error", err)
		return t.noEstimate(snap, gaze.GazeResult{Timestamp: face.Timestamp})
	}
	if !detail.Valid {
		t.stats.EyesClosed++
		return t.noEstimate(snap, res)
	}

	raw := res.Gaze()
	smoothed := t.smoother.Smooth(raw)
	est := Estimate{
		Raw:       raw,
		Smoothed:  smoothed,
		Gaze:      res,
		Valid:     true,
		Fixation:  t.smoother.Fixation(),
		Timestamp: res.Timestamp,
	}
	est.X, est.Y, est.Calibrated = t.engine.Apply(smoothed.X, smoothed.Y)

	t.last = est
	t.hasLast = true
	t.stats.Estimates++
	return est
}

// noEstimate handles a frame without a usable gaze. Filters are not
// touched. With HoldOnNoFace the last estimate is repeated, remapped
// through the current calibration.
func (t *Tracker) noEstimate(snap SettingsSnapshot, res gaze.GazeResult) Estimate {
	if !snap.HoldOnNoFace || !t.hasLast {
		return Estimate{Gaze: res, Timestamp: res.Timestamp}
	}
	t.stats.Held++
	est := t.last
	est.Held = true
	est.Gaze = res
	if !res.Timestamp.IsZero() {
		est.Timestamp = res.Timestamp
	}
	est.X, est.Y, est.Calibrated = t.engine.Apply(est.Smoothed.X, est.Smoothed.Y)
	return est
}

func (t *Tracker) ensureSmoother(mode gaze.SmoothingMode) {
	if t.smoother != nil && mode == t.smoothMode {
		return
	}
	s, err := filter.New(mode, t.cfg.Filter)
	if err != nil {
		t.log.Warn("smoothing mode unavailable, smoothing disabled", "mode", mode.String(), "error", err)
		s, _ = filter.New(gaze.SmoothingNone, t.cfg.Filter)
	}
	if t.smoother != nil {
		t.log.Debug("smoother rebuilt", "from", t.smoothMode.String(), "to", mode.String())
	}
	t.smoother = s
	t.smoothMode = mode
}

// Last returns the most recent valid estimate.
func (t *Tracker) Last() (Estimate, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.hasLast
}

// Stats returns the frame counters.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// ResetSmoothing discards filter state and the last estimate.
func (t *Tracker) ResetSmoothing() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.smoother != nil {
		t.smoother.Reset()
	}
	t.last = Estimate{}
	t.hasLast = false
}

// Run calls ProcessFrame until ctx ends or the detector reaches the end of
// its stream, passing every estimate to sink. The detector paces the loop.
// Isolated detector errors are logged and skipped; Run gives up after
// MaxConsecutiveDetectorErrors in a row.
func (t *Tracker) Run(ctx context.Context, sink func(Estimate)) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		est, err := t.ProcessFrame(ctx)
		switch {
		case err == nil:
			failures = 0
			if sink != nil {
				sink(est)
			}
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, io.EOF):
			t.log.Info("detector stream ended")
			return nil
		default:
			failures++
			t.log.Warn("frame failed", "error", err, "consecutive", failures)
			if failures >= MaxConsecutiveDetectorErrors {
				return fmt.Errorf("giving up after %d detector errors: %w", failures, err)
			}
		}
	}
}
