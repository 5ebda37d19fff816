package calibration

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/gazepoint/internal/config"
	"github.com/banshee-data/gazepoint/internal/gaze"
)

var (
	// ErrNotCollecting is returned when samples arrive outside a session.
	ErrNotCollecting = errors.New("calibration session not started")
	// ErrBucketFull is returned when a sample is dropped at the bucket cap.
	ErrBucketFull = errors.New("calibration bucket full")
)

// State is the phase of the calibration state machine.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateComputed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateComputed:
		return "computed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the calibration parameters.
type Config struct {
	Mode               gaze.CalibrationMode
	MarginPercent      float64
	MaxSamplesPerPoint int
	MinSamplesPerPoint int
	IQRMultiplier      float64
	SingularityEpsilon float64
}

// DefaultConfig returns the built-in tuning defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The mode name
// is checked by TuningConfig.Validate; an unparsable name falls back to
// AFFINE.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	mode, err := gaze.ParseCalibrationMode(cfg.GetCalibrationMode())
	if err != nil {
		mode = gaze.CalibrationAffine
	}
	return Config{
		Mode:               mode,
		MarginPercent:      cfg.GetCalibrationMarginPercent(),
		MaxSamplesPerPoint: cfg.GetMaxSamplesPerPoint(),
		MinSamplesPerPoint: cfg.GetMinSamplesPerPoint(),
		IQRMultiplier:      cfg.GetIQRMultiplier(),
		SingularityEpsilon: cfg.GetSingularityEpsilon(),
	}
}

// PointSummary reports how one target's bucket contributed to the fit.
type PointSummary struct {
	Index    int       `json:"index"`
	Target   gaze.Vec2 `json:"target"`
	Mean     gaze.Vec2 `json:"mean"`
	Mapped   gaze.Vec2 `json:"mapped"`
	Accepted int       `json:"accepted"`
	Rejected int       `json:"rejected"`
	Residual float64   `json:"residual"`
}

// Summary describes the last successful compute.
type Summary struct {
	Mode   gaze.CalibrationMode `json:"mode"`
	Error  float64              `json:"error"`
	Points []PointSummary       `json:"points"`
}

// Engine collects samples and fits the calibration transform.
type Engine struct {
	cfg Config

	state   State
	current int
	width   int
	height  int
	targets []gaze.Vec2
	buckets [PointCount][]gaze.Vec2

	data    *gaze.CalibrationData
	summary *Summary
}

// NewEngine returns an idle engine.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Mode returns the transform family used by the next compute.
func (e *Engine) Mode() gaze.CalibrationMode { return e.cfg.Mode }

// SetMode changes the transform family used by the next compute. Existing
// calibration data is unaffected.
func (e *Engine) SetMode(mode gaze.CalibrationMode) error {
	if mode.Coefficients() == 0 {
		return fmt.Errorf("unknown calibration mode %d", int(mode))
	}
	e.cfg.Mode = mode
	return nil
}

// State returns the current phase and, while collecting, the most recent
// point index.
func (e *Engine) State() (State, int) { return e.state, e.current }

// Start begins a new session for a width×height screen, discarding any
// collected samples. The returned targets are also available via Targets.
func (e *Engine) Start(width, height int, marginPercent float64) ([]gaze.Vec2, error) {
	targets, err := GenerateCalibrationPoints(width, height, marginPercent)
	if err != nil {
		return nil, err
	}
	e.clearBuckets()
	e.width, e.height = width, height
	e.targets = targets
	e.state = StateCollecting
	e.current = 0
	return append([]gaze.Vec2(nil), targets...), nil
}

// Targets returns the targets of the current session.
func (e *Engine) Targets() []gaze.Vec2 {
	return append([]gaze.Vec2(nil), e.targets...)
}

// AddSample appends a raw gaze sample to the bucket for pointIndex. Samples
// beyond MaxSamplesPerPoint are dropped with ErrBucketFull.
func (e *Engine) AddSample(pointIndex int, rawX, rawY float64) error {
	if e.state != StateCollecting {
		return ErrNotCollecting
	}
	if pointIndex < 0 || pointIndex >= PointCount {
		return fmt.Errorf("point index %d outside [0, %d)", pointIndex, PointCount)
	}
	if math.IsNaN(rawX) || math.IsNaN(rawY) || math.IsInf(rawX, 0) || math.IsInf(rawY, 0) {
		return fmt.Errorf("non-finite sample (%v, %v)", rawX, rawY)
	}
	e.current = pointIndex
	if e.cfg.MaxSamplesPerPoint > 0 && len(e.buckets[pointIndex]) >= e.cfg.MaxSamplesPerPoint {
		return fmt.Errorf("%w: point %d holds %d samples", ErrBucketFull, pointIndex, len(e.buckets[pointIndex]))
	}
	e.buckets[pointIndex] = append(e.buckets[pointIndex], gaze.Vec2{X: rawX, Y: rawY})
	return nil
}

// SampleCount returns the number of samples collected for pointIndex.
func (e *Engine) SampleCount(pointIndex int) int {
	if pointIndex < 0 || pointIndex >= PointCount {
		return 0
	}
	return len(e.buckets[pointIndex])
}

// Samples returns a copy of every collected sample tagged with its target.
func (e *Engine) Samples() []gaze.CalibrationSample {
	var out []gaze.CalibrationSample
	for i, bucket := range e.buckets {
		for _, s := range bucket {
			out = append(out, gaze.CalibrationSample{PointIndex: i, RawGazeX: s.X, RawGazeY: s.Y})
		}
	}
	return out
}

// Compute rejects outliers, fits the transform and scores it. On failure
// the previously computed data is left untouched and the session stays
// open so more samples can be collected.
func (e *Engine) Compute() (gaze.CalibrationData, error) {
	if e.state == StateIdle || len(e.targets) != PointCount {
		return gaze.CalibrationData{}, ErrNotCollecting
	}

	minSamples := e.cfg.MinSamplesPerPoint
	if minSamples < 1 {
		minSamples = 1
	}

	points := make([]PointSummary, PointCount)
	means := make([]gaze.Vec2, PointCount)
	for i, bucket := range e.buckets {
		accepted, rejected := RejectOutliers(bucket, e.cfg.IQRMultiplier)
		if len(accepted) < minSamples {
			return gaze.CalibrationData{}, fmt.Errorf("%w: point %d has %d accepted of %d (need %d)",
				gaze.ErrInsufficientSamples, i, len(accepted), len(bucket), minSamples)
		}
		means[i] = mean(accepted)
		points[i] = PointSummary{
			Index:    i,
			Target:   e.targets[i],
			Mean:     means[i],
			Accepted: len(accepted),
			Rejected: len(rejected),
		}
	}

	tx, ty, err := fitTransform(e.cfg.Mode, means, e.targets, e.cfg.SingularityEpsilon)
	if err != nil {
		return gaze.CalibrationData{}, err
	}

	data := gaze.CalibrationData{
		TransformX:   tx,
		TransformY:   ty,
		ScreenWidth:  e.width,
		ScreenHeight: e.height,
		Mode:         e.cfg.Mode,
	}

	var total float64
	for i := range points {
		x, y := data.Apply(means[i].X, means[i].Y)
		points[i].Mapped = gaze.Vec2{X: x, Y: y}
		points[i].Residual = points[i].Mapped.Dist(points[i].Target)
		total += points[i].Residual
	}
	data.CalibrationError = total / PointCount

	if err := data.Validate(); err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("%w: fit produced invalid data", gaze.ErrSingularSystem)
	}

	e.data = &data
	e.summary = &Summary{Mode: data.Mode, Error: data.CalibrationError, Points: points}
	e.state = StateComputed
	return data.Clone(), nil
}

// ClearSamples drops collected samples and ends the session. Computed data
// survives.
func (e *Engine) ClearSamples() {
	e.clearBuckets()
	e.targets = nil
	e.current = 0
	e.state = StateIdle
}

// Reset drops samples and computed data.
func (e *Engine) Reset() {
	e.ClearSamples()
	e.data = nil
	e.summary = nil
}

// Forget drops computed data and its summary. A session in progress keeps
// its samples.
func (e *Engine) Forget() {
	e.data = nil
	e.summary = nil
	if e.state == StateComputed {
		e.state = StateCollecting
	}
}

// Export returns a copy of the computed data.
func (e *Engine) Export() (gaze.CalibrationData, bool) {
	if e.data == nil {
		return gaze.CalibrationData{}, false
	}
	return e.data.Clone(), true
}

// Import replaces the computed data after validating it. The summary of any
// earlier compute is discarded since it no longer describes the data.
func (e *Engine) Import(data gaze.CalibrationData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	d := data.Clone()
	e.data = &d
	e.summary = nil
	return nil
}

// Calibrated reports whether a transform is available.
func (e *Engine) Calibrated() bool { return e.data != nil }

// Apply maps a raw gaze point through the computed transform.
func (e *Engine) Apply(rawX, rawY float64) (float64, float64, bool) {
	if e.data == nil {
		return rawX, rawY, false
	}
	x, y := e.data.Apply(rawX, rawY)
	return x, y, true
}

// Summary returns the report of the last successful compute.
func (e *Engine) Summary() (Summary, bool) {
	if e.summary == nil {
		return Summary{}, false
	}
	s := *e.summary
	s.Points = append([]PointSummary(nil), e.summary.Points...)
	return s, true
}

func (e *Engine) clearBuckets() {
	for i := range e.buckets {
		e.buckets[i] = nil
	}
}
