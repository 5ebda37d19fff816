package filter

import (
	"fmt"

	"github.com/banshee-data/gazepoint/internal/config"
	"github.com/banshee-data/gazepoint/internal/gaze"
)

// Config holds the parameters of every smoothing mode.
type Config struct {
	Adaptive       AdaptiveConfig // Kalman parameters live in Adaptive.Kalman
	LerpFactor     float64        // SIMPLE_LERP step fraction (0,1]
	CombinedWeight float64        // Weight of the adaptive output in COMBINED
}

// DefaultConfig returns the built-in tuning defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		Adaptive:       AdaptiveConfigFromTuning(cfg),
		LerpFactor:     cfg.GetLerpFactor(),
		CombinedWeight: cfg.GetCombinedWeight(),
	}
}

// Smoother stabilises a stream of raw gaze points.
type Smoother interface {
	// Smooth consumes one measurement and returns the stabilised point.
	Smooth(p gaze.Vec2) gaze.Vec2
	// Last returns the most recent output, if any.
	Last() (gaze.Vec2, bool)
	// Fixation reports whether the gaze is currently considered stable.
	Fixation() bool
	// Reset discards all state.
	Reset()
}

// New returns the smoother for mode.
func New(mode gaze.SmoothingMode, cfg Config) (Smoother, error) {
	switch mode {
	case gaze.SmoothingNone:
		return &passthrough{}, nil
	case gaze.SmoothingSimpleLerp:
		return &lerpSmoother{factor: cfg.LerpFactor}, nil
	case gaze.SmoothingKalman:
		return &kalmanSmoother{kf: NewKalman(cfg.Adaptive.Kalman), dwell: cfg.Adaptive.DwellVelocity}, nil
	case gaze.SmoothingAdaptiveKalman:
		return &adaptiveSmoother{af: NewAdaptive(cfg.Adaptive)}, nil
	case gaze.SmoothingCombined:
		return &combinedSmoother{
			kalman:   &kalmanSmoother{kf: NewKalman(cfg.Adaptive.Kalman), dwell: cfg.Adaptive.DwellVelocity},
			adaptive: &adaptiveSmoother{af: NewAdaptive(cfg.Adaptive)},
			weight:   cfg.CombinedWeight,
		}, nil
	}
	return nil, fmt.Errorf("unsupported smoothing mode %v", mode)
}

type last struct {
	p  gaze.Vec2
	ok bool
}

func (l *last) set(p gaze.Vec2) gaze.Vec2 {
	l.p, l.ok = p, true
	return p
}

func (l *last) Last() (gaze.Vec2, bool) { return l.p, l.ok }

type passthrough struct{ last }

func (s *passthrough) Smooth(p gaze.Vec2) gaze.Vec2 { return s.set(p) }
func (s *passthrough) Fixation() bool               { return false }
func (s *passthrough) Reset()                       { s.last = last{} }

type lerpSmoother struct {
	last
	factor float64
}

func (s *lerpSmoother) Smooth(p gaze.Vec2) gaze.Vec2 {
	if !s.ok {
		return s.set(p)
	}
	return s.set(s.p.Lerp(p, s.factor))
}

func (s *lerpSmoother) Fixation() bool { return false }
func (s *lerpSmoother) Reset()         { s.last = last{} }

type kalmanSmoother struct {
	last
	kf    *Kalman
	dwell float64
}

func (s *kalmanSmoother) Smooth(p gaze.Vec2) gaze.Vec2 {
	if s.kf.Initialised() {
		s.kf.Predict()
	}
	s.kf.Update(p.X, p.Y)
	x, y := s.kf.State()
	return s.set(gaze.Vec2{X: x, Y: y})
}

func (s *kalmanSmoother) Fixation() bool {
	vx, vy := s.kf.Velocity()
	return s.kf.Initialised() && gaze.Vec2{X: vx, Y: vy}.Dist(gaze.Vec2{}) < s.dwell
}

func (s *kalmanSmoother) Reset() {
	s.kf.Reset()
	s.last = last{}
}

type adaptiveSmoother struct {
	last
	af *Adaptive
}

func (s *adaptiveSmoother) Smooth(p gaze.Vec2) gaze.Vec2 {
	if s.af.Initialised() {
		s.af.Predict()
	}
	s.af.Update(p.X, p.Y)
	x, y := s.af.State()
	return s.set(gaze.Vec2{X: x, Y: y})
}

func (s *adaptiveSmoother) Fixation() bool { return s.af.Initialised() && s.af.IsFixation() }

func (s *adaptiveSmoother) Reset() {
	s.af.Reset()
	s.last = last{}
}

// combinedSmoother runs both Kalman variants on every measurement and blends
// their estimates.
type combinedSmoother struct {
	last
	kalman   *kalmanSmoother
	adaptive *adaptiveSmoother
	weight   float64
}

func (s *combinedSmoother) Smooth(p gaze.Vec2) gaze.Vec2 {
	k := s.kalman.Smooth(p)
	a := s.adaptive.Smooth(p)
	return s.set(k.Lerp(a, s.weight))
}

func (s *combinedSmoother) Fixation() bool { return s.adaptive.Fixation() }

func (s *combinedSmoother) Reset() {
	s.kalman.Reset()
	s.adaptive.Reset()
	s.last = last{}
}
