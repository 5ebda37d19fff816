package filter

import (
	"math"

	"github.com/banshee-data/gazepoint/internal/config"
)

// AdaptiveConfig holds the velocity thresholds of the adaptive filter.
type AdaptiveConfig struct {
	Kalman             KalmanConfig
	VelocityAlpha      float64 // EWMA weight of the newest displacement [0,1]
	DwellVelocity      float64 // At or below: multiplier is MinNoiseMultiplier
	SaccadeVelocity    float64 // At or above: multiplier is MaxNoiseMultiplier
	MinNoiseMultiplier float64
	MaxNoiseMultiplier float64
}

// DefaultAdaptiveConfig returns the built-in tuning defaults.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfigFromTuning(config.EmptyTuningConfig())
}

// AdaptiveConfigFromTuning builds an AdaptiveConfig from a loaded TuningConfig.
func AdaptiveConfigFromTuning(cfg *config.TuningConfig) AdaptiveConfig {
	return AdaptiveConfig{
		Kalman:             KalmanConfigFromTuning(cfg),
		VelocityAlpha:      cfg.GetVelocityAlpha(),
		DwellVelocity:      cfg.GetDwellVelocity(),
		SaccadeVelocity:    cfg.GetSaccadeVelocity(),
		MinNoiseMultiplier: cfg.GetMinNoiseMultiplier(),
		MaxNoiseMultiplier: cfg.GetMaxNoiseMultiplier(),
	}
}

// NoiseMultiplier maps a velocity to a multiplier in [Min, Max]. The curve
// is flat at Min up to the dwell threshold, flat at Max from the saccade
// threshold, and a smoothstep in between, so it is continuous everywhere.
func (c AdaptiveConfig) NoiseMultiplier(velocity float64) float64 {
	lo, hi := c.MinNoiseMultiplier, c.MaxNoiseMultiplier
	if math.IsNaN(velocity) || velocity <= c.DwellVelocity {
		return lo
	}
	if velocity >= c.SaccadeVelocity {
		return hi
	}
	t := (velocity - c.DwellVelocity) / (c.SaccadeVelocity - c.DwellVelocity)
	s := t * t * (3 - 2*t)
	return math.Min(hi, math.Max(lo, lo+(hi-lo)*s))
}

// Adaptive is a Kalman filter whose measurement noise follows the gaze
// velocity. The effective noise is R / multiplier: while fixating the
// multiplier is small, R grows and the motion model dominates; during a
// saccade the multiplier is large, R shrinks and measurements dominate.
type Adaptive struct {
	Config AdaptiveConfig

	kf         *Kalman
	velocity   float64
	multiplier float64
	lastX      float64
	lastY      float64
	hasLast    bool
}

// NewAdaptive creates an adaptive filter in its reset state.
func NewAdaptive(cfg AdaptiveConfig) *Adaptive {
	a := &Adaptive{Config: cfg, kf: NewKalman(cfg.Kalman)}
	a.Reset()
	return a
}

// Reset clears the wrapped filter and the velocity estimate.
func (a *Adaptive) Reset() {
	a.kf.Reset()
	a.velocity = 0
	a.multiplier = a.Config.MinNoiseMultiplier
	a.hasLast = false
}

// Predict advances the wrapped filter one step.
func (a *Adaptive) Predict() { a.kf.Predict() }

// Update refreshes the velocity estimate from the measurement displacement
// and fuses the measurement with the rescaled noise.
func (a *Adaptive) Update(measX, measY float64) {
	if a.hasLast {
		d := math.Hypot(measX-a.lastX, measY-a.lastY)
		alpha := a.Config.VelocityAlpha
		a.velocity = alpha*d + (1-alpha)*a.velocity
	}
	a.lastX, a.lastY = measX, measY
	a.hasLast = true

	a.multiplier = a.Config.NoiseMultiplier(a.velocity)
	a.kf.UpdateWithNoise(measX, measY, a.Config.Kalman.MeasurementNoise/a.multiplier)
}

// State returns the current position estimate.
func (a *Adaptive) State() (float64, float64) { return a.kf.State() }

// Uncertainty returns the wrapped filter's uncertainty.
func (a *Adaptive) Uncertainty() float64 { return a.kf.Uncertainty() }

// Velocity returns the smoothed measurement speed (units per frame).
func (a *Adaptive) Velocity() float64 { return a.velocity }

// Multiplier returns the noise multiplier applied at the last update.
func (a *Adaptive) Multiplier() float64 { return a.multiplier }

// IsFixation reports whether the gaze is below the dwell velocity.
func (a *Adaptive) IsFixation() bool { return a.velocity < a.Config.DwellVelocity }

// Initialised reports whether a measurement has seeded the state.
func (a *Adaptive) Initialised() bool { return a.kf.Initialised() }
