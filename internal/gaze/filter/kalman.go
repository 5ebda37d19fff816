package filter

import (
	"math"

	"github.com/banshee-data/gazepoint/internal/config"
)

// MinDeterminantThreshold is the minimum innovation covariance determinant
// for which an update is applied.
const MinDeterminantThreshold = 1e-12

// KalmanConfig holds the noise parameters of the constant-velocity model.
type KalmanConfig struct {
	TimeStep          float64 // Predict step length (frames)
	ProcessNoisePos   float64 // Process noise for position (σ² per step)
	ProcessNoiseVel   float64 // Process noise for velocity (σ² per step)
	MeasurementNoise  float64 // Measurement noise (σ²)
	InitialCovariance float64 // Diagonal of P after Reset
}

// DefaultKalmanConfig returns the built-in tuning defaults.
func DefaultKalmanConfig() KalmanConfig {
	return KalmanConfigFromTuning(config.EmptyTuningConfig())
}

// KalmanConfigFromTuning builds a KalmanConfig from a loaded TuningConfig.
func KalmanConfigFromTuning(cfg *config.TuningConfig) KalmanConfig {
	return KalmanConfig{
		TimeStep:          cfg.GetKalmanTimeStep(),
		ProcessNoisePos:   cfg.GetProcessNoisePos(),
		ProcessNoiseVel:   cfg.GetProcessNoiseVel(),
		MeasurementNoise:  cfg.GetMeasurementNoise(),
		InitialCovariance: cfg.GetInitialCovariance(),
	}
}

// Kalman is a constant-velocity Kalman filter over [x, y, vx, vy].
type Kalman struct {
	Config KalmanConfig

	X, Y   float64
	VX, VY float64

	// Covariance (4x4, row-major)
	P [16]float64

	initialised bool
}

// NewKalman creates a filter in its reset state.
func NewKalman(cfg KalmanConfig) *Kalman {
	k := &Kalman{Config: cfg}
	k.Reset()
	return k
}

// Reset clears the state and restores the initial covariance.
func (k *Kalman) Reset() {
	k.X, k.Y, k.VX, k.VY = 0, 0, 0, 0
	k.P = [16]float64{}
	for i := 0; i < 4; i++ {
		k.P[i*4+i] = k.Config.InitialCovariance
	}
	k.initialised = false
}

// Initialised reports whether a measurement has seeded the state.
func (k *Kalman) Initialised() bool { return k.initialised }

// State returns the current position estimate.
func (k *Kalman) State() (float64, float64) { return k.X, k.Y }

// Velocity returns the current velocity estimate (units per step).
func (k *Kalman) Velocity() (float64, float64) { return k.VX, k.VY }

// Covariance returns a copy of P.
func (k *Kalman) Covariance() [16]float64 { return k.P }

// Uncertainty returns the generalised standard variance det(P)^(1/4).
// A Predict multiplies det(P) by det(F)² = 1 and then adds a positive
// definite Q, so it cannot decrease; an Update scales det(P) by
// det(R)/det(S) <= 1, so it cannot increase.
func (k *Kalman) Uncertainty() float64 {
	d := det4(k.P)
	if d <= 0 {
		return 0
	}
	return math.Pow(d, 0.25)
}

// Predict advances the state one time step.
func (k *Kalman) Predict() {
	dt := k.Config.TimeStep

	// F = [1  0  dt  0 ]
	//     [0  1  0   dt]
	//     [0  0  1   0 ]
	//     [0  0  0   1 ]
	k.X += k.VX * dt
	k.Y += k.VY * dt

	P := k.P

	// F * P
	var FP [16]float64
	for j := 0; j < 4; j++ {
		FP[0*4+j] = P[0*4+j] + dt*P[2*4+j]
		FP[1*4+j] = P[1*4+j] + dt*P[3*4+j]
		FP[2*4+j] = P[2*4+j]
		FP[3*4+j] = P[3*4+j]
	}

	// (F * P) * F^T
	for i := 0; i < 4; i++ {
		k.P[i*4+0] = FP[i*4+0] + dt*FP[i*4+2]
		k.P[i*4+1] = FP[i*4+1] + dt*FP[i*4+3]
		k.P[i*4+2] = FP[i*4+2]
		k.P[i*4+3] = FP[i*4+3]
	}

	// Process noise scaled by dt so tuning is independent of step length.
	k.P[0*4+0] += k.Config.ProcessNoisePos * dt
	k.P[1*4+1] += k.Config.ProcessNoisePos * dt
	k.P[2*4+2] += k.Config.ProcessNoiseVel * dt
	k.P[3*4+3] += k.Config.ProcessNoiseVel * dt
}

// Update fuses a position measurement using the configured noise.
func (k *Kalman) Update(measX, measY float64) {
	k.UpdateWithNoise(measX, measY, k.Config.MeasurementNoise)
}

// UpdateWithNoise fuses a position measurement with measurement noise r.
// The first measurement seeds the position directly.
func (k *Kalman) UpdateWithNoise(measX, measY, r float64) {
	if !k.initialised {
		k.X, k.Y = measX, measY
		k.initialised = true
	}

	// Innovation
	yX := measX - k.X
	yY := measY - k.Y

	// S = H * P * H^T + R
	S00 := k.P[0*4+0] + r
	S01 := k.P[0*4+1]
	S10 := k.P[1*4+0]
	S11 := k.P[1*4+1] + r

	det := S00*S11 - S01*S10
	if det < MinDeterminantThreshold {
		return
	}

	invS00 := S11 / det
	invS01 := -S01 / det
	invS10 := -S10 / det
	invS11 := S00 / det

	// K = P * H^T * S^-1 (4x2)
	var K [8]float64
	for i := 0; i < 4; i++ {
		K[i*2+0] = k.P[i*4+0]*invS00 + k.P[i*4+1]*invS10
		K[i*2+1] = k.P[i*4+0]*invS01 + k.P[i*4+1]*invS11
	}

	k.X += K[0*2+0]*yX + K[0*2+1]*yY
	k.Y += K[1*2+0]*yX + K[1*2+1]*yY
	k.VX += K[2*2+0]*yX + K[2*2+1]*yY
	k.VY += K[3*2+0]*yX + K[3*2+1]*yY

	// P' = (I - K*H) * P, where (K*H)[i][j] is K[i][j] for j < 2 and 0 otherwise.
	var next [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			next[i*4+j] = k.P[i*4+j] - (K[i*2+0]*k.P[0*4+j] + K[i*2+1]*k.P[1*4+j])
		}
	}
	// Keep P symmetric against rounding drift.
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			avg := (next[i*4+j] + next[j*4+i]) / 2
			next[i*4+j] = avg
			next[j*4+i] = avg
		}
	}
	k.P = next
}

// det4 computes the determinant of a row-major 4x4 matrix by elimination
// with partial pivoting.
func det4(p [16]float64) float64 {
	m := p
	d := 1.0
	for c := 0; c < 4; c++ {
		pivot := c
		for r := c + 1; r < 4; r++ {
			if math.Abs(m[r*4+c]) > math.Abs(m[pivot*4+c]) {
				pivot = r
			}
		}
		if m[pivot*4+c] == 0 {
			return 0
		}
		if pivot != c {
			for j := 0; j < 4; j++ {
				m[c*4+j], m[pivot*4+j] = m[pivot*4+j], m[c*4+j]
			}
			d = -d
		}
		d *= m[c*4+c]
		for r := c + 1; r < 4; r++ {
			f := m[r*4+c] / m[c*4+c]
			for j := c; j < 4; j++ {
				m[r*4+j] -= f * m[c*4+j]
			}
		}
	}
	return d
}
