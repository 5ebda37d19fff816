package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// The Get* fallbacks below mirror its values so that an empty config
// behaves exactly like the defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the root configuration for gaze pipeline tuning.
// Every field is optional; nil fields fall back to the defaults returned by
// the matching Get* method, so partial files are safe.
type TuningConfig struct {
	// Kalman filter
	KalmanTimeStep    *float64 `json:"kalman_time_step,omitempty" yaml:"kalman_time_step,omitempty"`
	ProcessNoisePos   *float64 `json:"process_noise_pos,omitempty" yaml:"process_noise_pos,omitempty"`
	ProcessNoiseVel   *float64 `json:"process_noise_vel,omitempty" yaml:"process_noise_vel,omitempty"`
	MeasurementNoise  *float64 `json:"measurement_noise,omitempty" yaml:"measurement_noise,omitempty"`
	InitialCovariance *float64 `json:"initial_covariance,omitempty" yaml:"initial_covariance,omitempty"`

	// Adaptive Kalman filter
	VelocityAlpha      *float64 `json:"velocity_alpha,omitempty" yaml:"velocity_alpha,omitempty"`
	DwellVelocity      *float64 `json:"dwell_velocity,omitempty" yaml:"dwell_velocity,omitempty"`
	SaccadeVelocity    *float64 `json:"saccade_velocity,omitempty" yaml:"saccade_velocity,omitempty"`
	MinNoiseMultiplier *float64 `json:"min_noise_multiplier,omitempty" yaml:"min_noise_multiplier,omitempty"`
	MaxNoiseMultiplier *float64 `json:"max_noise_multiplier,omitempty" yaml:"max_noise_multiplier,omitempty"`

	// Lerp / combined smoothing
	LerpFactor     *float64 `json:"lerp_factor,omitempty" yaml:"lerp_factor,omitempty"`
	CombinedWeight *float64 `json:"combined_weight,omitempty" yaml:"combined_weight,omitempty"`

	// Calibration
	CalibrationMode          *string  `json:"calibration_mode,omitempty" yaml:"calibration_mode,omitempty"`
	CalibrationMarginPercent *float64 `json:"calibration_margin_percent,omitempty" yaml:"calibration_margin_percent,omitempty"`
	MaxSamplesPerPoint       *int     `json:"max_samples_per_point,omitempty" yaml:"max_samples_per_point,omitempty"`
	MinSamplesPerPoint       *int     `json:"min_samples_per_point,omitempty" yaml:"min_samples_per_point,omitempty"`
	IQRMultiplier            *float64 `json:"iqr_multiplier,omitempty" yaml:"iqr_multiplier,omitempty"`
	SingularityEpsilon       *float64 `json:"singularity_epsilon,omitempty" yaml:"singularity_epsilon,omitempty"`

	// Geometry
	MaxHeadAngle          *float64 `json:"max_head_angle,omitempty" yaml:"max_head_angle,omitempty"`
	PitchNeutralRatio     *float64 `json:"pitch_neutral_ratio,omitempty" yaml:"pitch_neutral_ratio,omitempty"`
	YawGain               *float64 `json:"yaw_gain,omitempty" yaml:"yaw_gain,omitempty"`
	PitchGain             *float64 `json:"pitch_gain,omitempty" yaml:"pitch_gain,omitempty"`
	MaxCompensation       *float64 `json:"max_compensation,omitempty" yaml:"max_compensation,omitempty"`
	CompensateRoll        *bool    `json:"compensate_roll,omitempty" yaml:"compensate_roll,omitempty"`
	BlinkEARThreshold     *float64 `json:"blink_ear_threshold,omitempty" yaml:"blink_ear_threshold,omitempty"`
	BlinkSoftness         *float64 `json:"blink_softness,omitempty" yaml:"blink_softness,omitempty"`
	BlinkConfidenceCutoff *float64 `json:"blink_confidence_cutoff,omitempty" yaml:"blink_confidence_cutoff,omitempty"`
	EyeballRadiusRatio    *float64 `json:"eyeball_radius_ratio,omitempty" yaml:"eyeball_radius_ratio,omitempty"`
	MaxEyeAngle           *float64 `json:"max_eye_angle,omitempty" yaml:"max_eye_angle,omitempty"`

	// Run-time settings defaults
	SmoothingMode  *string  `json:"smoothing_mode,omitempty" yaml:"smoothing_mode,omitempty"`
	EyeSelection   *string  `json:"eye_selection,omitempty" yaml:"eye_selection,omitempty"`
	TrackingMethod *string  `json:"tracking_method,omitempty" yaml:"tracking_method,omitempty"`
	SensitivityX   *float64 `json:"sensitivity_x,omitempty" yaml:"sensitivity_x,omitempty"`
	SensitivityY   *float64 `json:"sensitivity_y,omitempty" yaml:"sensitivity_y,omitempty"`
	OffsetX        *float64 `json:"offset_x,omitempty" yaml:"offset_x,omitempty"`
	OffsetY        *float64 `json:"offset_y,omitempty" yaml:"offset_y,omitempty"`
	HoldOnNoFace   *bool    `json:"hold_on_no_face,omitempty" yaml:"hold_on_no_face,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON or YAML file, chosen by
// extension. Fields omitted from the file keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/gaze/filter/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	positive := map[string]*float64{
		"kalman_time_step":   c.KalmanTimeStep,
		"measurement_noise":  c.MeasurementNoise,
		"initial_covariance": c.InitialCovariance,
		"process_noise_pos":  c.ProcessNoisePos,
		"process_noise_vel":  c.ProcessNoiseVel,
		"sensitivity_x":      c.SensitivityX,
		"sensitivity_y":      c.SensitivityY,
		"iqr_multiplier":     c.IQRMultiplier,
		"blink_softness":     c.BlinkSoftness,
		"max_eye_angle":      c.MaxEyeAngle,
		"max_head_angle":     c.MaxHeadAngle,
	}
	for name, v := range positive {
		if v != nil && (!(*v > 0) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be positive and finite, got %v", name, *v)
		}
	}

	unit := map[string]*float64{
		"velocity_alpha":          c.VelocityAlpha,
		"lerp_factor":             c.LerpFactor,
		"combined_weight":         c.CombinedWeight,
		"blink_confidence_cutoff": c.BlinkConfidenceCutoff,
	}
	for name, v := range unit {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.GetMinNoiseMultiplier() <= 0 || c.GetMinNoiseMultiplier() > c.GetMaxNoiseMultiplier() {
		return fmt.Errorf("noise multipliers must satisfy 0 < min <= max, got [%f, %f]",
			c.GetMinNoiseMultiplier(), c.GetMaxNoiseMultiplier())
	}
	if c.GetDwellVelocity() < 0 || c.GetDwellVelocity() >= c.GetSaccadeVelocity() {
		return fmt.Errorf("velocities must satisfy 0 <= dwell < saccade, got [%f, %f]",
			c.GetDwellVelocity(), c.GetSaccadeVelocity())
	}
	if m := c.GetCalibrationMarginPercent(); m < 0 || m >= 50 {
		return fmt.Errorf("calibration_margin_percent must be in [0, 50), got %f", m)
	}
	if c.GetMinSamplesPerPoint() < 1 {
		return fmt.Errorf("min_samples_per_point must be at least 1, got %d", c.GetMinSamplesPerPoint())
	}
	if c.GetMaxSamplesPerPoint() < c.GetMinSamplesPerPoint() {
		return fmt.Errorf("max_samples_per_point (%d) below min_samples_per_point (%d)",
			c.GetMaxSamplesPerPoint(), c.GetMinSamplesPerPoint())
	}

	enums := map[string]struct {
		value *string
		valid []string
	}{
		"calibration_mode": {c.CalibrationMode, []string{"AFFINE", "POLYNOMIAL"}},
		"smoothing_mode":   {c.SmoothingMode, []string{"NONE", "SIMPLE_LERP", "KALMAN_FILTER", "ADAPTIVE_KALMAN", "COMBINED"}},
		"eye_selection":    {c.EyeSelection, []string{"LEFT_EYE_ONLY", "RIGHT_EYE_ONLY", "BOTH_EYES"}},
		"tracking_method":  {c.TrackingMethod, []string{"IRIS_2D", "EYEBALL_3D"}},
	}
	for name, e := range enums {
		if e.value == nil {
			continue
		}
		ok := false
		for _, v := range e.valid {
			if *e.value == v {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s must be one of %v, got %q", name, e.valid, *e.value)
		}
	}

	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getInt(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func getBool(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func getString(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

// GetKalmanTimeStep returns the predict step length in frames.
func (c *TuningConfig) GetKalmanTimeStep() float64 { return getFloat(c.KalmanTimeStep, 1.0) }

// GetProcessNoisePos returns the position process noise (σ² per step).
func (c *TuningConfig) GetProcessNoisePos() float64 { return getFloat(c.ProcessNoisePos, 1e-4) }

// GetProcessNoiseVel returns the velocity process noise (σ² per step).
func (c *TuningConfig) GetProcessNoiseVel() float64 { return getFloat(c.ProcessNoiseVel, 1e-4) }

// GetMeasurementNoise returns the measurement noise (σ²).
func (c *TuningConfig) GetMeasurementNoise() float64 { return getFloat(c.MeasurementNoise, 1e-2) }

// GetInitialCovariance returns the diagonal of the initial covariance.
func (c *TuningConfig) GetInitialCovariance() float64 { return getFloat(c.InitialCovariance, 1.0) }

// GetVelocityAlpha returns the EWMA weight of the newest displacement.
func (c *TuningConfig) GetVelocityAlpha() float64 { return getFloat(c.VelocityAlpha, 0.3) }

// GetDwellVelocity returns the velocity (raw units per frame) below which
// the gaze is considered fixating.
func (c *TuningConfig) GetDwellVelocity() float64 { return getFloat(c.DwellVelocity, 0.005) }

// GetSaccadeVelocity returns the velocity above which the gaze is
// considered to be in a saccade.
func (c *TuningConfig) GetSaccadeVelocity() float64 { return getFloat(c.SaccadeVelocity, 0.05) }

// GetMinNoiseMultiplier returns the multiplier used while fixating.
func (c *TuningConfig) GetMinNoiseMultiplier() float64 { return getFloat(c.MinNoiseMultiplier, 0.3) }

// GetMaxNoiseMultiplier returns the multiplier used during saccades.
func (c *TuningConfig) GetMaxNoiseMultiplier() float64 { return getFloat(c.MaxNoiseMultiplier, 3.0) }

// GetLerpFactor returns the SIMPLE_LERP interpolation factor.
func (c *TuningConfig) GetLerpFactor() float64 { return getFloat(c.LerpFactor, 0.3) }

// GetCombinedWeight returns the weight of the adaptive output in COMBINED mode.
func (c *TuningConfig) GetCombinedWeight() float64 { return getFloat(c.CombinedWeight, 0.5) }

// GetCalibrationMode returns the calibration mode name.
func (c *TuningConfig) GetCalibrationMode() string { return getString(c.CalibrationMode, "AFFINE") }

// GetCalibrationMarginPercent returns the target grid margin in percent.
func (c *TuningConfig) GetCalibrationMarginPercent() float64 {
	return getFloat(c.CalibrationMarginPercent, 10)
}

// GetMaxSamplesPerPoint returns the per-target sample cap.
func (c *TuningConfig) GetMaxSamplesPerPoint() int { return getInt(c.MaxSamplesPerPoint, 120) }

// GetMinSamplesPerPoint returns the minimum accepted samples per target.
func (c *TuningConfig) GetMinSamplesPerPoint() int { return getInt(c.MinSamplesPerPoint, 5) }

// GetIQRMultiplier returns the Tukey fence multiplier for outlier rejection.
func (c *TuningConfig) GetIQRMultiplier() float64 { return getFloat(c.IQRMultiplier, 1.5) }

// GetSingularityEpsilon returns the relative pivot threshold of the solver.
func (c *TuningConfig) GetSingularityEpsilon() float64 { return getFloat(c.SingularityEpsilon, 1e-10) }

// GetMaxHeadAngle returns the head pose clamp in degrees.
func (c *TuningConfig) GetMaxHeadAngle() float64 { return getFloat(c.MaxHeadAngle, 60) }

// GetPitchNeutralRatio returns the nose position between eye line and mouth
// line that corresponds to zero pitch.
func (c *TuningConfig) GetPitchNeutralRatio() float64 { return getFloat(c.PitchNeutralRatio, 0.45) }

// GetYawGain returns the gaze shift per degree of head yaw.
func (c *TuningConfig) GetYawGain() float64 { return getFloat(c.YawGain, 0.015) }

// GetPitchGain returns the gaze shift per degree of head pitch.
func (c *TuningConfig) GetPitchGain() float64 { return getFloat(c.PitchGain, 0.015) }

// GetMaxCompensation returns the cap on head pose correction per axis.
func (c *TuningConfig) GetMaxCompensation() float64 { return getFloat(c.MaxCompensation, 0.5) }

// GetCompensateRoll returns whether gaze is de-rotated by head roll.
func (c *TuningConfig) GetCompensateRoll() bool { return getBool(c.CompensateRoll, true) }

// GetBlinkEARThreshold returns the eye aspect ratio below which an eye is closed.
func (c *TuningConfig) GetBlinkEARThreshold() float64 { return getFloat(c.BlinkEARThreshold, 0.2) }

// GetBlinkSoftness returns the logistic width of the blink confidence curve.
func (c *TuningConfig) GetBlinkSoftness() float64 { return getFloat(c.BlinkSoftness, 0.02) }

// GetBlinkConfidenceCutoff returns the confidence at or above which an eye
// is treated as closed.
func (c *TuningConfig) GetBlinkConfidenceCutoff() float64 {
	return getFloat(c.BlinkConfidenceCutoff, 0.5)
}

// GetEyeballRadiusRatio returns the eyeball radius as a fraction of eye width.
func (c *TuningConfig) GetEyeballRadiusRatio() float64 { return getFloat(c.EyeballRadiusRatio, 0.5) }

// GetMaxEyeAngle returns the eye rotation (degrees) mapped to ±1 in EYEBALL_3D.
func (c *TuningConfig) GetMaxEyeAngle() float64 { return getFloat(c.MaxEyeAngle, 35) }

// GetSmoothingMode returns the default smoothing mode name.
func (c *TuningConfig) GetSmoothingMode() string { return getString(c.SmoothingMode, "ADAPTIVE_KALMAN") }

// GetEyeSelection returns the default eye selection name.
func (c *TuningConfig) GetEyeSelection() string { return getString(c.EyeSelection, "BOTH_EYES") }

// GetTrackingMethod returns the default tracking method name.
func (c *TuningConfig) GetTrackingMethod() string { return getString(c.TrackingMethod, "IRIS_2D") }

// GetSensitivityX returns the default horizontal sensitivity.
func (c *TuningConfig) GetSensitivityX() float64 { return getFloat(c.SensitivityX, 1.0) }

// GetSensitivityY returns the default vertical sensitivity.
func (c *TuningConfig) GetSensitivityY() float64 { return getFloat(c.SensitivityY, 1.0) }

// GetOffsetX returns the default horizontal offset.
func (c *TuningConfig) GetOffsetX() float64 { return getFloat(c.OffsetX, 0) }

// GetOffsetY returns the default vertical offset.
func (c *TuningConfig) GetOffsetY() float64 { return getFloat(c.OffsetY, 0) }

// GetHoldOnNoFace returns whether the last smoothed point is reported while
// no face is visible.
func (c *TuningConfig) GetHoldOnNoFace() bool { return getBool(c.HoldOnNoFace, true) }
