package geometry

import (
	"github.com/banshee-data/gazepoint/internal/config"
)

// Config holds the geometry constants. Angles are in degrees.
type Config struct {
	MaxHeadAngle      float64 // Head pose clamp (±)
	PitchNeutralRatio float64 // Nose position between eye and mouth lines at zero pitch

	YawGain         float64 // Gaze units added per degree of yaw
	PitchGain       float64 // Gaze units added per degree of pitch
	MaxCompensation float64 // Per-axis cap on the added offset
	CompensateRoll  bool

	BlinkEARThreshold     float64 // EAR at which confidence crosses 0.5
	BlinkSoftness         float64 // Logistic width around the threshold
	BlinkConfidenceCutoff float64 // Eyes at or above this are invalid

	EyeballRadiusRatio float64 // Eyeball radius as a fraction of eye width
	MaxEyeAngle        float64 // Eye rotation mapped to ±1
}

// DefaultConfig returns the built-in tuning defaults.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	return Config{
		MaxHeadAngle:          cfg.GetMaxHeadAngle(),
		PitchNeutralRatio:     cfg.GetPitchNeutralRatio(),
		YawGain:               cfg.GetYawGain(),
		PitchGain:             cfg.GetPitchGain(),
		MaxCompensation:       cfg.GetMaxCompensation(),
		CompensateRoll:        cfg.GetCompensateRoll(),
		BlinkEARThreshold:     cfg.GetBlinkEARThreshold(),
		BlinkSoftness:         cfg.GetBlinkSoftness(),
		BlinkConfidenceCutoff: cfg.GetBlinkConfidenceCutoff(),
		EyeballRadiusRatio:    cfg.GetEyeballRadiusRatio(),
		MaxEyeAngle:           cfg.GetMaxEyeAngle(),
	}
}
