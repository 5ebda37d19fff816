package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// resolved flattens every getter so that configs can be compared by their
// effective values rather than by which pointers are set.
func resolved(c *TuningConfig) map[string]any {
	return map[string]any{
		"kalman_time_step":           c.GetKalmanTimeStep(),
		"process_noise_pos":          c.GetProcessNoisePos(),
		"process_noise_vel":          c.GetProcessNoiseVel(),
		"measurement_noise":          c.GetMeasurementNoise(),
		"initial_covariance":         c.GetInitialCovariance(),
		"velocity_alpha":             c.GetVelocityAlpha(),
		"dwell_velocity":             c.GetDwellVelocity(),
		"saccade_velocity":           c.GetSaccadeVelocity(),
		"min_noise_multiplier":       c.GetMinNoiseMultiplier(),
		"max_noise_multiplier":       c.GetMaxNoiseMultiplier(),
		"lerp_factor":                c.GetLerpFactor(),
		"combined_weight":            c.GetCombinedWeight(),
		"calibration_mode":           c.GetCalibrationMode(),
		"calibration_margin_percent": c.GetCalibrationMarginPercent(),
		"max_samples_per_point":      c.GetMaxSamplesPerPoint(),
		"min_samples_per_point":      c.GetMinSamplesPerPoint(),
		"iqr_multiplier":             c.GetIQRMultiplier(),
		"singularity_epsilon":        c.GetSingularityEpsilon(),
		"max_head_angle":             c.GetMaxHeadAngle(),
		"pitch_neutral_ratio":        c.GetPitchNeutralRatio(),
		"yaw_gain":                   c.GetYawGain(),
		"pitch_gain":                 c.GetPitchGain(),
		"max_compensation":           c.GetMaxCompensation(),
		"compensate_roll":            c.GetCompensateRoll(),
		"blink_ear_threshold":        c.GetBlinkEARThreshold(),
		"blink_softness":             c.GetBlinkSoftness(),
		"blink_confidence_cutoff":    c.GetBlinkConfidenceCutoff(),
		"eyeball_radius_ratio":       c.GetEyeballRadiusRatio(),
		"max_eye_angle":              c.GetMaxEyeAngle(),
		"smoothing_mode":             c.GetSmoothingMode(),
		"eye_selection":              c.GetEyeSelection(),
		"tracking_method":            c.GetTrackingMethod(),
		"sensitivity_x":              c.GetSensitivityX(),
		"sensitivity_y":              c.GetSensitivityY(),
		"offset_x":                   c.GetOffsetX(),
		"offset_y":                   c.GetOffsetY(),
		"hold_on_no_face":            c.GetHoldOnNoFace(),
	}
}

func TestDefaultsFileMatchesGetterFallbacks(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	if diff := cmp.Diff(resolved(EmptyTuningConfig()), resolved(fromFile)); diff != "" {
		t.Errorf("defaults file and getter fallbacks disagree (-fallback +file):\n%s", diff)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "measurement_noise": 0.05,
  "smoothing_mode": "KALMAN_FILTER",
  "min_samples_per_point": 8,
  "hold_on_no_face": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if got := cfg.GetMeasurementNoise(); got != 0.05 {
		t.Errorf("GetMeasurementNoise() = %f, want 0.05", got)
	}
	if got := cfg.GetSmoothingMode(); got != "KALMAN_FILTER" {
		t.Errorf("GetSmoothingMode() = %q, want KALMAN_FILTER", got)
	}
	if got := cfg.GetMinSamplesPerPoint(); got != 8 {
		t.Errorf("GetMinSamplesPerPoint() = %d, want 8", got)
	}
	if cfg.GetHoldOnNoFace() {
		t.Error("GetHoldOnNoFace() = true, want false")
	}
	// Unset fields keep their defaults.
	if got := cfg.GetIQRMultiplier(); got != 1.5 {
		t.Errorf("GetIQRMultiplier() = %f, want default 1.5", got)
	}
}

func TestLoadTuningConfigYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "tuning.yaml")

	testYAML := "process_noise_pos: 0.002\neye_selection: LEFT_EYE_ONLY\ncompensate_roll: false\n"
	if err := os.WriteFile(configPath, []byte(testYAML), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if got := cfg.GetProcessNoisePos(); got != 0.002 {
		t.Errorf("GetProcessNoisePos() = %f, want 0.002", got)
	}
	if got := cfg.GetEyeSelection(); got != "LEFT_EYE_ONLY" {
		t.Errorf("GetEyeSelection() = %q, want LEFT_EYE_ONLY", got)
	}
	if cfg.GetCompensateRoll() {
		t.Error("GetCompensateRoll() = true, want false")
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"wrong extension", "config.txt", "{}"},
		{"malformed json", "bad.json", "{not json"},
		{"negative noise", "neg.json", `{"measurement_noise": -1}`},
		{"alpha out of range", "alpha.json", `{"velocity_alpha": 1.5}`},
		{"inverted multipliers", "mult.json", `{"min_noise_multiplier": 4, "max_noise_multiplier": 2}`},
		{"inverted velocities", "vel.json", `{"dwell_velocity": 0.1, "saccade_velocity": 0.05}`},
		{"margin too large", "margin.json", `{"calibration_margin_percent": 50}`},
		{"cap below minimum", "cap.json", `{"max_samples_per_point": 2, "min_samples_per_point": 5}`},
		{"unknown mode", "mode.json", `{"calibration_mode": "CUBIC"}`},
		{"unknown smoothing", "smooth.json", `{"smoothing_mode": "FAST"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write test config: %v", err)
			}
			if _, err := LoadTuningConfig(path); err == nil {
				t.Errorf("LoadTuningConfig(%s) succeeded, want error", tt.file)
			}
		})
	}

	if _, err := LoadTuningConfig(filepath.Join(tmpDir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEmptyConfigValidates(t *testing.T) {
	if err := EmptyTuningConfig().Validate(); err != nil {
		t.Fatalf("empty config should validate: %v", err)
	}
}
