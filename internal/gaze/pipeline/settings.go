package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/gazepoint/internal/config"
	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/geometry"
)

// Default screen size used until the host reports its own.
const (
	DefaultScreenWidth  = 1920
	DefaultScreenHeight = 1080
)

// ErrInvalidSetting is returned by setters given an out-of-range value.
var ErrInvalidSetting = errors.New("invalid setting")

// SettingsSnapshot is an immutable copy of the run-time settings.
type SettingsSnapshot struct {
	SmoothingMode   gaze.SmoothingMode   `json:"smoothing_mode"`
	EyeSelection    gaze.EyeSelection    `json:"eye_selection"`
	TrackingMethod  gaze.TrackingMethod  `json:"tracking_method"`
	SensitivityX    float64              `json:"sensitivity_x"`
	SensitivityY    float64              `json:"sensitivity_y"`
	OffsetX         float64              `json:"offset_x"`
	OffsetY         float64              `json:"offset_y"`
	HoldOnNoFace    bool                 `json:"hold_on_no_face"`
	CalibrationMode gaze.CalibrationMode `json:"calibration_mode"`
	ScreenWidth     int                  `json:"screen_width"`
	ScreenHeight    int                  `json:"screen_height"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() SettingsSnapshot {
	return SettingsFromTuning(config.EmptyTuningConfig())
}

// SettingsFromTuning builds the initial settings from a loaded
// TuningConfig. Names rejected by the parsers fall back to the defaults;
// TuningConfig.Validate reports them at load time.
func SettingsFromTuning(cfg *config.TuningConfig) SettingsSnapshot {
	s := SettingsSnapshot{
		SmoothingMode:   gaze.SmoothingAdaptiveKalman,
		EyeSelection:    gaze.BothEyes,
		TrackingMethod:  gaze.TrackingIris2D,
		SensitivityX:    cfg.GetSensitivityX(),
		SensitivityY:    cfg.GetSensitivityY(),
		OffsetX:         cfg.GetOffsetX(),
		OffsetY:         cfg.GetOffsetY(),
		HoldOnNoFace:    cfg.GetHoldOnNoFace(),
		CalibrationMode: gaze.CalibrationAffine,
		ScreenWidth:     DefaultScreenWidth,
		ScreenHeight:    DefaultScreenHeight,
	}
	if m, err := gaze.ParseSmoothingMode(cfg.GetSmoothingMode()); err == nil {
		s.SmoothingMode = m
	}
	if e, err := gaze.ParseEyeSelection(cfg.GetEyeSelection()); err == nil {
		s.EyeSelection = e
	}
	if t, err := gaze.ParseTrackingMethod(cfg.GetTrackingMethod()); err == nil {
		s.TrackingMethod = t
	}
	if m, err := gaze.ParseCalibrationMode(cfg.GetCalibrationMode()); err == nil {
		s.CalibrationMode = m
	}
	return s
}

// Validate checks every field against its allowed range.
func (s SettingsSnapshot) Validate() error {
	if _, ok := smoothingModes[s.SmoothingMode]; !ok {
		return fmt.Errorf("%w: smoothing mode %v", ErrInvalidSetting, s.SmoothingMode)
	}
	if err := validateEyeSelection(s.EyeSelection); err != nil {
		return err
	}
	if err := validateTrackingMethod(s.TrackingMethod); err != nil {
		return err
	}
	if err := validateSensitivity(s.SensitivityX, s.SensitivityY); err != nil {
		return err
	}
	if err := validateOffset(s.OffsetX, s.OffsetY); err != nil {
		return err
	}
	if s.CalibrationMode.Coefficients() == 0 {
		return fmt.Errorf("%w: calibration mode %v", ErrInvalidSetting, s.CalibrationMode)
	}
	if s.ScreenWidth <= 0 || s.ScreenHeight <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalidSetting, s.ScreenWidth, s.ScreenHeight)
	}
	return nil
}

// Adjust returns the per-eye sensitivity and offset.
func (s SettingsSnapshot) Adjust() geometry.Adjust {
	return geometry.Adjust{
		SensitivityX: s.SensitivityX,
		SensitivityY: s.SensitivityY,
		OffsetX:      s.OffsetX,
		OffsetY:      s.OffsetY,
	}
}

func (s SettingsSnapshot) geometry() geometry.Settings {
	return geometry.Settings{
		EyeSelection:   s.EyeSelection,
		TrackingMethod: s.TrackingMethod,
		Adjust:         s.Adjust(),
	}
}

var smoothingModes = map[gaze.SmoothingMode]struct{}{
	gaze.SmoothingNone:           {},
	gaze.SmoothingSimpleLerp:     {},
	gaze.SmoothingKalman:         {},
	gaze.SmoothingAdaptiveKalman: {},
	gaze.SmoothingCombined:       {},
}

func validateEyeSelection(e gaze.EyeSelection) error {
	switch e {
	case gaze.LeftEyeOnly, gaze.RightEyeOnly, gaze.BothEyes:
		return nil
	}
	return fmt.Errorf("%w: eye selection %v", ErrInvalidSetting, e)
}

func validateTrackingMethod(t gaze.TrackingMethod) error {
	switch t {
	case gaze.TrackingIris2D, gaze.TrackingEyeball3D:
		return nil
	}
	return fmt.Errorf("%w: tracking method %v", ErrInvalidSetting, t)
}

func validateSensitivity(x, y float64) error {
	if !(x > 0) || !(y > 0) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("%w: sensitivity must be positive and finite, got (%v, %v)", ErrInvalidSetting, x, y)
	}
	return nil
}

func validateOffset(x, y float64) error {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("%w: offset must be finite, got (%v, %v)", ErrInvalidSetting, x, y)
	}
	return nil
}

// Settings holds the mutable run-time configuration. It is safe for
// concurrent use; the tracker reads it once per frame through Snapshot.
type Settings struct {
	mu sync.RWMutex
	s  SettingsSnapshot
}

// NewSettings returns settings initialised to s.
func NewSettings(s SettingsSnapshot) (*Settings, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Settings{s: s}, nil
}

// Snapshot returns a consistent copy of every field.
func (st *Settings) Snapshot() SettingsSnapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

// Replace swaps in a complete set of values after validating them.
func (st *Settings) Replace(s SettingsSnapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.mu.Lock()
	st.s = s
	st.mu.Unlock()
	return nil
}

// Update applies fn to a copy of the settings and installs the result if fn
// succeeds and it validates. The lock is held throughout, so no setter can
// interleave between the read and the write.
func (st *Settings) Update(fn func(s *SettingsSnapshot) error) (SettingsSnapshot, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	next := st.s
	if err := fn(&next); err != nil {
		return st.s, err
	}
	if err := next.Validate(); err != nil {
		return st.s, err
	}
	st.s = next
	return next, nil
}

func (st *Settings) update(fn func(s *SettingsSnapshot)) {
	st.mu.Lock()
	fn(&st.s)
	st.mu.Unlock()
}

// SetSmoothingMode selects the smoothing filter for subsequent frames.
func (st *Settings) SetSmoothingMode(m gaze.SmoothingMode) error {
	if _, ok := smoothingModes[m]; !ok {
		return fmt.Errorf("%w: smoothing mode %v", ErrInvalidSetting, m)
	}
	st.update(func(s *SettingsSnapshot) { s.SmoothingMode = m })
	return nil
}

// SetEyeSelection selects which eyes contribute to the gaze.
func (st *Settings) SetEyeSelection(e gaze.EyeSelection) error {
	if err := validateEyeSelection(e); err != nil {
		return err
	}
	st.update(func(s *SettingsSnapshot) { s.EyeSelection = e })
	return nil
}

// SetTrackingMethod selects the per-eye gaze model.
func (st *Settings) SetTrackingMethod(t gaze.TrackingMethod) error {
	if err := validateTrackingMethod(t); err != nil {
		return err
	}
	st.update(func(s *SettingsSnapshot) { s.TrackingMethod = t })
	return nil
}

// SetSensitivity sets both sensitivities. Each must be positive.
func (st *Settings) SetSensitivity(x, y float64) error {
	if err := validateSensitivity(x, y); err != nil {
		return err
	}
	st.update(func(s *SettingsSnapshot) { s.SensitivityX, s.SensitivityY = x, y })
	return nil
}

// SetOffset sets both gaze offsets.
func (st *Settings) SetOffset(x, y float64) error {
	if err := validateOffset(x, y); err != nil {
		return err
	}
	st.update(func(s *SettingsSnapshot) { s.OffsetX, s.OffsetY = x, y })
	return nil
}

// SetHoldOnNoFace chooses whether frames without a usable gaze repeat the
// last estimate.
func (st *Settings) SetHoldOnNoFace(hold bool) {
	st.update(func(s *SettingsSnapshot) { s.HoldOnNoFace = hold })
}

// SetCalibrationMode selects the transform family for the next
// calibration.
func (st *Settings) SetCalibrationMode(m gaze.CalibrationMode) error {
	if m.Coefficients() == 0 {
		return fmt.Errorf("%w: calibration mode %v", ErrInvalidSetting, m)
	}
	st.update(func(s *SettingsSnapshot) { s.CalibrationMode = m })
	return nil
}

// SetScreenSize sets the screen used for calibration targets.
func (st *Settings) SetScreenSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrInvalidSetting, width, height)
	}
	st.update(func(s *SettingsSnapshot) { s.ScreenWidth, s.ScreenHeight = width, height })
	return nil
}
