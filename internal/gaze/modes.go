package gaze

import (
	"fmt"
	"strings"
)

// SmoothingMode selects the filter applied to the fused raw gaze.
type SmoothingMode int

const (
	SmoothingNone SmoothingMode = iota
	SmoothingSimpleLerp
	SmoothingKalman
	SmoothingAdaptiveKalman
	SmoothingCombined
)

var smoothingModeNames = map[SmoothingMode]string{
	SmoothingNone:           "NONE",
	SmoothingSimpleLerp:     "SIMPLE_LERP",
	SmoothingKalman:         "KALMAN_FILTER",
	SmoothingAdaptiveKalman: "ADAPTIVE_KALMAN",
	SmoothingCombined:       "COMBINED",
}

func (m SmoothingMode) String() string {
	if s, ok := smoothingModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("SmoothingMode(%d)", int(m))
}

// ParseSmoothingMode parses an enumeration name such as "ADAPTIVE_KALMAN".
func ParseSmoothingMode(s string) (SmoothingMode, error) {
	for m, name := range smoothingModeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown smoothing mode %q", s)
}

// EyeSelection selects which eyes contribute to the fused gaze.
type EyeSelection int

const (
	LeftEyeOnly EyeSelection = iota
	RightEyeOnly
	BothEyes
)

var eyeSelectionNames = map[EyeSelection]string{
	LeftEyeOnly:  "LEFT_EYE_ONLY",
	RightEyeOnly: "RIGHT_EYE_ONLY",
	BothEyes:     "BOTH_EYES",
}

func (e EyeSelection) String() string {
	if s, ok := eyeSelectionNames[e]; ok {
		return s
	}
	return fmt.Sprintf("EyeSelection(%d)", int(e))
}

// ParseEyeSelection parses an enumeration name such as "BOTH_EYES".
func ParseEyeSelection(s string) (EyeSelection, error) {
	for e, name := range eyeSelectionNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown eye selection %q", s)
}

// TrackingMethod selects the per-eye gaze model.
type TrackingMethod int

const (
	// TrackingIris2D normalises the iris centre inside the eye bounding box.
	TrackingIris2D TrackingMethod = iota
	// TrackingEyeball3D models the eyeball as a sphere behind the eye corners.
	TrackingEyeball3D
)

var trackingMethodNames = map[TrackingMethod]string{
	TrackingIris2D:    "IRIS_2D",
	TrackingEyeball3D: "EYEBALL_3D",
}

func (t TrackingMethod) String() string {
	if s, ok := trackingMethodNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TrackingMethod(%d)", int(t))
}

// ParseTrackingMethod parses an enumeration name such as "IRIS_2D".
func ParseTrackingMethod(s string) (TrackingMethod, error) {
	for t, name := range trackingMethodNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tracking method %q", s)
}

// CalibrationMode selects the transform family fitted during calibration.
type CalibrationMode int

const (
	CalibrationAffine CalibrationMode = iota
	CalibrationPolynomial
)

func (m CalibrationMode) String() string {
	switch m {
	case CalibrationAffine:
		return "AFFINE"
	case CalibrationPolynomial:
		return "POLYNOMIAL"
	}
	return fmt.Sprintf("CalibrationMode(%d)", int(m))
}

// ParseCalibrationMode parses the literal enumeration name. Matching is
// exact: persisted records must carry "AFFINE" or "POLYNOMIAL".
func ParseCalibrationMode(s string) (CalibrationMode, error) {
	switch s {
	case "AFFINE":
		return CalibrationAffine, nil
	case "POLYNOMIAL":
		return CalibrationPolynomial, nil
	}
	return 0, fmt.Errorf("unknown calibration mode %q", s)
}

// Coefficients returns the number of transform coefficients per axis, or 0
// for an unknown mode.
func (m CalibrationMode) Coefficients() int {
	switch m {
	case CalibrationAffine:
		return 3
	case CalibrationPolynomial:
		return 6
	}
	return 0
}

// Basis evaluates the basis terms of the mode at (x, y):
// affine 1, x, y; polynomial adds x², y², xy.
func (m CalibrationMode) Basis(x, y float64) []float64 {
	switch m {
	case CalibrationAffine:
		return []float64{1, x, y}
	case CalibrationPolynomial:
		return []float64{1, x, y, x * x, y * y, x * y}
	}
	return nil
}

// MarshalText encodes the mode by name.
func (m CalibrationMode) MarshalText() ([]byte, error) {
	if m.Coefficients() == 0 {
		return nil, fmt.Errorf("unknown calibration mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *CalibrationMode) UnmarshalText(b []byte) error {
	v, err := ParseCalibrationMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m SmoothingMode) MarshalText() ([]byte, error) {
	if _, ok := smoothingModeNames[m]; !ok {
		return nil, fmt.Errorf("unknown smoothing mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *SmoothingMode) UnmarshalText(b []byte) error {
	v, err := ParseSmoothingMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (e EyeSelection) MarshalText() ([]byte, error) {
	if _, ok := eyeSelectionNames[e]; !ok {
		return nil, fmt.Errorf("unknown eye selection %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *EyeSelection) UnmarshalText(b []byte) error {
	v, err := ParseEyeSelection(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

func (t TrackingMethod) MarshalText() ([]byte, error) {
	if _, ok := trackingMethodNames[t]; !ok {
		return nil, fmt.Errorf("unknown tracking method %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TrackingMethod) UnmarshalText(b []byte) error {
	v, err := ParseTrackingMethod(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
