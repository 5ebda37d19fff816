package calibration

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// Persisted field names. Storage backends key records by mode name plus one
// of these.
const (
	FieldTransformX       = "transformX"
	FieldTransformY       = "transformY"
	FieldScreenWidth      = "screenWidth"
	FieldScreenHeight     = "screenHeight"
	FieldCalibrationError = "calibrationError"
	FieldMode             = "mode"
)

// Fields lists every persisted field in write order.
var Fields = []string{
	FieldTransformX,
	FieldTransformY,
	FieldScreenWidth,
	FieldScreenHeight,
	FieldCalibrationError,
	FieldMode,
}

// Key returns the flat storage key of field for mode, for example
// "calibration.AFFINE.transformX".
func Key(mode gaze.CalibrationMode, field string) string {
	return "calibration." + mode.String() + "." + field
}

// Record is the text form of CalibrationData. Numbers use strconv's
// shortest round-trip formatting, so records are locale independent and
// decode to identical float64 values.
type Record struct {
	TransformX       string
	TransformY       string
	ScreenWidth      string
	ScreenHeight     string
	CalibrationError string
	Mode             string
}

// Map returns the record keyed by field name.
func (r Record) Map() map[string]string {
	return map[string]string{
		FieldTransformX:       r.TransformX,
		FieldTransformY:       r.TransformY,
		FieldScreenWidth:      r.ScreenWidth,
		FieldScreenHeight:     r.ScreenHeight,
		FieldCalibrationError: r.CalibrationError,
		FieldMode:             r.Mode,
	}
}

// RecordFromMap rebuilds a record from field values. A missing field fails
// with ErrCorruptRecord.
func RecordFromMap(m map[string]string) (Record, error) {
	for _, f := range Fields {
		if _, ok := m[f]; !ok {
			return Record{}, fmt.Errorf("%w: missing field %s", gaze.ErrCorruptRecord, f)
		}
	}
	return Record{
		TransformX:       m[FieldTransformX],
		TransformY:       m[FieldTransformY],
		ScreenWidth:      m[FieldScreenWidth],
		ScreenHeight:     m[FieldScreenHeight],
		CalibrationError: m[FieldCalibrationError],
		Mode:             m[FieldMode],
	}, nil
}

// Encode converts valid data to its record form.
func Encode(d gaze.CalibrationData) (Record, error) {
	if err := d.Validate(); err != nil {
		return Record{}, err
	}
	return Record{
		TransformX:       formatCoefficients(d.TransformX),
		TransformY:       formatCoefficients(d.TransformY),
		ScreenWidth:      strconv.Itoa(d.ScreenWidth),
		ScreenHeight:     strconv.Itoa(d.ScreenHeight),
		CalibrationError: strconv.FormatFloat(d.CalibrationError, 'g', -1, 64),
		Mode:             d.Mode.String(),
	}, nil
}

// Decode parses a record. Any missing, malformed or inconsistent field
// fails the whole record with ErrCorruptRecord.
func Decode(r Record) (gaze.CalibrationData, error) {
	mode, err := gaze.ParseCalibrationMode(r.Mode)
	if err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptRecord, FieldMode, err)
	}
	tx, err := parseCoefficients(FieldTransformX, r.TransformX)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	ty, err := parseCoefficients(FieldTransformY, r.TransformY)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	width, err := parseInt(FieldScreenWidth, r.ScreenWidth)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	height, err := parseInt(FieldScreenHeight, r.ScreenHeight)
	if err != nil {
		return gaze.CalibrationData{}, err
	}
	calErr, err := strconv.ParseFloat(r.CalibrationError, 64)
	if err != nil {
		return gaze.CalibrationData{}, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptRecord, FieldCalibrationError, err)
	}

	d := gaze.CalibrationData{
		TransformX:       tx,
		TransformY:       ty,
		ScreenWidth:      width,
		ScreenHeight:     height,
		CalibrationError: calErr,
		Mode:             mode,
	}
	if err := d.Validate(); err != nil {
		return gaze.CalibrationData{}, err
	}
	return d, nil
}

func formatCoefficients(c []float64) string {
	parts := make([]string, len(c))
	for i, v := range c {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func parseCoefficients(field, s string) ([]float64, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s: empty", gaze.ErrCorruptRecord, field)
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d]: %v", gaze.ErrCorruptRecord, field, i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseInt(field, s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", gaze.ErrCorruptRecord, field, err)
	}
	return v, nil
}
