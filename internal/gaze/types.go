package gaze

import (
	"fmt"
	"math"
	"time"
)

// MinLandmarkCount is the number of landmarks a face mesh with refined
// iris points produces (468 mesh points + 2×5 iris points).
const MinLandmarkCount = 478

// LandmarkPoint is a single landmark in the detector's normalised frame.
// X and Y are nominally in [0, 1]; Z is relative depth on the same scale as X.
type LandmarkPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarkResult is one successful detection. A nil *FaceLandmarkResult
// means no face was found in the frame.
type FaceLandmarkResult struct {
	Landmarks   []LandmarkPoint `json:"landmarks"`
	FrameWidth  int             `json:"frame_width"`
	FrameHeight int             `json:"frame_height"`
	Timestamp   time.Time       `json:"timestamp"`
}

// Validate checks that the result carries a full mesh including iris points.
func (r *FaceLandmarkResult) Validate() error {
	if r == nil {
		return ErrNoFaceDetected
	}
	if len(r.Landmarks) < MinLandmarkCount {
		return fmt.Errorf("landmark count %d below required %d", len(r.Landmarks), MinLandmarkCount)
	}
	if r.FrameWidth < 0 || r.FrameHeight < 0 {
		return fmt.Errorf("negative frame size %dx%d", r.FrameWidth, r.FrameHeight)
	}
	return nil
}

// Vec2 is a 2D vector used for gaze points and offsets.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

// Scale returns v scaled by s.
func (v Vec2) Scale(s float64) Vec2 { return Vec2{X: v.X * s, Y: v.Y * s} }

// Lerp moves v toward target by fraction t.
func (v Vec2) Lerp(target Vec2, t float64) Vec2 {
	return Vec2{X: v.X + (target.X-v.X)*t, Y: v.Y + (target.Y-v.Y)*t}
}

// Dist returns the Euclidean distance between v and o.
func (v Vec2) Dist(o Vec2) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// HeadPose holds head rotation angles in degrees.
// Positive yaw turns toward the image right, positive pitch tilts down,
// positive roll rotates clockwise in image space.
type HeadPose struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
	Roll  float64 `json:"roll"`
}

// GazeResult is produced once per processed frame. GazeX/GazeY are raw,
// pre-calibration units.
type GazeResult struct {
	GazeX                float64       `json:"gaze_x"`
	GazeY                float64       `json:"gaze_y"`
	LeftIrisCenter       LandmarkPoint `json:"left_iris_center"`
	RightIrisCenter      LandmarkPoint `json:"right_iris_center"`
	LeftBlinkConfidence  float64       `json:"left_blink_confidence"`
	RightBlinkConfidence float64       `json:"right_blink_confidence"`
	HeadYaw              float64       `json:"head_yaw"`
	HeadPitch            float64       `json:"head_pitch"`
	HeadRoll             float64       `json:"head_roll"`
	Timestamp            time.Time     `json:"timestamp"`
}

// Gaze returns the raw gaze as a vector.
func (g GazeResult) Gaze() Vec2 { return Vec2{X: g.GazeX, Y: g.GazeY} }

// HeadPose returns the head angles carried by the result.
func (g GazeResult) HeadPose() HeadPose {
	return HeadPose{Yaw: g.HeadYaw, Pitch: g.HeadPitch, Roll: g.HeadRoll}
}

// CalibrationSample is one raw gaze reading collected while the user
// fixates calibration target PointIndex.
type CalibrationSample struct {
	PointIndex int     `json:"point_index"`
	RawGazeX   float64 `json:"raw_gaze_x"`
	RawGazeY   float64 `json:"raw_gaze_y"`
}

// CalibrationData is a fitted raw-gaze to screen transform.
type CalibrationData struct {
	TransformX       []float64       `json:"transform_x"`
	TransformY       []float64       `json:"transform_y"`
	ScreenWidth      int             `json:"screen_width"`
	ScreenHeight     int             `json:"screen_height"`
	CalibrationError float64         `json:"calibration_error"`
	Mode             CalibrationMode `json:"mode"`
}

// Validate enforces the coefficient-count invariant for the stated mode and
// rejects non-finite values.
func (d CalibrationData) Validate() error {
	want := d.Mode.Coefficients()
	if want == 0 {
		return fmt.Errorf("%w: unknown mode %d", ErrCorruptRecord, d.Mode)
	}
	if len(d.TransformX) != want || len(d.TransformY) != want {
		return fmt.Errorf("%w: %s expects %d coefficients per axis, got %d/%d",
			ErrCorruptRecord, d.Mode, want, len(d.TransformX), len(d.TransformY))
	}
	for i := 0; i < want; i++ {
		if !isFinite(d.TransformX[i]) || !isFinite(d.TransformY[i]) {
			return fmt.Errorf("%w: non-finite coefficient at %d", ErrCorruptRecord, i)
		}
	}
	if d.ScreenWidth <= 0 || d.ScreenHeight <= 0 {
		return fmt.Errorf("%w: screen size %dx%d", ErrCorruptRecord, d.ScreenWidth, d.ScreenHeight)
	}
	if !isFinite(d.CalibrationError) || d.CalibrationError < 0 {
		return fmt.Errorf("%w: calibration error %v", ErrCorruptRecord, d.CalibrationError)
	}
	return nil
}

// Apply maps a raw gaze point to screen coordinates. The data must be valid.
func (d CalibrationData) Apply(rawX, rawY float64) (float64, float64) {
	basis := d.Mode.Basis(rawX, rawY)
	var x, y float64
	for i, b := range basis {
		x += d.TransformX[i] * b
		y += d.TransformY[i] * b
	}
	return x, y
}

// Clone returns a deep copy so callers cannot alias coefficient slices.
func (d CalibrationData) Clone() CalibrationData {
	out := d
	out.TransformX = append([]float64(nil), d.TransformX...)
	out.TransformY = append([]float64(nil), d.TransformY...)
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
