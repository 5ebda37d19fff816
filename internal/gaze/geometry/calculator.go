package geometry

import (
	"fmt"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// Settings are the per-frame user choices read by the calculator.
type Settings struct {
	EyeSelection   gaze.EyeSelection
	TrackingMethod gaze.TrackingMethod
	Adjust         Adjust
}

// EyeDetail is the per-eye intermediate result.
type EyeDetail struct {
	Gaze            gaze.Vec2 // After sensitivity, offset and head compensation
	BlinkConfidence float64
	AspectRatio     float64
	Valid           bool
}

// Detail exposes the intermediate values behind a GazeResult.
type Detail struct {
	Left, Right EyeDetail
	HeadPose    gaze.HeadPose
	// Valid is false when no selected eye produced a usable gaze.
	Valid bool
}

// Calculator computes raw gaze from landmark frames.
type Calculator struct {
	cfg Config
}

// NewCalculator returns a calculator for cfg.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Compute runs the per-frame geometry. It fails for frames that do not
// carry a full landmark set and for an unknown tracking method; closed or
// occluded eyes are reported through Detail.Valid.
func (c *Calculator) Compute(frame *gaze.FaceLandmarkResult, s Settings) (gaze.GazeResult, Detail, error) {
	if err := frame.Validate(); err != nil {
		return gaze.GazeResult{}, Detail{}, fmt.Errorf("compute gaze: %w", err)
	}

	switch s.TrackingMethod {
	case gaze.TrackingIris2D, gaze.TrackingEyeball3D:
	default:
		return gaze.GazeResult{}, Detail{}, fmt.Errorf("compute gaze: unsupported tracking method %v", s.TrackingMethod)
	}

	points := ScaleLandmarks(frame)
	pose := c.cfg.EstimateHeadPose(points)

	left := c.eye(ExtractEye(points, gaze.LeftEye), pose, s)
	right := c.eye(ExtractEye(points, gaze.RightEye), pose, s)
	fused, ok := CombineGaze(left.Gaze, left.Valid, right.Gaze, right.Valid, s.EyeSelection)

	result := gaze.GazeResult{
		GazeX:                fused.X,
		GazeY:                fused.Y,
		LeftIrisCenter:       frame.Landmarks[gaze.LeftIrisCenter],
		RightIrisCenter:      frame.Landmarks[gaze.RightIrisCenter],
		LeftBlinkConfidence:  left.BlinkConfidence,
		RightBlinkConfidence: right.BlinkConfidence,
		HeadYaw:              pose.Yaw,
		HeadPitch:            pose.Pitch,
		HeadRoll:             pose.Roll,
		Timestamp:            frame.Timestamp,
	}
	return result, Detail{Left: left, Right: right, HeadPose: pose, Valid: ok}, nil
}

func (c *Calculator) eye(e EyeLandmarks, pose gaze.HeadPose, s Settings) EyeDetail {
	var g gaze.Vec2
	switch s.TrackingMethod {
	case gaze.TrackingIris2D:
		g = CalculateIrisPosition(e, e.Iris, s.Adjust)
	case gaze.TrackingEyeball3D:
		g = c.cfg.EyeballGaze(e, e.Iris, s.Adjust)
	}
	blink := c.cfg.DetectBlink(e)
	return EyeDetail{
		Gaze:            c.cfg.ApplyHeadPoseCompensation(g, pose),
		BlinkConfidence: blink,
		AspectRatio:     EyeAspectRatio(e),
		Valid:           blink < c.cfg.BlinkConfidenceCutoff,
	}
}
