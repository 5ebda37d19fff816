package geometry

import (
	"math"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// Adjust holds the user's per-axis sensitivity and offset.
type Adjust struct {
	SensitivityX, SensitivityY float64
	OffsetX, OffsetY           float64
}

// Identity leaves gaze vectors unchanged.
var Identity = Adjust{SensitivityX: 1, SensitivityY: 1}

func (a Adjust) apply(v gaze.Vec2) gaze.Vec2 {
	return gaze.Vec2{X: v.X*a.SensitivityX + a.OffsetX, Y: v.Y*a.SensitivityY + a.OffsetY}
}

// CalculateIrisPosition normalises the iris centre to [-1, 1] per axis
// inside the bounding box of the eye contour, then applies adj. An axis
// with zero extent reads as centred.
func CalculateIrisPosition(eye EyeLandmarks, iris gaze.LandmarkPoint, adj Adjust) gaze.Vec2 {
	if len(eye.Contour) == 0 {
		return adj.apply(gaze.Vec2{})
	}
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range eye.Contour {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return adj.apply(gaze.Vec2{
		X: normalise(iris.X, minX, maxX),
		Y: normalise(iris.Y, minY, maxY),
	})
}

func normalise(v, lo, hi float64) float64 {
	if hi-lo <= 0 {
		return 0
	}
	return clamp(2*(v-lo)/(hi-lo)-1, -1, 1)
}

// EyeballGaze models the eye as a sphere whose centre sits behind the
// corner midpoint by EyeballRadiusRatio·eyeWidth. The ray from that centre
// through the iris gives horizontal and vertical rotation angles, which
// are normalised by MaxEyeAngle to [-1, 1] before adj is applied.
func (c Config) EyeballGaze(eye EyeLandmarks, iris gaze.LandmarkPoint, adj Adjust) gaze.Vec2 {
	width := eye.Width()
	if width <= 0 || c.MaxEyeAngle <= 0 {
		return adj.apply(gaze.Vec2{})
	}
	centre := midpoint(eye.Outer, eye.Inner)
	centre.Z += c.EyeballRadiusRatio * width

	dx := iris.X - centre.X
	dy := iris.Y - centre.Y
	depth := centre.Z - iris.Z
	if depth <= 0 {
		depth = math.SmallestNonzeroFloat64
	}
	yaw := degrees(math.Atan2(dx, depth))
	pitch := degrees(math.Atan2(dy, depth))
	return adj.apply(gaze.Vec2{
		X: clamp(yaw/c.MaxEyeAngle, -1, 1),
		Y: clamp(pitch/c.MaxEyeAngle, -1, 1),
	})
}

// EyeAspectRatio returns (|P2−P6| + |P3−P5|) / (2|P1−P4|), or 0 when the
// corners coincide.
func EyeAspectRatio(eye EyeLandmarks) float64 {
	horizontal := dist2(eye.P[0], eye.P[3])
	if horizontal <= 0 {
		return 0
	}
	return (dist2(eye.P[1], eye.P[5]) + dist2(eye.P[2], eye.P[4])) / (2 * horizontal)
}

// DetectBlink returns the closure confidence of an eye in [0, 1]. It is a
// logistic in the eye aspect ratio centred on BlinkEARThreshold, so it is
// at least 0.5 below the threshold and below 0.5 above it. A degenerate eye
// reads as closed.
func (c Config) DetectBlink(eye EyeLandmarks) float64 {
	if dist2(eye.P[0], eye.P[3]) <= 0 {
		return 1
	}
	ear := EyeAspectRatio(eye)
	s := c.BlinkSoftness
	if s <= 0 {
		if ear < c.BlinkEARThreshold {
			return 1
		}
		return 0
	}
	return 1 / (1 + math.Exp((ear-c.BlinkEARThreshold)/s))
}
