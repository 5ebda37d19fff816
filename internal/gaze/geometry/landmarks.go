package geometry

import (
	"math"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// ScaleLandmarks maps normalised landmarks into pixel-proportional space
// (x·W, y·H, z·W) so distances and angles are not distorted by the frame
// aspect ratio. Without a frame size the landmarks are copied unchanged.
func ScaleLandmarks(frame *gaze.FaceLandmarkResult) []gaze.LandmarkPoint {
	out := make([]gaze.LandmarkPoint, len(frame.Landmarks))
	if frame.FrameWidth <= 0 || frame.FrameHeight <= 0 {
		copy(out, frame.Landmarks)
		return out
	}
	w, h := float64(frame.FrameWidth), float64(frame.FrameHeight)
	for i, p := range frame.Landmarks {
		out[i] = gaze.LandmarkPoint{X: p.X * w, Y: p.Y * h, Z: p.Z * w}
	}
	return out
}

// EyeLandmarks gathers the points describing one eye.
type EyeLandmarks struct {
	Outer, Inner gaze.LandmarkPoint
	// P holds P1..P6 of the eye-aspect-ratio convention.
	P       [6]gaze.LandmarkPoint
	Contour []gaze.LandmarkPoint
	Iris    gaze.LandmarkPoint
}

// ExtractEye picks one eye out of a full landmark slice.
func ExtractEye(points []gaze.LandmarkPoint, idx gaze.EyeIndices) EyeLandmarks {
	e := EyeLandmarks{
		Outer: points[idx.Outer],
		Inner: points[idx.Inner],
		P: [6]gaze.LandmarkPoint{
			points[idx.P1], points[idx.P2], points[idx.P3],
			points[idx.P4], points[idx.P5], points[idx.P6],
		},
		Iris: points[idx.IrisCenter],
	}
	for _, i := range idx.Contour() {
		e.Contour = append(e.Contour, points[i])
	}
	return e
}

// Width returns the corner-to-corner eye width.
func (e EyeLandmarks) Width() float64 { return dist3(e.Outer, e.Inner) }

func dist2(a, b gaze.LandmarkPoint) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

func dist3(a, b gaze.LandmarkPoint) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func midpoint(a, b gaze.LandmarkPoint) gaze.LandmarkPoint {
	return gaze.LandmarkPoint{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2, Z: (a.Z + b.Z) / 2}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

func radians(deg float64) float64 { return deg * math.Pi / 180 }
