package detector

import (
	"math"
	"time"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// FaceParams describes a synthetic face. Angles are in degrees; GazeX and
// GazeY place the iris inside each eye on [-1, 1].
type FaceParams struct {
	FrameWidth  int
	FrameHeight int
	CenterX     float64 // Pixels, nose bridge position
	CenterY     float64
	Scale       float64 // Pixels between the outer eye corners

	Yaw, Pitch, Roll float64
	GazeX, GazeY     float64

	LeftEAR  float64 // Eye aspect ratio; ~0.3 open, < 0.2 closed
	RightEAR float64

	Timestamp time.Time
}

// DefaultFaceParams returns a frontal, open-eyed face centred in a 640×480
// frame.
func DefaultFaceParams() FaceParams {
	return FaceParams{
		FrameWidth:  640,
		FrameHeight: 480,
		CenterX:     320,
		CenterY:     220,
		Scale:       120,
		LeftEAR:     0.3,
		RightEAR:    0.3,
	}
}

// Face model in units of the outer eye corner distance. x grows to the
// image right, y grows down, z grows away from the camera. The eye line is
// at y = 0 and the mouth line at y = 1.
const (
	eyeOuterX     = 0.5
	eyeInnerX     = 0.15
	noseTipY      = 0.45
	noseTipZ      = -0.3
	mouthCornerX  = 0.25
	eyeballRadius = 0.5 // Fraction of eye width
	irisRingRatio = 0.1 // Fraction of eye width
)

type vec3 struct{ x, y, z float64 }

// SynthesizeFace builds a full 478-point landmark frame for p. Only the
// landmarks used by the gaze geometry are placed anatomically; the rest sit
// at the face centre.
func SynthesizeFace(p FaceParams) *gaze.FaceLandmarkResult {
	model := make([]vec3, gaze.MinLandmarkCount)
	for i := range model {
		model[i] = vec3{0, 0.5, 0}
	}

	model[gaze.NoseTip] = vec3{0, noseTipY, noseTipZ}
	model[gaze.NoseBridge] = vec3{0, 0, -0.1}
	model[gaze.Chin] = vec3{0, 1.5, 0}
	model[gaze.Forehead] = vec3{0, -0.6, 0}
	model[gaze.MouthRightCorner] = vec3{-mouthCornerX, 1, 0}
	model[gaze.MouthLeftCorner] = vec3{mouthCornerX, 1, 0}

	placeEye(model, gaze.RightEye, -eyeOuterX, -eyeInnerX, p.RightEAR, p.GazeX, p.GazeY)
	placeEye(model, gaze.LeftEye, eyeOuterX, eyeInnerX, p.LeftEAR, p.GazeX, p.GazeY)

	sinY, cosY := math.Sincos(p.Yaw * math.Pi / 180)
	sinP, cosP := math.Sincos(p.Pitch * math.Pi / 180)
	sinR, cosR := math.Sincos(p.Roll * math.Pi / 180)

	w, h := float64(p.FrameWidth), float64(p.FrameHeight)
	if w <= 0 || h <= 0 {
		w, h = 1, 1
	}

	out := &gaze.FaceLandmarkResult{
		Landmarks:   make([]gaze.LandmarkPoint, len(model)),
		FrameWidth:  p.FrameWidth,
		FrameHeight: p.FrameHeight,
		Timestamp:   p.Timestamp,
	}
	for i, v := range model {
		// Yaw turns the nose toward the image right.
		x := v.x*cosY - v.z*sinY
		z := v.x*sinY + v.z*cosY
		// Pitch tilts the nose down.
		y := v.y*cosP - z*sinP
		z = v.y*sinP + z*cosP
		// Roll rotates clockwise in image space.
		x, y = x*cosR-y*sinR, x*sinR+y*cosR

		out.Landmarks[i] = gaze.LandmarkPoint{
			X: (p.CenterX + x*p.Scale) / w,
			Y: (p.CenterY + y*p.Scale) / h,
			Z: z * p.Scale / w,
		}
	}
	return out
}

// placeEye positions one eye's contour, lids and iris. EAR sets the lid
// opening as a fraction of eye width, and the iris sits on a sphere behind
// the corner midpoint so the 3D eyeball model reads the same gaze.
func placeEye(model []vec3, idx gaze.EyeIndices, outerX, innerX, ear, gx, gy float64) {
	left, right := math.Min(outerX, innerX), math.Max(outerX, innerX)
	width := right - left
	cx := (left + right) / 2
	half := ear * width / 2

	model[idx.Outer] = vec3{outerX, 0, 0}
	model[idx.Inner] = vec3{innerX, 0, 0}

	// P1/P4 are corners; P2,P3 upper and P6,P5 lower lid pairs at one and
	// two thirds of the way from P1 to P4.
	p1 := model[idx.P1]
	p4 := model[idx.P4]
	at := func(f float64) float64 { return p1.x + (p4.x-p1.x)*f }
	model[idx.P2] = vec3{at(1.0 / 3), -half, 0}
	model[idx.P3] = vec3{at(2.0 / 3), -half, 0}
	model[idx.P6] = vec3{at(1.0 / 3), half, 0}
	model[idx.P5] = vec3{at(2.0 / 3), half, 0}
	model[idx.Upper] = vec3{cx, -half, 0}
	model[idx.Lower] = vec3{cx, half, 0}

	gx = math.Max(-1, math.Min(1, gx))
	gy = math.Max(-1, math.Min(1, gy))
	dx := gx * width / 2
	dy := gy * half
	r := eyeballRadius * width
	depth := math.Sqrt(math.Max(0, r*r-dx*dx-dy*dy))
	iris := vec3{cx + dx, dy, r - depth}
	model[idx.IrisCenter] = iris

	ring := irisRingRatio * width
	offsets := [4][2]float64{{ring, 0}, {0, -ring}, {-ring, 0}, {0, ring}}
	for i, li := range idx.IrisRing {
		model[li] = vec3{iris.x + offsets[i][0], iris.y + offsets[i][1], iris.z}
	}
}
