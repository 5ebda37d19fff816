package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

func eyesOf(face *gaze.FaceLandmarkResult) (left, right EyeLandmarks) {
	points := ScaleLandmarks(face)
	return ExtractEye(points, gaze.LeftEye), ExtractEye(points, gaze.RightEye)
}

func TestCalculateIrisPositionRecoversGaze(t *testing.T) {
	t.Parallel()

	for _, g := range []gaze.Vec2{{}, {X: 0.4, Y: -0.3}, {X: -1, Y: 1}, {X: 0.75, Y: 0.5}} {
		left, right := eyesOf(syntheticFace(withGaze(g.X, g.Y)))
		for name, eye := range map[string]EyeLandmarks{"left": left, "right": right} {
			got := CalculateIrisPosition(eye, eye.Iris, Identity)
			assert.InDeltaf(t, g.X, got.X, 1e-9, "%s eye x for %v", name, g)
			assert.InDeltaf(t, g.Y, got.Y, 1e-9, "%s eye y for %v", name, g)
		}
	}
}

func TestCalculateIrisPositionAppliesAdjust(t *testing.T) {
	left, _ := eyesOf(syntheticFace(withGaze(0.25, -0.5)))
	adj := Adjust{SensitivityX: 2, SensitivityY: 0.5, OffsetX: 0.1, OffsetY: -0.2}
	got := CalculateIrisPosition(left, left.Iris, adj)
	assert.InDelta(t, 0.25*2+0.1, got.X, 1e-9)
	assert.InDelta(t, -0.5*0.5-0.2, got.Y, 1e-9)
}

func TestCalculateIrisPositionClampsAndHandlesDegenerateEye(t *testing.T) {
	left, _ := eyesOf(syntheticFace())
	far := left.Iris
	far.X += 1000
	far.Y -= 1000
	got := CalculateIrisPosition(left, far, Identity)
	assert.Equal(t, gaze.Vec2{X: 1, Y: -1}, got)

	flat := EyeLandmarks{Contour: []gaze.LandmarkPoint{{X: 5, Y: 5}, {X: 5, Y: 5}}}
	got = CalculateIrisPosition(flat, gaze.LandmarkPoint{X: 9, Y: 1}, Adjust{SensitivityX: 1, SensitivityY: 1, OffsetX: 0.3})
	assert.Equal(t, gaze.Vec2{X: 0.3, Y: 0}, got)
}

func TestEyeballGaze(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()

	left, right := eyesOf(syntheticFace())
	for _, eye := range []EyeLandmarks{left, right} {
		got := cfg.EyeballGaze(eye, eye.Iris, Identity)
		assert.InDelta(t, 0, got.X, 1e-9)
		assert.InDelta(t, 0, got.Y, 1e-9)
	}

	// Half-way to the corner on a sphere of radius w/2 is a 30° rotation.
	left, _ = eyesOf(syntheticFace(withGaze(0.5, 0)))
	got := cfg.EyeballGaze(left, left.Iris, Identity)
	assert.InDelta(t, 30/cfg.MaxEyeAngle, got.X, 1e-6)
	assert.InDelta(t, 0, got.Y, 1e-9)

	up, _ := eyesOf(syntheticFace(withGaze(0, -0.8)))
	down, _ := eyesOf(syntheticFace(withGaze(0, 0.8)))
	assert.Less(t, cfg.EyeballGaze(up, up.Iris, Identity).Y, 0.0)
	assert.Greater(t, cfg.EyeballGaze(down, down.Iris, Identity).Y, 0.0)

	assert.Equal(t, gaze.Vec2{X: 0.1, Y: 0.2}, cfg.EyeballGaze(EyeLandmarks{}, gaze.LandmarkPoint{}, Adjust{OffsetX: 0.1, OffsetY: 0.2}))
}

func TestDetectBlinkThreshold(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	tests := []struct {
		ear    float64
		closed bool
	}{
		{0.02, true},
		{0.1, true},
		{0.19, true},
		{0.21, false},
		{0.3, false},
		{0.45, false},
	}
	for _, tt := range tests {
		for _, roll := range []float64{0, 20} {
			left, right := eyesOf(syntheticFace(withEAR(tt.ear, tt.ear), withPose(0, 0, roll)))
			for _, eye := range []EyeLandmarks{left, right} {
				assert.InDelta(t, tt.ear, EyeAspectRatio(eye), 1e-9)
				conf := cfg.DetectBlink(eye)
				assert.GreaterOrEqual(t, conf, 0.0)
				assert.LessOrEqual(t, conf, 1.0)
				if tt.closed {
					assert.GreaterOrEqualf(t, conf, 0.5, "ear %v roll %v", tt.ear, roll)
				} else {
					assert.Lessf(t, conf, 0.5, "ear %v roll %v", tt.ear, roll)
				}
			}
		}
	}
}

func TestDetectBlinkDegenerateEyeReadsClosed(t *testing.T) {
	assert.Equal(t, 1.0, DefaultConfig().DetectBlink(EyeLandmarks{}))
	assert.Zero(t, EyeAspectRatio(EyeLandmarks{}))
}
