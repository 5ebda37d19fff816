package geometry

import (
	"time"

	"github.com/banshee-data/gazepoint/internal/detector"
	"github.com/banshee-data/gazepoint/internal/gaze"
)

var frameTime = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)

// syntheticFace builds a frontal open-eyed face, then applies edits.
func syntheticFace(edits ...func(p *detector.FaceParams)) *gaze.FaceLandmarkResult {
	p := detector.DefaultFaceParams()
	p.Timestamp = frameTime
	for _, e := range edits {
		e(&p)
	}
	return detector.SynthesizeFace(p)
}

func withGaze(x, y float64) func(*detector.FaceParams) {
	return func(p *detector.FaceParams) { p.GazeX, p.GazeY = x, y }
}

func withPose(yaw, pitch, roll float64) func(*detector.FaceParams) {
	return func(p *detector.FaceParams) { p.Yaw, p.Pitch, p.Roll = yaw, pitch, roll }
}

func withEAR(left, right float64) func(*detector.FaceParams) {
	return func(p *detector.FaceParams) { p.LeftEAR, p.RightEAR = left, right }
}

func defaultSettings() Settings {
	return Settings{
		EyeSelection:   gaze.BothEyes,
		TrackingMethod: gaze.TrackingIris2D,
		Adjust:         Identity,
	}
}
