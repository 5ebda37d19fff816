package calibration

import (
	"fmt"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// PointCount is the number of calibration targets.
const PointCount = 9

// MaxMarginPercent is the exclusive upper bound on the target margin.
const MaxMarginPercent = 50

// GenerateCalibrationPoints lays out the nine targets row-major from top-left
// to bottom-right. Along each axis the positions are margin·dim, dim/2 and
// (1−margin)·dim, with margin given in percent.
func GenerateCalibrationPoints(width, height int, marginPercent float64) ([]gaze.Vec2, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid screen size %dx%d", width, height)
	}
	if !(marginPercent >= 0 && marginPercent < MaxMarginPercent) {
		return nil, fmt.Errorf("margin %v%% outside [0, %d)", marginPercent, MaxMarginPercent)
	}

	// Multiply before dividing so whole-percent margins on integer sizes
	// land on exact pixel values.
	axis := func(dim int) [3]float64 {
		d := float64(dim)
		return [3]float64{
			d * marginPercent / 100,
			d / 2,
			d * (100 - marginPercent) / 100,
		}
	}
	xs, ys := axis(width), axis(height)

	points := make([]gaze.Vec2, 0, PointCount)
	for _, y := range ys {
		for _, x := range xs {
			points = append(points, gaze.Vec2{X: x, Y: y})
		}
	}
	return points, nil
}
