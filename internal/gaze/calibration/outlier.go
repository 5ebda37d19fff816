package calibration

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// MinSamplesForRejection is the bucket size below which quartiles are too
// unstable to reject anything.
const MinSamplesForRejection = 4

// RejectOutliers splits samples into those inside the Tukey fence
// [Q1 − k·IQR, Q3 + k·IQR] on both axes and those outside it. Each axis is
// fenced independently; a sample outside either fence is rejected. Order is
// preserved within each result.
func RejectOutliers(samples []gaze.Vec2, k float64) (accepted, rejected []gaze.Vec2) {
	if len(samples) < MinSamplesForRejection {
		return append([]gaze.Vec2(nil), samples...), nil
	}

	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	loX, hiX := tukeyFence(xs, k)
	loY, hiY := tukeyFence(ys, k)

	for _, s := range samples {
		if s.X < loX || s.X > hiX || s.Y < loY || s.Y > hiY {
			rejected = append(rejected, s)
			continue
		}
		accepted = append(accepted, s)
	}
	return accepted, rejected
}

// tukeyFence sorts values in place and returns the IQR fence bounds.
func tukeyFence(values []float64, k float64) (lo, hi float64) {
	sort.Float64s(values)
	q1 := stat.Quantile(0.25, stat.LinInterp, values, nil)
	q3 := stat.Quantile(0.75, stat.LinInterp, values, nil)
	iqr := q3 - q1
	return q1 - k*iqr, q3 + k*iqr
}

// mean returns the centroid of samples; samples must be non-empty.
func mean(samples []gaze.Vec2) gaze.Vec2 {
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i], ys[i] = s.X, s.Y
	}
	return gaze.Vec2{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil)}
}
