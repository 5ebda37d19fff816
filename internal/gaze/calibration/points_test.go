package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

func TestGenerateCalibrationPoints1080p(t *testing.T) {
	t.Parallel()

	got, err := GenerateCalibrationPoints(1920, 1080, 10)
	require.NoError(t, err)

	want := []gaze.Vec2{
		{X: 192, Y: 108}, {X: 960, Y: 108}, {X: 1728, Y: 108},
		{X: 192, Y: 540}, {X: 960, Y: 540}, {X: 1728, Y: 540},
		{X: 192, Y: 972}, {X: 960, Y: 972}, {X: 1728, Y: 972},
	}
	assert.Equal(t, want, got)
}

func TestGenerateCalibrationPointsLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		w, h   int
		margin float64
	}{
		{"no margin", 800, 600, 0},
		{"fractional margin", 1366, 768, 7.5},
		{"wide margin", 2560, 1440, 45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, err := GenerateCalibrationPoints(tt.w, tt.h, tt.margin)
			require.NoError(t, err)
			require.Len(t, pts, PointCount)

			for row := 0; row < 3; row++ {
				for col := 0; col < 3; col++ {
					p := pts[row*3+col]
					if col > 0 {
						assert.Greater(t, p.X, pts[row*3+col-1].X)
					}
					if row > 0 {
						assert.Greater(t, p.Y, pts[(row-1)*3+col].Y)
					}
				}
			}
			assert.Equal(t, float64(tt.w)/2, pts[4].X)
			assert.Equal(t, float64(tt.h)/2, pts[4].Y)
			assert.InDelta(t, float64(tt.w)*tt.margin/100, pts[0].X, 1e-9)
			assert.InDelta(t, float64(tt.w)-pts[0].X, pts[8].X, 1e-9)
			assert.InDelta(t, float64(tt.h)-pts[0].Y, pts[8].Y, 1e-9)
		})
	}
}

func TestGenerateCalibrationPointsRejectsBadInput(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		w, h   int
		margin float64
	}{
		{0, 1080, 10},
		{1920, -1, 10},
		{1920, 1080, -1},
		{1920, 1080, 50},
	} {
		_, err := GenerateCalibrationPoints(tc.w, tc.h, tc.margin)
		assert.Errorf(t, err, "%dx%d margin %v", tc.w, tc.h, tc.margin)
	}
}
