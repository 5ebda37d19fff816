package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gazepoint/internal/detector"
	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

func newTracker(t *testing.T, store *Store, edit func(*pipeline.SettingsSnapshot)) *pipeline.Tracker {
	t.Helper()
	snap := pipeline.DefaultSettings()
	if edit != nil {
		edit(&snap)
	}
	settings, err := pipeline.NewSettings(snap)
	require.NoError(t, err)
	det := detector.NewSynthetic(detector.DefaultSyntheticConfig(), timeutil.NewMockClock(t0))
	return pipeline.NewTracker(det, store, settings, pipeline.DefaultConfig(), monitoring.Nop())
}

func TestTrackerPersistsThroughStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	src := newTracker(t, s, func(snap *pipeline.SettingsSnapshot) {
		snap.SmoothingMode = gaze.SmoothingKalman
		snap.SensitivityX = 1.5
		snap.ScreenWidth, snap.ScreenHeight = 2560, 1440
	})
	targets, err := src.StartCalibration(10)
	require.NoError(t, err)
	for i, target := range targets {
		// raw = target / 1000 is an exact affine relation.
		for n := 0; n < 6; n++ {
			require.NoError(t, src.AddCalibrationSample(i, target.X/1000, target.Y/1000))
		}
	}
	want, err := src.ComputeCalibration()
	require.NoError(t, err)
	require.NoError(t, src.SaveCalibration(ctx))
	require.NoError(t, src.SaveSettings(ctx))

	dst := newTracker(t, s, nil)
	require.NoError(t, dst.LoadSettings(ctx))
	assert.Equal(t, src.Settings().Snapshot(), dst.Settings().Snapshot())

	ok, err := dst.LoadCalibration(ctx, gaze.CalibrationAffine)
	require.NoError(t, err)
	require.True(t, ok)
	got, _ := dst.Calibration()
	assert.Equal(t, want, got)

	hist, err := s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, want, hist[0].Data)

	require.NoError(t, dst.ClearCalibration(ctx, gaze.CalibrationAffine))
	ok, err = newTracker(t, s, nil).LoadCalibration(ctx, gaze.CalibrationAffine)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTrackerLoadSettingsSkipsMalformedValues(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.SaveString(ctx, pipeline.KeyEyeSelection, "RIGHT_EYE_ONLY"))
	require.NoError(t, s.SaveString(ctx, pipeline.KeySensitivityX, "1,5"))
	require.NoError(t, s.SaveString(ctx, pipeline.KeyScreenHeight, "tall"))
	require.NoError(t, s.SaveFloat(ctx, pipeline.KeyOffsetY, 0.2))

	tr := newTracker(t, s, nil)
	before := tr.Settings().Snapshot()
	require.NoError(t, tr.LoadSettings(ctx))

	got := tr.Settings().Snapshot()
	assert.Equal(t, gaze.RightEyeOnly, got.EyeSelection)
	assert.Equal(t, 0.2, got.OffsetY)
	assert.Equal(t, before.SensitivityX, got.SensitivityX)
	assert.Equal(t, before.ScreenHeight, got.ScreenHeight)
}
