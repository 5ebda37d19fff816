package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

func TestHistoryNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := openStore(t)

	for i := 0; i < 3; i++ {
		d := affineData()
		d.CalibrationError = float64(i)
		require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, d))
		clock.Advance(time.Minute)
	}
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationPolynomial, polyData()))

	hist, err := s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	for i, h := range hist {
		assert.Equal(t, float64(2-i), h.Data.CalibrationError)
		assert.Equal(t, t0.Add(time.Duration(2-i)*time.Minute), h.CreatedAt)
		_, err := uuid.Parse(h.ID)
		assert.NoError(t, err)
	}
	assert.NotEqual(t, hist[0].ID, hist[1].ID)

	limited, err := s.History(ctx, gaze.CalibrationAffine, 2)
	require.NoError(t, err)
	assert.Equal(t, hist[:2], limited)

	poly, err := s.History(ctx, gaze.CalibrationPolynomial, 0)
	require.NoError(t, err)
	require.Len(t, poly, 1)
	assert.Equal(t, polyData(), poly[0].Data)
}

func TestHistorySkipsUndecodableRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := openStore(t)
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, affineData()))
	clock.Advance(time.Second)
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, affineData()))

	hist, err := s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	_, err = s.DB().Exec(`UPDATE calibration_history SET transform_x = 'x' WHERE id = ?`, hist[0].ID)
	require.NoError(t, err)

	hist, err = s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, clock := openStore(t)

	first := affineData()
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, first))
	clock.Advance(time.Minute)
	second := affineData()
	second.TransformX = []float64{0, 1, 0}
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, second))

	hist, err := s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)

	got, err := s.Restore(ctx, hist[1].ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	active, err := s.LoadCalibrationData(ctx, gaze.CalibrationAffine)
	require.NoError(t, err)
	assert.Equal(t, first, active)

	_, err = s.Restore(ctx, uuid.NewString())
	assert.ErrorIs(t, err, gaze.ErrNotFound)
}
