package sqlite

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
	"github.com/banshee-data/gazepoint/internal/gaze/pipeline"
	"github.com/banshee-data/gazepoint/internal/monitoring"
	"github.com/banshee-data/gazepoint/internal/timeutil"
)

var _ pipeline.Storage = (*Store)(nil)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) (*Store, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(t0)
	s, err := Open(filepath.Join(t.TempDir(), "gaze.db"), WithClock(clock), WithLogger(monitoring.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, clock
}

func affineData() gaze.CalibrationData {
	return gaze.CalibrationData{
		TransformX:       []float64{960.0000000000001, 800, 40},
		TransformY:       []float64{540, -30, 450.25},
		ScreenWidth:      1920,
		ScreenHeight:     1080,
		CalibrationError: 3.0000000000000004,
		Mode:             gaze.CalibrationAffine,
	}
}

func polyData() gaze.CalibrationData {
	return gaze.CalibrationData{
		TransformX:       []float64{961, 812.3456789, -0.1, 1e-17, 3, math.Pi},
		TransformY:       []float64{539.5, -1.0 / 3, 450, 2.5e10, -7, math.E},
		ScreenWidth:      2560,
		ScreenHeight:     1440,
		CalibrationError: 12.345678901234567,
		Mode:             gaze.CalibrationPolynomial,
	}
}

func TestOpenMigratesToLatest(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gaze.db")

	s, err := Open(path, WithLogger(monitoring.Nop()))
	require.NoError(t, err)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)
	require.NoError(t, s.SaveInt(context.Background(), "k", 7))
	require.NoError(t, s.Close())

	// Reopening an up-to-date file keeps its contents.
	s, err = Open(path, WithLogger(monitoring.Nop()))
	require.NoError(t, err)
	defer s.Close()
	n, err := s.LoadInt(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, path, s.Path())
}

func TestPragmasApplied(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t)

	var mode string
	require.NoError(t, s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var timeout int
	require.NoError(t, s.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout))
	assert.Equal(t, 5000, timeout)
}

func TestCalibrationRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	for _, d := range []gaze.CalibrationData{affineData(), polyData()} {
		require.NoError(t, s.SaveCalibrationData(ctx, d.Mode, d))
	}
	for _, want := range []gaze.CalibrationData{affineData(), polyData()} {
		got, err := s.LoadCalibrationData(ctx, want.Mode)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", want.Mode, diff)
		}
	}
}

func TestCalibrationStoredAsFlatKeys(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, affineData()))

	got, err := s.LoadString(ctx, calibration.Key(gaze.CalibrationAffine, calibration.FieldTransformY), "")
	require.NoError(t, err)
	assert.Equal(t, "540,-30,450.25", got)

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM kv WHERE key LIKE 'calibration.AFFINE.%'`).Scan(&n))
	assert.Equal(t, len(calibration.Fields), n)
}

func TestSaveCalibrationRejectsBadInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	assert.Error(t, s.SaveCalibrationData(ctx, gaze.CalibrationPolynomial, affineData()))

	bad := affineData()
	bad.TransformX = bad.TransformX[:2]
	assert.ErrorIs(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, bad), gaze.ErrCorruptRecord)

	_, err := s.LoadCalibrationData(ctx, gaze.CalibrationAffine)
	assert.ErrorIs(t, err, gaze.ErrNotFound)
}

func TestLoadCalibrationNotFound(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t)
	_, err := s.LoadCalibrationData(context.Background(), gaze.CalibrationAffine)
	assert.ErrorIs(t, err, gaze.ErrNotFound)
}

func TestLoadCalibrationCorrupt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name string
		sql  string
	}{
		{"missing field", `DELETE FROM kv WHERE key = 'calibration.AFFINE.screenWidth'`},
		{"short transform", `UPDATE kv SET value = '1,2' WHERE key = 'calibration.AFFINE.transformX'`},
		{"localized number", `UPDATE kv SET value = '3,5' WHERE key = 'calibration.AFFINE.calibrationError'`},
		{"zero height", `UPDATE kv SET value = '0' WHERE key = 'calibration.AFFINE.screenHeight'`},
		{"unknown mode", `UPDATE kv SET value = 'CUBIC' WHERE key = 'calibration.AFFINE.mode'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, _ := openStore(t)
			require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, affineData()))
			_, err := s.DB().Exec(tt.sql)
			require.NoError(t, err)

			_, err = s.LoadCalibrationData(ctx, gaze.CalibrationAffine)
			assert.ErrorIs(t, err, gaze.ErrCorruptRecord)
		})
	}
}

func TestDeleteCalibrationKeepsOtherModesAndHistory(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationAffine, affineData()))
	require.NoError(t, s.SaveCalibrationData(ctx, gaze.CalibrationPolynomial, polyData()))

	require.NoError(t, s.DeleteCalibrationData(ctx, gaze.CalibrationAffine))
	_, err := s.LoadCalibrationData(ctx, gaze.CalibrationAffine)
	assert.ErrorIs(t, err, gaze.ErrNotFound)

	_, err = s.LoadCalibrationData(ctx, gaze.CalibrationPolynomial)
	assert.NoError(t, err)

	hist, err := s.History(ctx, gaze.CalibrationAffine, 0)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	// Deleting an absent record is not an error.
	assert.NoError(t, s.DeleteCalibrationData(ctx, gaze.CalibrationAffine))
}

func TestPrimitivesRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.SaveString(ctx, "s", "LEFT_EYE_ONLY"))
	require.NoError(t, s.SaveFloat(ctx, "f", 0.1+0.2))
	require.NoError(t, s.SaveBool(ctx, "b", false))
	require.NoError(t, s.SaveInt(ctx, "i", -42))

	str, err := s.LoadString(ctx, "s", "")
	require.NoError(t, err)
	assert.Equal(t, "LEFT_EYE_ONLY", str)

	f, err := s.LoadFloat(ctx, "f", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.1+0.2, f)

	b, err := s.LoadBool(ctx, "b", true)
	require.NoError(t, err)
	assert.False(t, b)

	i, err := s.LoadInt(ctx, "i", 0)
	require.NoError(t, err)
	assert.Equal(t, -42, i)

	// Overwrite.
	require.NoError(t, s.SaveInt(ctx, "i", 9))
	i, err = s.LoadInt(ctx, "i", 0)
	require.NoError(t, err)
	assert.Equal(t, 9, i)
}

func TestPrimitivesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	str, err := s.LoadString(ctx, "absent", "def")
	require.NoError(t, err)
	assert.Equal(t, "def", str)

	f, err := s.LoadFloat(ctx, "absent", 1.5)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	b, err := s.LoadBool(ctx, "absent", true)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := s.LoadInt(ctx, "absent", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, i)
}

func TestPrimitivesMalformed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)
	require.NoError(t, s.SaveString(ctx, "x", "not-a-number"))

	f, err := s.LoadFloat(ctx, "x", 2)
	assert.ErrorIs(t, err, gaze.ErrCorruptValue)
	assert.Equal(t, 2.0, f)

	_, err = s.LoadBool(ctx, "x", false)
	assert.ErrorIs(t, err, gaze.ErrCorruptValue)

	_, err = s.LoadInt(ctx, "x", 0)
	assert.ErrorIs(t, err, gaze.ErrCorruptValue)
}

func TestUpdatedTimestampUsesClock(t *testing.T) {
	t.Parallel()
	s, clock := openStore(t)
	clock.Advance(90 * time.Second)
	require.NoError(t, s.SaveBool(context.Background(), "b", true))

	var ms int64
	require.NoError(t, s.DB().QueryRow(`SELECT updated_unix_ms FROM kv WHERE key = 'b'`).Scan(&ms))
	assert.Equal(t, t0.Add(90*time.Second).UnixMilli(), ms)
}

func TestConcurrentWriters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := openStore(t)

	const writers, writes = 8, 20
	var wg sync.WaitGroup
	errs := make(chan error, writers*writes)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				if err := s.SaveInt(ctx, fmt.Sprintf("w%d", w), i); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	for w := 0; w < writers; w++ {
		n, err := s.LoadInt(ctx, fmt.Sprintf("w%d", w), -1)
		require.NoError(t, err)
		assert.Equal(t, writes-1, n)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	s, _ := openStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveString(ctx, "k", "v")
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
