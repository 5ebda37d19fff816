package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/gaze/calibration"
)

// StartCalibration opens a session for the configured screen size and
// calibration mode, discarding any collected samples. Existing calibration
// data stays in effect until a new compute succeeds.
func (t *Tracker) StartCalibration(marginPercent float64) ([]gaze.Vec2, error) {
	snap := t.settings.Snapshot()

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.engine.SetMode(snap.CalibrationMode); err != nil {
		return nil, err
	}
	targets, err := t.engine.Start(snap.ScreenWidth, snap.ScreenHeight, marginPercent)
	if err != nil {
		return nil, fmt.Errorf("start calibration: %w", err)
	}
	t.log.Info("calibration started",
		"mode", snap.CalibrationMode.String(),
		"screen_width", snap.ScreenWidth,
		"screen_height", snap.ScreenHeight,
		"margin_percent", marginPercent)
	return targets, nil
}

// AddCalibrationSample adds a raw gaze sample for target pointIndex.
func (t *Tracker) AddCalibrationSample(pointIndex int, rawX, rawY float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.AddSample(pointIndex, rawX, rawY)
}

// RecordCalibrationSample adds the smoothed raw gaze of the last valid
// frame as a sample for pointIndex.
func (t *Tracker) RecordCalibrationSample(pointIndex int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasLast {
		return fmt.Errorf("record calibration sample: %w", gaze.ErrNoFaceDetected)
	}
	return t.engine.AddSample(pointIndex, t.last.Smoothed.X, t.last.Smoothed.Y)
}

// ComputeCalibration fits the transform from the collected samples. On
// failure any earlier calibration stays in effect.
func (t *Tracker) ComputeCalibration() (gaze.CalibrationData, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := t.engine.Compute()
	if err != nil {
		t.log.Warn("calibration compute failed", "error", err)
		return gaze.CalibrationData{}, err
	}
	t.log.Info("calibration computed", "mode", data.Mode.String(), "error_px", data.CalibrationError)
	return data, nil
}

// Calibration returns the calibration in effect.
func (t *Tracker) Calibration() (gaze.CalibrationData, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Export()
}

// CalibrationSummary returns the per-point report of the last compute.
func (t *Tracker) CalibrationSummary() (calibration.Summary, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Summary()
}

// CalibrationState returns the session phase and the last point index.
func (t *Tracker) CalibrationState() (calibration.State, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.State()
}

// CalibrationTargets returns the targets of the current session.
func (t *Tracker) CalibrationTargets() []gaze.Vec2 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Targets()
}

// CalibrationSamples returns a copy of the collected samples.
func (t *Tracker) CalibrationSamples() []gaze.CalibrationSample {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Samples()
}

// ClearCalibrationSamples ends the session and drops its samples. The
// calibration in effect is unaffected.
func (t *Tracker) ClearCalibrationSamples() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.engine.ClearSamples()
}

// ImportCalibration installs data without touching storage.
func (t *Tracker) ImportCalibration(data gaze.CalibrationData) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engine.Import(data)
}

// SaveCalibration persists the calibration in effect under its mode.
func (t *Tracker) SaveCalibration(ctx context.Context) error {
	if t.store == nil {
		return ErrNoStorage
	}
	data, ok := t.Calibration()
	if !ok {
		return errors.New("save calibration: not calibrated")
	}
	if err := t.store.SaveCalibrationData(ctx, data.Mode, data); err != nil {
		t.log.Error("save calibration failed", err, "mode", data.Mode.String())
		return fmt.Errorf("save calibration: %w", err)
	}
	t.log.Info("calibration saved", "mode", data.Mode.String())
	return nil
}

// LoadCalibration installs the stored calibration for mode and reports
// whether one was found. A missing or corrupt record means no calibration
// for mode: a calibration of that mode in effect is dropped, one of another
// mode is kept. Corruption is logged, not returned. Other storage errors
// are returned and leave the current calibration in place.
func (t *Tracker) LoadCalibration(ctx context.Context, mode gaze.CalibrationMode) (bool, error) {
	if t.store == nil {
		return false, ErrNoStorage
	}
	data, err := t.store.LoadCalibrationData(ctx, mode)
	switch {
	case errors.Is(err, gaze.ErrNotFound):
		t.forget(mode)
		t.log.Debug("no stored calibration", "mode", mode.String())
		return false, nil
	case errors.Is(err, gaze.ErrCorruptRecord):
		t.forget(mode)
		t.log.Warn("discarding corrupt calibration record", "mode", mode.String(), "error", err)
		return false, nil
	case err != nil:
		t.log.Error("load calibration failed", err, "mode", mode.String())
		return false, fmt.Errorf("load calibration: %w", err)
	}

	if data.Mode != mode {
		t.forget(mode)
		t.log.Warn("discarding calibration record with mismatched mode",
			"key_mode", mode.String(), "record_mode", data.Mode.String())
		return false, nil
	}

	t.mu.Lock()
	err = t.engine.Import(data)
	t.mu.Unlock()
	if err != nil {
		t.forget(mode)
		t.log.Warn("discarding invalid calibration record", "mode", mode.String(), "error", err)
		return false, nil
	}
	if err := t.settings.SetCalibrationMode(mode); err != nil {
		t.log.Warn("calibration mode not applied to settings", "mode", mode.String(), "error", err)
	}
	t.log.Info("calibration loaded", "mode", mode.String(), "error_px", data.CalibrationError)
	return true, nil
}

// ClearCalibration deletes the stored calibration for mode. When it is the
// calibration in effect the tracker becomes uncalibrated.
func (t *Tracker) ClearCalibration(ctx context.Context, mode gaze.CalibrationMode) error {
	if t.store == nil {
		return ErrNoStorage
	}
	if err := t.store.DeleteCalibrationData(ctx, mode); err != nil && !errors.Is(err, gaze.ErrNotFound) {
		t.log.Error("delete calibration failed", err, "mode", mode.String())
		return fmt.Errorf("clear calibration: %w", err)
	}

	t.forget(mode)
	t.log.Info("calibration cleared", "mode", mode.String())
	return nil
}

// forget drops the calibration in effect when it was fitted for mode.
func (t *Tracker) forget(mode gaze.CalibrationMode) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if data, ok := t.engine.Export(); ok && data.Mode == mode {
		t.engine.Forget()
	}
}
