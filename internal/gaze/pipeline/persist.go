package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/gazepoint/internal/gaze"
	"github.com/banshee-data/gazepoint/internal/monitoring"
)

// Storage keys for persisted settings.
const (
	KeySmoothingMode   = "settings.smoothing_mode"
	KeyEyeSelection    = "settings.eye_selection"
	KeyTrackingMethod  = "settings.tracking_method"
	KeySensitivityX    = "settings.sensitivity_x"
	KeySensitivityY    = "settings.sensitivity_y"
	KeyOffsetX         = "settings.offset_x"
	KeyOffsetY         = "settings.offset_y"
	KeyHoldOnNoFace    = "settings.hold_on_no_face"
	KeyCalibrationMode = "settings.calibration_mode"
	KeyScreenWidth     = "settings.screen_width"
	KeyScreenHeight    = "settings.screen_height"
)

// SaveSettings persists the current settings.
func (t *Tracker) SaveSettings(ctx context.Context) error {
	if t.store == nil {
		return ErrNoStorage
	}
	s := t.settings.Snapshot()

	var errs []error
	save := func(key string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	save(KeySmoothingMode, t.store.SaveString(ctx, KeySmoothingMode, s.SmoothingMode.String()))
	save(KeyEyeSelection, t.store.SaveString(ctx, KeyEyeSelection, s.EyeSelection.String()))
	save(KeyTrackingMethod, t.store.SaveString(ctx, KeyTrackingMethod, s.TrackingMethod.String()))
	save(KeySensitivityX, t.store.SaveFloat(ctx, KeySensitivityX, s.SensitivityX))
	save(KeySensitivityY, t.store.SaveFloat(ctx, KeySensitivityY, s.SensitivityY))
	save(KeyOffsetX, t.store.SaveFloat(ctx, KeyOffsetX, s.OffsetX))
	save(KeyOffsetY, t.store.SaveFloat(ctx, KeyOffsetY, s.OffsetY))
	save(KeyHoldOnNoFace, t.store.SaveBool(ctx, KeyHoldOnNoFace, s.HoldOnNoFace))
	save(KeyCalibrationMode, t.store.SaveString(ctx, KeyCalibrationMode, s.CalibrationMode.String()))
	save(KeyScreenWidth, t.store.SaveInt(ctx, KeyScreenWidth, s.ScreenWidth))
	save(KeyScreenHeight, t.store.SaveInt(ctx, KeyScreenHeight, s.ScreenHeight))

	if err := errors.Join(errs...); err != nil {
		t.log.Error("save settings failed", err)
		return fmt.Errorf("save settings: %w", err)
	}
	t.log.Debug("settings saved")
	return nil
}

// LoadSettings replaces the settings with stored values. Absent keys keep
// their current value. Stored values that fail to parse or validate are
// logged and ignored field by field; storage errors abort the load and
// leave the settings unchanged.
func (t *Tracker) LoadSettings(ctx context.Context) error {
	if t.store == nil {
		return ErrNoStorage
	}
	cur := t.settings.Snapshot()
	next := cur
	l := &loader{ctx: ctx, store: t.store, log: t.log}

	if name := l.str(KeySmoothingMode, cur.SmoothingMode.String()); l.err == nil {
		if m, err := gaze.ParseSmoothingMode(name); err == nil {
			next.SmoothingMode = m
		} else {
			t.log.Warn("ignoring stored setting", "key", KeySmoothingMode, "error", err)
		}
	}
	if name := l.str(KeyEyeSelection, cur.EyeSelection.String()); l.err == nil {
		if e, err := gaze.ParseEyeSelection(name); err == nil {
			next.EyeSelection = e
		} else {
			t.log.Warn("ignoring stored setting", "key", KeyEyeSelection, "error", err)
		}
	}
	if name := l.str(KeyTrackingMethod, cur.TrackingMethod.String()); l.err == nil {
		if m, err := gaze.ParseTrackingMethod(name); err == nil {
			next.TrackingMethod = m
		} else {
			t.log.Warn("ignoring stored setting", "key", KeyTrackingMethod, "error", err)
		}
	}
	if name := l.str(KeyCalibrationMode, cur.CalibrationMode.String()); l.err == nil {
		if m, err := gaze.ParseCalibrationMode(name); err == nil {
			next.CalibrationMode = m
		} else {
			t.log.Warn("ignoring stored setting", "key", KeyCalibrationMode, "error", err)
		}
	}

	sx := l.float(KeySensitivityX, cur.SensitivityX)
	sy := l.float(KeySensitivityY, cur.SensitivityY)
	if l.err == nil {
		if err := validateSensitivity(sx, sy); err == nil {
			next.SensitivityX, next.SensitivityY = sx, sy
		} else {
			t.log.Warn("ignoring stored setting", "key", "settings.sensitivity", "error", err)
		}
	}
	ox := l.float(KeyOffsetX, cur.OffsetX)
	oy := l.float(KeyOffsetY, cur.OffsetY)
	if l.err == nil {
		if err := validateOffset(ox, oy); err == nil {
			next.OffsetX, next.OffsetY = ox, oy
		} else {
			t.log.Warn("ignoring stored setting", "key", "settings.offset", "error", err)
		}
	}
	next.HoldOnNoFace = l.boolean(KeyHoldOnNoFace, cur.HoldOnNoFace)
	w := l.integer(KeyScreenWidth, cur.ScreenWidth)
	h := l.integer(KeyScreenHeight, cur.ScreenHeight)
	if l.err == nil {
		if w > 0 && h > 0 {
			next.ScreenWidth, next.ScreenHeight = w, h
		} else {
			t.log.Warn("ignoring stored setting", "key", "settings.screen", "width", w, "height", h)
		}
	}

	if l.err != nil {
		t.log.Error("load settings failed", l.err)
		return fmt.Errorf("load settings: %w", l.err)
	}
	if err := t.settings.Replace(next); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	t.log.Debug("settings loaded", "smoothing_mode", next.SmoothingMode.String())
	return nil
}

// loader stops at the first storage error; later calls return def. A
// value that does not parse is logged and replaced by def.
type loader struct {
	ctx   context.Context
	store Storage
	log   monitoring.Logger
	err   error
}

// fail logs a corrupt value and keeps going; any other error stops the load.
func (l *loader) fail(key string, err error) {
	if errors.Is(err, gaze.ErrCorruptValue) {
		l.log.Warn("ignoring stored setting", "key", key, "error", err)
		return
	}
	l.err = fmt.Errorf("%s: %w", key, err)
}

func (l *loader) str(key, def string) string {
	if l.err != nil {
		return def
	}
	v, err := l.store.LoadString(l.ctx, key, def)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) float(key string, def float64) float64 {
	if l.err != nil {
		return def
	}
	v, err := l.store.LoadFloat(l.ctx, key, def)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) boolean(key string, def bool) bool {
	if l.err != nil {
		return def
	}
	v, err := l.store.LoadBool(l.ctx, key, def)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}

func (l *loader) integer(key string, def int) int {
	if l.err != nil {
		return def
	}
	v, err := l.store.LoadInt(l.ctx, key, def)
	if err != nil {
		l.fail(key, err)
		return def
	}
	return v
}
