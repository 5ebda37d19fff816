package gaze

import "errors"

var (
	// ErrNoFaceDetected is a per-frame, non-fatal condition.
	ErrNoFaceDetected = errors.New("no face detected")
	// ErrInitialization reports that the detector or its model is unavailable.
	ErrInitialization = errors.New("detector initialisation failed")
	// ErrInsufficientSamples reports a calibration bucket below the minimum
	// accepted sample count after outlier rejection.
	ErrInsufficientSamples = errors.New("insufficient calibration samples")
	// ErrSingularSystem reports normal equations without a unique solution.
	ErrSingularSystem = errors.New("singular calibration system")
	// ErrCorruptRecord reports a persisted calibration with a missing,
	// malformed or inconsistent field.
	ErrCorruptRecord = errors.New("corrupt calibration record")
	// ErrCorruptValue reports a stored primitive setting that does not
	// parse as its type.
	ErrCorruptValue = errors.New("corrupt stored value")
	// ErrNotFound reports that storage holds no value for a key.
	ErrNotFound = errors.New("not found")
	// ErrFrameInFlight reports a second ProcessFrame while one is running.
	ErrFrameInFlight = errors.New("frame already in flight")
)
