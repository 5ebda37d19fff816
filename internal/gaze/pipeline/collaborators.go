package pipeline

import (
	"context"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// Detector produces face landmarks. DetectLandmarks blocks until the next
// frame is analysed and returns nil with no error when no face was found.
// A finite source signals its end with io.EOF.
type Detector interface {
	Initialize(ctx context.Context, useGPU bool) error
	DetectLandmarks(ctx context.Context) (*gaze.FaceLandmarkResult, error)
	IsReady() bool
	IsUsingGPU() bool
	Close() error
}

// Storage persists calibration records and settings primitives.
//
// LoadCalibrationData returns gaze.ErrNotFound when no record exists for
// the mode and an error wrapping gaze.ErrCorruptRecord when the stored
// record is incomplete or inconsistent. The primitive loaders return def
// when the key is absent and an error wrapping gaze.ErrCorruptValue, with
// def, when the stored text does not parse.
type Storage interface {
	SaveCalibrationData(ctx context.Context, mode gaze.CalibrationMode, data gaze.CalibrationData) error
	LoadCalibrationData(ctx context.Context, mode gaze.CalibrationMode) (gaze.CalibrationData, error)
	DeleteCalibrationData(ctx context.Context, mode gaze.CalibrationMode) error

	SaveString(ctx context.Context, key, value string) error
	LoadString(ctx context.Context, key, def string) (string, error)
	SaveFloat(ctx context.Context, key string, value float64) error
	LoadFloat(ctx context.Context, key string, def float64) (float64, error)
	SaveBool(ctx context.Context, key string, value bool) error
	LoadBool(ctx context.Context, key string, def bool) (bool, error)
	SaveInt(ctx context.Context, key string, value int) error
	LoadInt(ctx context.Context, key string, def int) (int, error)
}
