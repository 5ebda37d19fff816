// Package calibration fits the transform from raw gaze units to screen
// pixels.
//
// A session shows nine targets on a 3×3 grid, collects raw gaze samples per
// target, rejects per-axis IQR outliers and solves the least-squares normal
// equations for an affine (1, x, y) or polynomial (1, x, y, x², y², xy)
// basis. The fitted CalibrationData can be exported and re-imported, and is
// persisted through the six-field text Record in codec.go.
//
// Responsibilities:
//   - target layout (GenerateCalibrationPoints)
//   - sample collection and the Idle → Collecting → Computed state machine
//   - outlier rejection, fitting and error scoring
//   - the persisted record format
//
// Engine is not safe for concurrent use; the pipeline serialises access.
package calibration
