// Package gaze owns the value types shared by every stage of the gaze
// estimation pipeline.
//
// Responsibilities: landmark and frame types produced by the detector,
// per-frame gaze results, calibration samples and fitted calibration data,
// and the closed configuration enumerations (smoothing mode, eye
// selection, tracking method, calibration mode).
//
// Dependency rule: this package depends on nothing else in the module.
// Numerical stages live in the filter, calibration and geometry
// subpackages; the per-frame orchestration lives in pipeline.
package gaze
