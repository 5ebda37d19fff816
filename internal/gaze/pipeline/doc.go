// Package pipeline drives the per-frame gaze pipeline.
//
// A Tracker pulls landmark frames from a Detector and turns each one into
// an Estimate:
//
//	detector → geometry → fusion → smoothing → calibration transform
//
// Responsibilities:
//   - enforce a single in-flight detection per tracker
//   - snapshot Settings once at the start of each frame
//   - hold or drop the last estimate when no face or no open eye is seen
//   - rebuild the smoother when the smoothing mode changes
//   - run the calibration lifecycle and persist it through Storage
//
// Dependency rule: pipeline depends on the gaze sub-packages, config and
// monitoring. Concrete detectors and stores are injected through the
// Detector and Storage interfaces and never imported here.
package pipeline
