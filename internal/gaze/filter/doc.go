// Package filter smooths the fused raw gaze point.
//
// Responsibilities: a constant-velocity Kalman filter over [x, y, vx, vy],
// a velocity-adaptive variant that rescales measurement noise between
// fixations and saccades, a linear interpolation smoother, and the
// Smoother interface that selects one of them per gaze.SmoothingMode.
//
// Filters are not safe for concurrent use; each is owned by one pipeline.
package filter
