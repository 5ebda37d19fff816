// Package detector provides landmark sources that need no camera or model:
// a synthetic face generator for demos and tests, a replayer for recorded
// landmark streams, and a recorder that captures any detector's output.
//
// Recordings are JSON lines, one Frame per line. A frame with a nil Face
// records a "no face" detection so replays reproduce dropouts.
package detector
