// Package geometry turns one frame of face landmarks into a raw gaze point.
//
// The calculator scales landmarks into pixel-proportional space, estimates
// a ratio-based head pose, measures each eye (iris position and blink
// confidence), compensates for head rotation and fuses the two eyes into a
// single raw gaze vector. Nothing here keeps state between frames.
package geometry
