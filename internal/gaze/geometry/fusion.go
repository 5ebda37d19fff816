package geometry

import (
	"github.com/banshee-data/gazepoint/internal/gaze"
)

// CombineGaze fuses the per-eye gaze vectors. BothEyes averages two valid
// eyes and falls back to whichever one is valid. A single-eye selection
// returns that eye or no gaze when it is invalid.
func CombineGaze(left gaze.Vec2, leftValid bool, right gaze.Vec2, rightValid bool, sel gaze.EyeSelection) (gaze.Vec2, bool) {
	switch sel {
	case gaze.LeftEyeOnly:
		if leftValid {
			return left, true
		}
	case gaze.RightEyeOnly:
		if rightValid {
			return right, true
		}
	case gaze.BothEyes:
		switch {
		case leftValid && rightValid:
			return gaze.Vec2{X: (left.X + right.X) / 2, Y: (left.Y + right.Y) / 2}, true
		case leftValid:
			return left, true
		case rightValid:
			return right, true
		}
	}
	return gaze.Vec2{}, false
}
