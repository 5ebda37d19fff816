package gaze

// Face mesh landmark indices (MediaPipe FaceMesh topology with refined iris
// points). "Left" and "right" are the subject's own sides, so the right eye
// appears on the left of a non-mirrored image.
const (
	NoseTip          = 1
	NoseBridge       = 168
	Chin             = 152
	Forehead         = 10
	MouthRightCorner = 61
	MouthLeftCorner  = 291

	RightIrisCenter = 468
	LeftIrisCenter  = 473
)

// EyeIndices names the landmarks describing one eye. P1..P6 follow the
// eye-aspect-ratio convention: P1/P4 are the horizontal corners, P2/P6 and
// P3/P5 are vertically opposed lid pairs.
type EyeIndices struct {
	Outer, Inner int
	Upper, Lower int
	P1, P2, P3   int
	P4, P5, P6   int
	IrisCenter   int
	IrisRing     [4]int
}

// RightEye is the subject's right eye.
var RightEye = EyeIndices{
	Outer: 33, Inner: 133,
	Upper: 159, Lower: 145,
	P1: 33, P2: 160, P3: 158,
	P4: 133, P5: 153, P6: 144,
	IrisCenter: RightIrisCenter,
	IrisRing:   [4]int{469, 470, 471, 472},
}

// LeftEye is the subject's left eye.
var LeftEye = EyeIndices{
	Outer: 263, Inner: 362,
	Upper: 386, Lower: 374,
	P1: 362, P2: 385, P3: 387,
	P4: 263, P5: 373, P6: 380,
	IrisCenter: LeftIrisCenter,
	IrisRing:   [4]int{474, 475, 476, 477},
}

// Contour returns the eye outline points used for the bounding region.
func (e EyeIndices) Contour() []int {
	return []int{e.P1, e.P2, e.P3, e.P4, e.P5, e.P6, e.Upper, e.Lower}
}
