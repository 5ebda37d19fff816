package geometry

import (
	"math"

	"github.com/banshee-data/gazepoint/internal/gaze"
)

// EstimateHeadPose derives yaw, pitch and roll from landmark ratios.
//
//   - yaw: horizontal position of the nose tip between the outer eye
//     corners, as asin of the signed asymmetry ratio;
//   - pitch: vertical position of the nose tip between the eye line and the
//     mouth line, relative to PitchNeutralRatio;
//   - roll: angle of the line joining the outer eye corners.
//
// Each angle is clamped to ±MaxHeadAngle. A degenerate face yields zero for
// the affected angle.
func (c Config) EstimateHeadPose(points []gaze.LandmarkPoint) gaze.HeadPose {
	nose := points[gaze.NoseTip]
	rightOuter := points[gaze.RightEye.Outer] // image left
	leftOuter := points[gaze.LeftEye.Outer]   // image right
	mouthRight := points[gaze.MouthRightCorner]
	mouthLeft := points[gaze.MouthLeftCorner]

	var pose gaze.HeadPose

	dl := nose.X - rightOuter.X
	dr := leftOuter.X - nose.X
	if span := dl + dr; span > 0 {
		pose.Yaw = degrees(math.Asin(clamp((dl-dr)/span, -1, 1)))
	}

	eyeY := (rightOuter.Y + leftOuter.Y) / 2
	mouthY := (mouthRight.Y + mouthLeft.Y) / 2
	neutral := c.PitchNeutralRatio
	if span := mouthY - eyeY; span > 0 && neutral > 0 && neutral < 1 {
		ratio := (nose.Y - eyeY) / span
		// Rescale so both the eye line and the mouth line sit at ±1.
		var d float64
		if ratio >= neutral {
			d = (ratio - neutral) / (1 - neutral)
		} else {
			d = (ratio - neutral) / neutral
		}
		pose.Pitch = degrees(math.Asin(clamp(d, -1, 1)))
	}

	dx := leftOuter.X - rightOuter.X
	dy := leftOuter.Y - rightOuter.Y
	if dx != 0 || dy != 0 {
		pose.Roll = degrees(math.Atan2(dy, dx))
	}

	limit := math.Abs(c.MaxHeadAngle)
	pose.Yaw = clamp(pose.Yaw, -limit, limit)
	pose.Pitch = clamp(pose.Pitch, -limit, limit)
	pose.Roll = clamp(pose.Roll, -limit, limit)
	return pose
}

// ApplyHeadPoseCompensation offsets a per-eye gaze vector for head
// rotation. With CompensateRoll the vector is first rotated back by the
// roll angle. Yaw and pitch then add a linear offset whose magnitude per
// axis never exceeds MaxCompensation.
func (c Config) ApplyHeadPoseCompensation(g gaze.Vec2, pose gaze.HeadPose) gaze.Vec2 {
	if c.CompensateRoll && pose.Roll != 0 {
		r := radians(pose.Roll)
		sin, cos := math.Sincos(r)
		g = gaze.Vec2{X: g.X*cos + g.Y*sin, Y: -g.X*sin + g.Y*cos}
	}
	limit := math.Abs(c.MaxCompensation)
	return gaze.Vec2{
		X: g.X + clamp(c.YawGain*pose.Yaw, -limit, limit),
		Y: g.Y + clamp(c.PitchGain*pose.Pitch, -limit, limit),
	}
}
