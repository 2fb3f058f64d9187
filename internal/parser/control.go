package parser

import "RoboCtl/internal/model"

// Clamp8 limits v to the signed byte range used by the motor sliders.
func Clamp8(v int) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}

// Mix converts speed/steering into differential left/right motor values.
// Positive steering turns right: the left track speeds up, the right slows down.
func Mix(in model.DriveInput) (left, right int8) {
	return Clamp8(in.Speed + in.Steering), Clamp8(in.Speed - in.Steering)
}

// ApplyDrive returns c with its motors set from the drive sliders.
func ApplyDrive(c model.ControlState, in model.DriveInput) model.ControlState {
	c.Left, c.Right = Mix(in)
	return c
}
