// Package kinematics implements the Ackermann (bicycle model) geometry used to
// predict the vehicle's swept path for the current steering angle.
//
// All downstream geometry works in a canonical frame: turning left, moving
// forward. The sign of the steering angle and of the velocity are factored
// out into InvertX and InvertY, which the scan projector applies to every
// obstacle point.
package kinematics

import "math"

// Vehicle describes the fixed geometry of the vehicle.
type Vehicle struct {
	Length          float64 // wheelbase, metres
	HalfWidth       float64 // metres
	SteeringEpsilon float64 // |steer| at or below this is straight travel, radians
}

// State is a snapshot of the vehicle's motion used for one prediction pass.
type State struct {
	SteeringAngle float64 `json:"steering_angle"` // radians, positive turns left
	Velocity      float64 `json:"velocity"`       // m/s, forward positive
}

// Frame is the kinematic frame derived from a State. It is recomputed on every
// scan and never stored.
type Frame struct {
	// TurningRadius is +Inf for straight-line travel.
	TurningRadius float64
	InnerRadius   float64
	OuterRadius   float64
	InvertX       float64 // -1 when steering right
	InvertY       float64 // -1 when reversing
	HalfWidth     float64
}

// TurningRadius returns length / tan(|steer|), or +Inf when |steer| <= eps.
// Small angles are cut off so tan() noise near zero is not amplified into a
// spuriously tight turn.
func TurningRadius(steer, length, eps float64) float64 {
	a := math.Abs(steer)
	if !(a > eps) {
		return math.Inf(1)
	}
	return length / math.Tan(a)
}

// NewFrame derives the kinematic frame for s.
func NewFrame(v Vehicle, s State) Frame {
	f := Frame{
		InvertX:   1,
		InvertY:   1,
		HalfWidth: v.HalfWidth,
	}
	if s.SteeringAngle < 0 {
		f.InvertX = -1
	}
	if s.Velocity < 0 {
		f.InvertY = -1
	}

	f.TurningRadius = TurningRadius(s.SteeringAngle, v.Length, v.SteeringEpsilon)
	f.InnerRadius = f.TurningRadius - v.HalfWidth
	f.OuterRadius = f.TurningRadius + v.HalfWidth
	return f
}

// Straight reports whether the frame describes straight-line travel.
func (f Frame) Straight() bool {
	return math.IsInf(f.TurningRadius, 1)
}

// Degenerate reports whether the turn is so tight that the inner wheel path
// reaches or crosses the turn centre (R <= half width). The swept region is
// then the whole disk inside OuterRadius.
func (f Frame) Degenerate() bool {
	return !f.Straight() && f.InnerRadius <= 0
}

// Reversing reports whether the frame was built for negative velocity.
func (f Frame) Reversing() bool {
	return f.InvertY < 0
}
