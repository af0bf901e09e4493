// Package envelope reduces in-path obstacle distances to the pair of velocity
// bounds the motor controller clamps against.
package envelope

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Limits are the vehicle's absolute velocity limits and the minimum stopping
// buffer.
type Limits struct {
	MaxVelocity       float64 // forward limit, m/s, positive
	MinVelocity       float64 // reverse limit, m/s, negative
	AutobrakeDistance float64 // metres; anything closer forces a stop
}

// Bounds are the published velocity envelope. Min <= Max always holds.
type Bounds struct {
	Max float64 `json:"max"`
	Min float64 `json:"min"`
}

// Unrestricted returns the bounds used when nothing is in the path.
func (l Limits) Unrestricted() Bounds {
	return Bounds{Max: l.MaxVelocity, Min: l.MinVelocity}
}

// Restricted reports whether b is tighter than the unrestricted bounds.
func (l Limits) Restricted(b Bounds) bool {
	return b.Max < l.MaxVelocity || b.Min > l.MinVelocity
}

// MaxVelocity maps a path distance to the highest speed from which the
// vehicle can still stop before covering it. The curve inverts a constant
// deceleration stopping distance and is non-decreasing in d.
func MaxVelocity(d float64, l Limits) float64 {
	if d < 0 {
		return l.MaxVelocity
	}
	if d < l.AutobrakeDistance {
		return 0
	}
	return math.Max(0, -3.5+math.Sqrt(49+40*d)/2-0.2)
}

// Reducer folds the in-path distances of one scan into a speed limit.
type Reducer interface {
	Observe(distance float64)
	Limit() float64
}

// Policy starts a Reducer for one pass. limit is the unrestricted speed
// magnitude in the direction of travel, speed the current |velocity|.
type Policy interface {
	Name() string
	Begin(limit, speed float64) Reducer
}

// Result is the outcome of one reduction.
type Result struct {
	Bounds  Bounds
	Limit   float64 // speed magnitude applied to the constrained bound
	InPath  int
	Closest float64 // +Inf when nothing is in path
}

// Envelope applies a Policy and assigns its limit to the bound in the
// direction of travel.
type Envelope struct {
	Limits Limits
	Policy Policy
}

// Reduce folds distances into bounds. Moving forward or standing still only
// the forward bound is constrained; reversing only the reverse bound is. The
// other bound stays at its absolute limit.
func (e Envelope) Reduce(distances []float64, velocity float64) Result {
	reversing := velocity < 0

	start := e.Limits.MaxVelocity
	if reversing {
		start = -e.Limits.MinVelocity
	}

	red := e.Policy.Begin(start, math.Abs(velocity))
	for _, d := range distances {
		red.Observe(d)
	}

	res := Result{
		Limit:   red.Limit(),
		InPath:  len(distances),
		Closest: math.Inf(1),
	}
	if len(distances) > 0 {
		res.Closest = floats.Min(distances)
	}

	res.Bounds = e.Limits.Unrestricted()
	if reversing {
		res.Bounds.Min = -res.Limit
	} else {
		res.Bounds.Max = res.Limit
	}
	return res
}
