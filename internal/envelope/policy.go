package envelope

import "math"

// Continuous limits speed to the stopping curve of the closest obstacle.
type Continuous struct {
	Limits Limits
}

// Name implements Policy.
func (Continuous) Name() string { return "continuous" }

// Begin implements Policy.
func (c Continuous) Begin(limit, _ float64) Reducer {
	return &continuousReducer{limits: c.Limits, limit: limit}
}

type continuousReducer struct {
	limits Limits
	limit  float64
}

func (r *continuousReducer) Observe(d float64) {
	r.limit = math.Min(r.limit, MaxVelocity(d, r.limits))
}

func (r *continuousReducer) Limit() float64 { return r.limit }

// Discrete is the count-based brake: when more than MinCollisions in-path
// obstacles would be reached within the braking horizon, the limit drops to
// zero, otherwise the vehicle is unrestricted.
type Discrete struct {
	AutobrakeTime float64 // base horizon, seconds
	MinCollisions int
}

// Name implements Policy.
func (Discrete) Name() string { return "discrete" }

// Begin implements Policy.
func (d Discrete) Begin(limit, speed float64) Reducer {
	return &discreteReducer{
		limit:   limit,
		speed:   speed,
		horizon: AutobrakeTime(d.AutobrakeTime, speed),
		min:     d.MinCollisions,
	}
}

// AutobrakeTime widens the base horizon with speed, with an extra margin
// above 1.8 m/s.
func AutobrakeTime(base, speed float64) float64 {
	t := base + 0.1*speed
	if speed > 1.8 {
		t += 0.3
	}
	return t
}

type discreteReducer struct {
	limit   float64
	speed   float64
	horizon float64
	min     int
	count   int
}

func (r *discreteReducer) Observe(d float64) {
	if d < 0 || r.speed == 0 {
		return
	}
	if d/r.speed < r.horizon {
		r.count++
	}
}

func (r *discreteReducer) Limit() float64 {
	if r.count > r.min {
		return 0
	}
	return r.limit
}
