// Package vehicle holds the most recent steering and velocity reported by the
// vehicle microcontroller.
package vehicle

import (
	"sync"
	"time"

	"github.com/banshee-data/autobrake/internal/kinematics"
	"github.com/banshee-data/autobrake/internal/timeutil"
)

// Report is a vehicle state report as sent by the microcontroller. Its
// steering sign convention is opposite to the one used by the geometry.
type Report struct {
	Velocity      float64 `json:"velocity"`
	SteeringAngle float64 `json:"steering_angle"`
}

// Movement is a commanded speed and steering angle.
type Movement struct {
	Speed         float64 `json:"speed"`
	SteeringAngle float64 `json:"steering_angle"`
}

// Status is a point-in-time copy of everything the tracker holds.
type Status struct {
	State          kinematics.State `json:"state"`
	TargetVelocity float64          `json:"target_velocity"`
	Updated        time.Time        `json:"updated"`
	Reports        uint64           `json:"reports"`
}

// Tracker stores the vehicle state. Steering and velocity are always read and
// written together, so a reader never sees a steering angle from one report
// paired with the velocity of another.
type Tracker struct {
	clock timeutil.Clock

	mu      sync.RWMutex
	state   kinematics.State
	target  float64
	updated time.Time
	reports uint64
}

// NewTracker returns a tracker holding the zero state (straight, stopped).
func NewTracker(clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{clock: clock}
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() kinematics.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Set replaces the state as given, without any sign conversion.
func (t *Tracker) Set(s kinematics.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	t.updated = t.clock.Now()
	t.reports++
}

// Ingest stores a microcontroller report. The steering angle is negated to
// match the projector's convention.
func (t *Tracker) Ingest(r Report) {
	t.Set(kinematics.State{
		SteeringAngle: -r.SteeringAngle,
		Velocity:      r.Velocity,
	})
}

// SetTarget records the commanded speed. It does not influence the envelope.
func (t *Tracker) SetTarget(m Movement) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.target = m.Speed
}

// TargetVelocity returns the last commanded speed.
func (t *Tracker) TargetVelocity() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.target
}

// Status returns a copy of the tracker's contents.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Status{
		State:          t.state,
		TargetVelocity: t.target,
		Updated:        t.updated,
		Reports:        t.reports,
	}
}
