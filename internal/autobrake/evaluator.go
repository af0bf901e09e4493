// Package autobrake runs the velocity envelope node: it evaluates each range
// scan against the current vehicle state and publishes the latest bounds at a
// fixed rate.
package autobrake

import (
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/autobrake/internal/collision"
	"github.com/banshee-data/autobrake/internal/config"
	"github.com/banshee-data/autobrake/internal/envelope"
	"github.com/banshee-data/autobrake/internal/kinematics"
	"github.com/banshee-data/autobrake/internal/scan"
)

// Settings are the fixed parameters of a node.
type Settings struct {
	Vehicle         kinematics.Vehicle
	Mount           scan.Mount
	Envelope        envelope.Envelope
	PublishInterval time.Duration
}

// SettingsFromConfig resolves cfg, applying defaults for unset keys.
func SettingsFromConfig(cfg *config.AutobrakeConfig) Settings {
	limits := envelope.Limits{
		MaxVelocity:       cfg.GetMaxVelocity(),
		MinVelocity:       cfg.GetMinVelocity(),
		AutobrakeDistance: cfg.GetAutobrakeDistance(),
	}

	var policy envelope.Policy = envelope.Continuous{Limits: limits}
	if cfg.GetPolicy() == config.PolicyDiscrete {
		policy = envelope.Discrete{
			AutobrakeTime: cfg.GetAutobrakeTime(),
			MinCollisions: cfg.GetMinCollisionsForBrake(),
		}
	}

	return Settings{
		Vehicle: kinematics.Vehicle{
			Length:          cfg.GetVehicleLength(),
			HalfWidth:       cfg.GetVehicleWidth() / 2,
			SteeringEpsilon: cfg.GetSteeringEpsilon(),
		},
		Mount: scan.Mount{
			RotationalOffset: cfg.GetLidarRotationalOffset(),
			LateralOffset:    cfg.GetLidarLateralOffset(),
		},
		Envelope:        envelope.Envelope{Limits: limits, Policy: policy},
		PublishInterval: cfg.GetPublishInterval(),
	}
}

// Evaluation is the outcome of evaluating one scan.
type Evaluation struct {
	State   kinematics.State
	Frame   kinematics.Frame
	Result  envelope.Result
	Kept    int
	Dropped int
	// Points and Hits are in the canonical frame of Frame.
	Points []r2.Vec
	Hits   []collision.Hit
}

// Bounds is shorthand for e.Result.Bounds.
func (e Evaluation) Bounds() envelope.Bounds { return e.Result.Bounds }

// Evaluator is the pure per-scan computation. It holds no mutable state and
// is safe for concurrent use.
type Evaluator struct {
	settings  Settings
	projector scan.Projector
}

func NewEvaluator(s Settings) *Evaluator {
	return &Evaluator{settings: s, projector: scan.Projector{Mount: s.Mount}}
}

// Settings returns the evaluator's parameters.
func (e *Evaluator) Settings() Settings { return e.settings }

// Evaluate projects m under s, finds the in-path obstacles and reduces them to
// velocity bounds. The same inputs always give bit-identical bounds.
func (e *Evaluator) Evaluate(m *scan.LaserScan, s kinematics.State) Evaluation {
	f := kinematics.NewFrame(e.settings.Vehicle, s)
	proj := e.projector.Project(m, f)
	hits := collision.Predict(f, proj.Points)

	distances := make([]float64, len(hits))
	for i, h := range hits {
		distances[i] = h.Distance
	}

	return Evaluation{
		State:   s,
		Frame:   f,
		Result:  e.settings.Envelope.Reduce(distances, s.Velocity),
		Kept:    proj.Kept,
		Dropped: proj.Dropped,
		Points:  proj.Points,
		Hits:    hits,
	}
}
