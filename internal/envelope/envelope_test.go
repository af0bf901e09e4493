package envelope

import (
	"math"
	"testing"
)

var limits = Limits{MaxVelocity: 1.5, MinVelocity: -1.5, AutobrakeDistance: 0.2}

func TestMaxVelocityBelowAutobrakeIsZero(t *testing.T) {
	for _, d := range []float64{0, 0.01, 0.1, 0.199999} {
		if got := MaxVelocity(d, limits); got != 0 {
			t.Errorf("MaxVelocity(%v) = %v, want 0", d, got)
		}
	}
}

func TestMaxVelocityAtThresholdUsesCurve(t *testing.T) {
	got := MaxVelocity(limits.AutobrakeDistance, limits)
	want := -3.5 + math.Sqrt(49+40*0.2)/2 - 0.2
	if got != want {
		t.Errorf("MaxVelocity(threshold) = %v, want %v", got, want)
	}
	if got <= 0 {
		t.Errorf("MaxVelocity(threshold) = %v, want positive", got)
	}
}

func TestMaxVelocityNegativeDistanceIsUnrestricted(t *testing.T) {
	if got := MaxVelocity(-0.5, limits); got != limits.MaxVelocity {
		t.Errorf("MaxVelocity(-0.5) = %v, want %v", got, limits.MaxVelocity)
	}
}

func TestMaxVelocityMonotonic(t *testing.T) {
	prev := MaxVelocity(0, limits)
	for i := 1; i <= 5000; i++ {
		d := float64(i) * 0.002
		v := MaxVelocity(d, limits)
		if v < prev {
			t.Fatalf("MaxVelocity decreased at d=%v: %v < %v", d, v, prev)
		}
		prev = v
	}
}

func TestMaxVelocityKnownValue(t *testing.T) {
	// sqrt(89)/2 - 3.7
	got := MaxVelocity(1.0, limits)
	if math.Abs(got-1.01699) > 1e-4 {
		t.Errorf("MaxVelocity(1.0) = %v, want ~1.01699", got)
	}
}

func continuous() Envelope {
	return Envelope{Limits: limits, Policy: Continuous{Limits: limits}}
}

func TestReduceEmptyIsUnrestricted(t *testing.T) {
	for _, v := range []float64{0, 0.5, -0.3} {
		res := continuous().Reduce(nil, v)
		if res.Bounds != limits.Unrestricted() {
			t.Errorf("velocity %v: bounds = %+v, want %+v", v, res.Bounds, limits.Unrestricted())
		}
		if !math.IsInf(res.Closest, 1) {
			t.Errorf("Closest = %v, want +Inf", res.Closest)
		}
		if res.InPath != 0 {
			t.Errorf("InPath = %d", res.InPath)
		}
	}
}

func TestReduceForwardStopsInsideBuffer(t *testing.T) {
	res := continuous().Reduce([]float64{0.1}, 0.5)
	want := Bounds{Max: 0, Min: -1.5}
	if res.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", res.Bounds, want)
	}
	if limits.Restricted(res.Bounds) != true {
		t.Error("expected restricted bounds")
	}
}

func TestReduceReversingConstrainsMin(t *testing.T) {
	res := continuous().Reduce([]float64{1.0}, -0.3)
	if res.Bounds.Max != limits.MaxVelocity {
		t.Errorf("Max = %v, want %v", res.Bounds.Max, limits.MaxVelocity)
	}
	want := -MaxVelocity(1.0, limits)
	if res.Bounds.Min != want {
		t.Errorf("Min = %v, want %v", res.Bounds.Min, want)
	}
	if res.Bounds.Min > res.Bounds.Max {
		t.Error("Min exceeds Max")
	}
}

func TestReduceMostRestrictiveWins(t *testing.T) {
	res := continuous().Reduce([]float64{5, 0.8, 2.5, 1.2}, 1)
	if res.Limit != MaxVelocity(0.8, limits) {
		t.Errorf("Limit = %v, want %v", res.Limit, MaxVelocity(0.8, limits))
	}
	if res.Closest != 0.8 {
		t.Errorf("Closest = %v, want 0.8", res.Closest)
	}
	if res.InPath != 4 {
		t.Errorf("InPath = %d, want 4", res.InPath)
	}
}

func TestReduceFarObstacleClampedToLimit(t *testing.T) {
	res := continuous().Reduce([]float64{100}, 1)
	if res.Bounds.Max != limits.MaxVelocity {
		t.Errorf("Max = %v, want %v", res.Bounds.Max, limits.MaxVelocity)
	}
	if limits.Restricted(res.Bounds) {
		t.Error("far obstacle should leave bounds unrestricted")
	}
}

func TestAutobrakeTime(t *testing.T) {
	tests := []struct {
		speed float64
		want  float64
	}{
		{0, 0.7},
		{1, 0.8},
		{1.8, 0.88},
		{2, 0.7 + 0.2 + 0.3},
	}
	for _, tt := range tests {
		if got := AutobrakeTime(0.7, tt.speed); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("AutobrakeTime(0.7, %v) = %v, want %v", tt.speed, got, tt.want)
		}
	}
}

func TestDiscretePolicy(t *testing.T) {
	env := Envelope{Limits: limits, Policy: Discrete{AutobrakeTime: 0.7, MinCollisions: 3}}

	tests := []struct {
		name      string
		distances []float64
		velocity  float64
		wantMax   float64
		wantMin   float64
	}{
		// horizon at 1 m/s is 0.8 s, so 0.5 m is inside and 2 m is not
		{"three close is not enough", []float64{0.5, 0.5, 0.5}, 1, 1.5, -1.5},
		{"four close brakes", []float64{0.5, 0.5, 0.5, 0.5}, 1, 0, -1.5},
		{"far obstacles ignored", []float64{2, 2, 2, 2, 2}, 1, 1.5, -1.5},
		{"stationary never brakes", []float64{0.1, 0.1, 0.1, 0.1}, 0, 1.5, -1.5},
		{"reversing brakes the reverse bound", []float64{0.5, 0.5, 0.5, 0.5}, -1, 1.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := env.Reduce(tt.distances, tt.velocity)
			if res.Bounds.Max != tt.wantMax || res.Bounds.Min != tt.wantMin {
				t.Errorf("bounds = %+v, want {Max:%v Min:%v}", res.Bounds, tt.wantMax, tt.wantMin)
			}
		})
	}
}

func TestPolicyNames(t *testing.T) {
	if (Continuous{}).Name() != "continuous" || (Discrete{}).Name() != "discrete" {
		t.Error("unexpected policy names")
	}
}
