package scan

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/autobrake/internal/kinematics"
)

// Mount describes how the LIDAR sits on the vehicle.
type Mount struct {
	// RotationalOffset is added to every bearing. The default of pi turns a
	// sensor whose zero points backwards into the vehicle's forward axis.
	RotationalOffset float64
	// LateralOffset is the sensor's sideways distance from the front axle
	// centre, in metres.
	LateralOffset float64
}

// Sample is one valid return: its range and its bearing in the vehicle frame.
type Sample struct {
	Index   int
	Range   float64
	Bearing float64
}

// Samples returns the valid returns of m with bearings corrected for the
// mount. Invalid returns are discarded; the second result counts them.
func Samples(m *LaserScan, mount Mount) ([]Sample, int) {
	out := make([]Sample, 0, len(m.Ranges))
	dropped := 0
	base := mount.RotationalOffset + float64(m.AngleMin)
	inc := float64(m.AngleIncrement)
	for i, r := range m.Ranges {
		if !m.Valid(r) {
			dropped++
			continue
		}
		out = append(out, Sample{
			Index:   i,
			Range:   float64(r),
			Bearing: base + float64(i)*inc,
		})
	}
	return out, dropped
}

// Projection is the result of projecting one scan.
type Projection struct {
	// Points are in the canonical frame of the kinematic frame used: X is
	// lateral, Y forward, both already multiplied by the frame's inversions.
	Points  []r2.Vec
	Kept    int
	Dropped int
}

// Projector converts scan samples into canonical vehicle-frame points.
type Projector struct {
	Mount Mount
}

// Point projects a single sample under f.
func (p Projector) Point(s Sample, f kinematics.Frame) r2.Vec {
	sin, cos := math.Sincos(s.Bearing)
	return r2.Vec{
		X: f.InvertX * (s.Range*sin + p.Mount.LateralOffset),
		Y: f.InvertY * (s.Range * cos),
	}
}

// Project projects every valid return of m under f.
func (p Projector) Project(m *LaserScan, f kinematics.Frame) Projection {
	samples, dropped := Samples(m, p.Mount)
	pts := make([]r2.Vec, len(samples))
	for i, s := range samples {
		pts[i] = p.Point(s, f)
	}
	return Projection{Points: pts, Kept: len(samples), Dropped: dropped}
}
