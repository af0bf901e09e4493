// Package collision decides which obstacle points lie in the vehicle's swept
// path and how far along that path each one is.
//
// Points are expected in the canonical frame produced by the scan projector:
// turning left about a centre at (-R, 0), moving towards +Y.
package collision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/banshee-data/autobrake/internal/kinematics"
)

// Hit is an in-path obstacle and its distance along the path.
type Hit struct {
	Point    r2.Vec
	Distance float64
}

// PathDistance reports whether p lies in the path swept by the vehicle under f
// and, if so, the distance travelled before reaching it.
//
// Straight travel uses the corridor |x| < half width; points behind the
// vehicle are not in path. Turning uses the annulus between the inner and
// outer wheel radii and measures arc length R*phi, with phi the angle about
// the turn centre in [0, 2pi).
func PathDistance(f kinematics.Frame, p r2.Vec) (float64, bool) {
	if f.Straight() {
		if math.Abs(p.X) >= f.HalfWidth || p.Y < 0 {
			return 0, false
		}
		return p.Y, true
	}

	r := f.TurningRadius
	rho := math.Hypot(p.X+r, p.Y)
	if !inSweep(f, rho) {
		return 0, false
	}

	phi := math.Atan2(p.Y, r+p.X)
	if phi < 0 {
		phi += 2 * math.Pi
	}
	phi = math.Mod(phi, 2*math.Pi)
	return r * phi, true
}

// inSweep tests rho against the swept region. The annulus test is order
// independent. When the turn is tighter than the half width the inner wheel
// path collapses through the centre, and the whole disk inside the outer
// radius is swept.
func inSweep(f kinematics.Frame, rho float64) bool {
	if f.Degenerate() {
		return rho < f.OuterRadius
	}
	lo, hi := f.InnerRadius, f.OuterRadius
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo < rho && rho < hi
}

// Predict returns every point of pts that lies in the swept path, in input
// order.
func Predict(f kinematics.Frame, pts []r2.Vec) []Hit {
	var hits []Hit
	for _, p := range pts {
		if d, ok := PathDistance(f, p); ok {
			hits = append(hits, Hit{Point: p, Distance: d})
		}
	}
	return hits
}
