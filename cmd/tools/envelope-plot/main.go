// Command envelope-plot renders the stopping curve and the discrete policy's
// look-ahead distance for a config file as PNGs.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/autobrake/internal/config"
	"github.com/banshee-data/autobrake/internal/envelope"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "autobrake config")
	outDir := flag.String("o", ".", "output directory")
	maxDist := flag.Float64("max-distance", 4, "largest obstacle distance to plot (m)")
	samples := flag.Int("n", 400, "samples per curve")
	flag.Parse()

	cfg, err := config.LoadAutobrakeConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	curve, err := stoppingCurve(cfg, *maxDist, *samples)
	if err != nil {
		log.Fatalf("stopping curve: %v", err)
	}
	horizon, err := horizonCurve(cfg, *samples)
	if err != nil {
		log.Fatalf("horizon curve: %v", err)
	}

	for name, p := range map[string]*plot.Plot{
		"stopping_curve.png":   curve,
		"discrete_horizon.png": horizon,
	} {
		path := filepath.Join(*outDir, name)
		if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
			log.Fatalf("failed to save %s: %v", path, err)
		}
		log.Printf("wrote %s", path)
	}
}

func limitsOf(cfg *config.AutobrakeConfig) envelope.Limits {
	return envelope.Limits{
		MaxVelocity:       cfg.GetMaxVelocity(),
		MinVelocity:       cfg.GetMinVelocity(),
		AutobrakeDistance: cfg.GetAutobrakeDistance(),
	}
}

// stoppingCurve plots the permitted speed against path distance, with the
// autobrake distance marked.
func stoppingCurve(cfg *config.AutobrakeConfig, maxDist float64, n int) (*plot.Plot, error) {
	if n < 2 || !(maxDist > 0) {
		return nil, fmt.Errorf("need at least 2 samples over a positive distance")
	}
	l := limitsOf(cfg)

	pts := make(plotter.XYs, n)
	for i := range pts {
		d := maxDist * float64(i) / float64(n-1)
		pts[i] = plotter.XY{X: d, Y: envelope.MaxVelocity(d, l)}
	}

	p := plot.New()
	p.Title.Text = "Permitted speed vs path distance"
	p.X.Label.Text = "Distance along path (m)"
	p.Y.Label.Text = "Speed (m/s)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line, plotter.NewGrid())
	p.Legend.Add("MaxVelocity(d)", line)

	capPts := plotter.XYs{{X: 0, Y: l.MaxVelocity}, {X: maxDist, Y: l.MaxVelocity}}
	capLine, err := plotter.NewLine(capPts)
	if err != nil {
		return nil, err
	}
	capLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	capLine.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(capLine)
	p.Legend.Add(fmt.Sprintf("max_velocity %.2f", l.MaxVelocity), capLine)

	stop := plotter.XYs{{X: l.AutobrakeDistance, Y: 0}, {X: l.AutobrakeDistance, Y: l.MaxVelocity}}
	stopLine, err := plotter.NewLine(stop)
	if err != nil {
		return nil, err
	}
	stopLine.Dashes = []vg.Length{vg.Points(2), vg.Points(2)}
	p.Add(stopLine)
	p.Legend.Add(fmt.Sprintf("autobrake_distance %.2f", l.AutobrakeDistance), stopLine)

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// horizonCurve plots how far ahead the discrete policy counts obstacles at
// each speed: speed times AutobrakeTime(speed).
func horizonCurve(cfg *config.AutobrakeConfig, n int) (*plot.Plot, error) {
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 samples")
	}
	maxSpeed := cfg.GetMaxVelocity()
	base := cfg.GetAutobrakeTime()

	pts := make(plotter.XYs, n)
	for i := range pts {
		v := maxSpeed * float64(i) / float64(n-1)
		pts[i] = plotter.XY{X: v, Y: v * envelope.AutobrakeTime(base, v)}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Discrete policy look-ahead (brake on > %d obstacles)", cfg.GetMinCollisionsForBrake())
	p.X.Label.Text = "Speed (m/s)"
	p.Y.Label.Text = "Look-ahead distance (m)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	p.Add(line, plotter.NewGrid())
	p.Legend.Add(fmt.Sprintf("autobrake_time %.2fs", base), line)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}
