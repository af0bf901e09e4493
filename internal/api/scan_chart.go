package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/autobrake/internal/httputil"
)

// AttachAdminRoutes adds the node's debug views under /debug/.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("scan-xy", "last scan in the vehicle frame", s.handleScanXY)
}

// handleScanXY renders the most recent scan's projected returns in the
// vehicle frame (x lateral, y forward), with the in-path returns overlaid.
func (s *Server) handleScanXY(w http.ResponseWriter, r *http.Request) {
	ev, ok := s.node.LastEvaluation()
	if !ok {
		httputil.NotFound(w, "no scan evaluated yet")
		return
	}

	all := make([]opts.ScatterData, 0, len(ev.Points))
	maxAbs := 0.0
	for _, p := range ev.Points {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(p.X), math.Abs(p.Y)))
		all = append(all, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	inPath := make([]opts.ScatterData, 0, len(ev.Hits))
	for _, h := range ev.Hits {
		inPath = append(inPath, opts.ScatterData{Value: []interface{}{h.Point.X, h.Point.Y, h.Distance}})
	}

	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1.0
	}

	b := ev.Bounds()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Autobrake scan (vehicle frame)", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Last scan",
			Subtitle: fmt.Sprintf("v=%.2f steer=%.3f policy=%s in_path=%d max=%.3f min=%.3f",
				ev.State.Velocity, ev.State.SteeringAngle, s.node.Settings().Envelope.Policy.Name(),
				len(ev.Hits), b.Max, b.Min),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("returns", all, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("in path", inPath, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	scatter.AddSeries("vehicle", []opts.ScatterData{{Value: []interface{}{0.0, 0.0}}},
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
