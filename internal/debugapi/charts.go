package debugapi

import (
	"bytes"
	"fmt"
	"maps"
	"net/http"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"tailscale.com/tsweb"

	"github.com/banshee-data/cellwatch/internal/grid"
	"github.com/banshee-data/cellwatch/internal/httputil"
)

// AttachAdminRoutes adds the grid charts and the preview frame to the tsweb
// debug index on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	debug.HandleFunc("grid-chart", "Interactive scatter of the current grid", s.handleGridChart)
	debug.HandleFunc("grid.png", "PNG plot of the current grid", s.handleGridPNG)
	if s.preview != nil {
		debug.HandleFunc("preview", "Latest preview frame from the detector", s.preview.serveHTTP)
	}
}

// byClass groups occupants by class ID, flipping rows so row 0 is at the
// top of a chart with an upward Y axis.
func byClass(snap *grid.Snapshot) (map[int][][2]float64, []int) {
	groups := make(map[int][][2]float64)
	for _, c := range snap.Cells {
		groups[c.ClassID] = append(groups[c.ClassID], [2]float64{
			float64(c.X), float64(snap.Height - 1 - c.Y),
		})
	}
	return groups, slices.Sorted(maps.Keys(groups))
}

func (s *Server) handleGridChart(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		httputil.Unavailable(w, "no grid snapshot yet")
		return
	}
	groups, classes := byClass(snap)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "cellwatch grid", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cell grid", Subtitle: fmt.Sprintf("%dx%d cells=%d stalled=%t", snap.Width, snap.Height, len(snap.Cells), snap.Stalled)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: snap.Width, Name: "column", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: snap.Height, Name: "row (flipped)", NameLocation: "middle", NameGap: 30}),
	)
	for _, class := range classes {
		data := make([]opts.ScatterData, 0, len(groups[class]))
		for _, p := range groups[class] {
			data = append(data, opts.ScatterData{Value: []interface{}{p[0], p[1]}})
		}
		scatter.AddSeries(fmt.Sprintf("class %d", class), data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleGridPNG(w http.ResponseWriter, r *http.Request) {
	snap := s.engine.Snapshot()
	if snap == nil {
		httputil.Unavailable(w, "no grid snapshot yet")
		return
	}
	p, err := gridPlot(snap)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}

	width := 6 * vg.Inch
	height := width
	if snap.Width > 0 && snap.Height > 0 {
		height = width * vg.Length(snap.Height) / vg.Length(snap.Width)
	}
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func gridPlot(snap *grid.Snapshot) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Grid %dx%d, %d cells", snap.Width, snap.Height, len(snap.Cells))
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row (flipped)"
	p.X.Min, p.X.Max = -1, float64(snap.Width)
	p.Y.Min, p.Y.Max = -1, float64(snap.Height)
	p.Add(plotter.NewGrid())

	groups, classes := byClass(snap)
	for i, class := range classes {
		xys := make(plotter.XYs, len(groups[class]))
		for j, pt := range groups[class] {
			xys[j] = plotter.XY{X: pt[0], Y: pt[1]}
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("class %d scatter: %w", class, err)
		}
		sc.GlyphStyle.Color = plotutil.Color(i)
		sc.GlyphStyle.Shape = draw.BoxGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("class %d", class), sc)
	}
	return p, nil
}
