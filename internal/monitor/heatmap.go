// Package monitor renders what the helm is deciding: echarts heatmaps of
// behavior surfaces, gonum plots of recorded encounters, and a websocket
// feed of cycle summaries.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/helm.avoid/internal/surface"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// Cells projects a surface onto its first two axes. Extra axes collapse
// to their maximum. The result is indexed [x][y].
func Cells(s *surface.Surface) ([][]float64, error) {
	axes := s.Domain.Axes()
	if len(axes) == 0 {
		return nil, errors.New("monitor: surface has no domain")
	}
	nx, ny := axes[0].Points, 1
	if len(axes) > 1 {
		ny = axes[1].Points
	}
	rest := s.Domain.Size() / (nx * ny)

	cells := make([][]float64, nx)
	for x := range cells {
		cells[x] = make([]float64, ny)
		for y := range cells[x] {
			best := math.Inf(-1)
			base := (x*ny + y) * rest
			for k := 0; k < rest; k++ {
				best = math.Max(best, s.Values[base+k])
			}
			cells[x][y] = best
		}
	}
	return cells, nil
}

// SurfaceHeatmap charts a surface with its first axis across and its
// second axis up.
func SurfaceHeatmap(title string, s *surface.Surface, priority float64) (*charts.HeatMap, error) {
	cells, err := Cells(s)
	if err != nil {
		return nil, err
	}
	axes := s.Domain.Axes()

	xLabels := make([]string, axes[0].Points)
	for i := range xLabels {
		xLabels[i] = strconv.FormatFloat(axes[0].Value(i), 'f', -1, 64)
	}
	yName := ""
	yLabels := []string{"-"}
	if len(axes) > 1 {
		yName = axes[1].Name
		yLabels = make([]string, axes[1].Points)
		for i := range yLabels {
			yLabels[i] = strconv.FormatFloat(axes[1].Value(i), 'f', 2, 64)
		}
	}

	data := make([]opts.HeatMapData, 0, len(xLabels)*len(yLabels))
	for x, col := range cells {
		for y, v := range col {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{x, y, math.Round(v*10) / 10}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "1200px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("priority=%.1f weight=%.1f domain=%s", priority, s.Weight, s.Domain)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: axes[0].Name, Data: xLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: yName, Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        100,
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.SetXAxis(xLabels).AddSeries("utility", data)
	return hm, nil
}
