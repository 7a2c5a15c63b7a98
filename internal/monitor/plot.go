package monitor

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/helm.avoid/internal/db"
)

var seriesColors = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// PlotEncounters writes two PNGs into outputDir: priority.png, each
// behavior's priority per cycle, and track.png, own-ship's recorded
// track. series maps behavior name to its points in cycle order. It
// returns the written paths.
func PlotEncounters(outputDir string, order []string, series map[string][]db.CyclePoint) ([]string, error) {
	if len(order) == 0 {
		return nil, errors.New("monitor: nothing to plot")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	pPri := plot.New()
	pPri.Title.Text = "Behavior priority"
	pPri.X.Label.Text = "cycle"
	pPri.Y.Label.Text = "priority"
	pPri.Add(plotter.NewGrid())

	track := make(plotter.XYs, 0)
	seen := make(map[int]bool)
	for i, name := range order {
		points := series[name]
		if len(points) == 0 {
			continue
		}
		xys := make(plotter.XYs, 0, len(points))
		for _, p := range points {
			xys = append(xys, plotter.XY{X: float64(p.Cycle), Y: p.Priority})
			if p.HasOwn && !seen[p.Cycle] {
				seen[p.Cycle] = true
				track = append(track, plotter.XY{X: p.OwnX, Y: p.OwnY})
			}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		line.Color = seriesColors[i%len(seriesColors)]
		line.Width = vg.Points(1.5)
		pPri.Add(line)
		pPri.Legend.Add(name, line)
	}

	var written []string
	priPath := filepath.Join(outputDir, "priority.png")
	if err := pPri.Save(10*vg.Inch, 4*vg.Inch, priPath); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", priPath, err)
	}
	written = append(written, priPath)

	if len(track) == 0 {
		return written, nil
	}
	pTrack := plot.New()
	pTrack.Title.Text = "Own-ship track"
	pTrack.X.Label.Text = "x (m)"
	pTrack.Y.Label.Text = "y (m)"
	pTrack.Add(plotter.NewGrid())
	trackLine, err := plotter.NewLine(track)
	if err != nil {
		return nil, err
	}
	trackLine.Color = seriesColors[0]
	pTrack.Add(trackLine)

	trackPath := filepath.Join(outputDir, "track.png")
	if err := pTrack.Save(6*vg.Inch, 6*vg.Inch, trackPath); err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", trackPath, err)
	}
	return append(written, trackPath), nil
}
