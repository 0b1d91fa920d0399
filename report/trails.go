package report

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/LdDl/mot-pose/mot"
)

// ErrNoTrails is returned when there is nothing to plot
var ErrNoTrails = errors.New("no trails to plot")

// TrackTrail is the center path of a single track in image coordinates
type TrackTrail struct {
	TrackID int
	Points  []mot.Point
}

// TrailsPlot builds a plot with one line per track. Y axis grows downwards as in the image.
func TrailsPlot(title string, trails []TrackTrail) (*plot.Plot, error) {
	if len(trails) == 0 {
		return nil, ErrNoTrails
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}
	p.Add(plotter.NewGrid())

	for i, trail := range trails {
		if len(trail.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(trail.Points))
		for _, point := range trail.Points {
			pts = append(pts, plotter.XY{X: point.X, Y: point.Y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("trail of track %d: %w", trail.TrackID, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)

		// Marks where the track was started
		start, err := plotter.NewScatter(pts[:1])
		if err != nil {
			return nil, fmt.Errorf("start of track %d: %w", trail.TrackID, err)
		}
		start.Color = plotutil.Color(i)
		start.Shape = draw.CircleGlyph{}
		start.Radius = vg.Points(3)

		p.Add(line, start)
		p.Legend.Add(fmt.Sprintf("track %d", trail.TrackID), line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// PlotTrails renders trails into an image file. Format follows the file extension (png, svg, pdf...).
func PlotTrails(path, title string, trails []TrackTrail) error {
	p, err := TrailsPlot(title, trails)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %q: %w", path, err)
	}
	return nil
}
