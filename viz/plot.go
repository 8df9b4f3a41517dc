// Package viz renders planner iterations to image files.
package viz

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/trajopt/splineplan/logging"
)

// Projection selects the two world axes drawn by a PlotSink.
type Projection int

// Supported projections.
const (
	ProjectionXY Projection = iota
	ProjectionXZ
	ProjectionYZ
)

func (p Projection) project(v r3.Vector) (float64, float64) {
	switch p {
	case ProjectionXZ:
		return v.X, v.Z
	case ProjectionYZ:
		return v.Y, v.Z
	default:
		return v.X, v.Y
	}
}

func (p Projection) labels() (string, string) {
	switch p {
	case ProjectionXZ:
		return "x", "z"
	case ProjectionYZ:
		return "y", "z"
	default:
		return "x", "y"
	}
}

// DefaultSaturation is the field value drawn fully green.
const DefaultSaturation = 0.5

// SDFColor maps a field value to a colour: red inside obstacles, through yellow, to green at saturation
// and beyond.
func SDFColor(sdf, saturation float64) colorful.Color {
	t := 0.
	if saturation > 0 {
		t = math.Max(0, math.Min(1, sdf/saturation))
	} else if sdf >= 0 {
		t = 1
	}
	return colorful.Hsv(120*t, 0.9, 0.9)
}

// PlotSink writes one PNG per iteration with every evaluated point coloured by its field value.
type PlotSink struct {
	dir        string
	projection Projection
	saturation float64
	size       vg.Length
	logger     logging.Logger
}

// Option configures a PlotSink.
type Option func(*PlotSink)

// WithProjection sets the axes to draw.
func WithProjection(p Projection) Option {
	return func(ps *PlotSink) {
		ps.projection = p
	}
}

// WithSaturation sets the field value drawn fully green.
func WithSaturation(s float64) Option {
	return func(ps *PlotSink) {
		ps.saturation = s
	}
}

// NewPlotSink creates a sink writing into dir, creating it if needed.
func NewPlotSink(dir string, logger logging.Logger, opts ...Option) (*PlotSink, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating plot directory %q", dir)
	}
	ps := &PlotSink{
		dir:        dir,
		projection: ProjectionXY,
		saturation: DefaultSaturation,
		size:       6 * vg.Inch,
		logger:     logger,
	}
	for _, o := range opts {
		o(ps)
	}
	return ps, nil
}

// Path returns the file written for id.
func (ps *PlotSink) Path(id string) string {
	return filepath.Join(ps.dir, id+".png")
}

// Visualize draws the points of one iteration.
func (ps *PlotSink) Visualize(points [][]r3.Vector, sdfValues [][]float64, id string) error {
	if len(points) != len(sdfValues) {
		return errors.Errorf("got %d point samples but %d sdf samples", len(points), len(sdfValues))
	}
	xys := plotter.XYs{}
	colors := []color.Color{}
	for s, row := range points {
		if len(row) != len(sdfValues[s]) {
			return errors.Errorf("sample %d has %d points but %d sdf values", s, len(row), len(sdfValues[s]))
		}
		for k, pt := range row {
			x, y := ps.projection.project(pt)
			xys = append(xys, plotter.XY{X: x, Y: y})
			colors = append(colors, SDFColor(sdfValues[s][k], ps.saturation))
		}
	}
	if len(xys) == 0 {
		return errors.New("nothing to plot")
	}

	p := plot.New()
	p.Title.Text = id
	p.X.Label.Text, p.Y.Label.Text = ps.projection.labels()
	p.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(xys)
	if err != nil {
		return err
	}
	scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		return draw.GlyphStyle{Color: colors[i], Radius: vg.Points(2), Shape: draw.CircleGlyph{}}
	}
	p.Add(scatter)

	path := ps.Path(id)
	if err := p.Save(ps.size, ps.size, path); err != nil {
		return errors.Wrapf(err, "saving plot %q", path)
	}
	if ps.logger != nil {
		ps.logger.Debugw("wrote plot", "path", path, "points", len(xys))
	}
	return nil
}
