// Package render draws potential maps and animal tracks as images.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/desruisseaux/Seagis-sub004/filler"
	"github.com/desruisseaux/Seagis-sub004/model"
)

var ErrEmpty = errors.New("nothing to draw")

// Size of saved images.
var (
	Width  = 10 * vg.Inch
	Height = 8 * vg.Inch
)

// mapGrid adapts a filler.Map to plotter.GridXYZ. Rows of the plot grow
// northward while map rows run from north to south.
type mapGrid struct {
	m        *filler.Map
	min, max float64
}

func (g mapGrid) Dims() (c, r int)   { return g.m.Width, g.m.Height }
func (g mapGrid) Z(c, r int) float64 { return g.m.At(c, g.m.Height-1-r) }
func (g mapGrid) X(c int) float64    { return g.m.CellCenter(c, 0).Lon }
func (g mapGrid) Y(r int) float64    { return g.m.CellCenter(0, g.m.Height-1-r).Lat }
func (g mapGrid) Min() float64       { return g.min }
func (g mapGrid) Max() float64       { return g.max }

// Printer returns a message printer for a BCP 47 locale such as "fr-FR".
// An unparsable locale falls back to English.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// Caption describes a map in the printer's locale.
func Caption(p *message.Printer, name string, m *filler.Map) string {
	if m.Stats.Coverage == 0 {
		return p.Sprintf("%s, %s: no data", name, m.Time.Format("2006-01-02"))
	}
	return p.Sprintf("%s, %s: mean %.3f, std dev %.3f, range %.3f to %.3f, coverage %.1f%%",
		name, m.Time.Format("2006-01-02"),
		m.Stats.Mean, m.Stats.StdDev, m.Stats.Min, m.Stats.Max, m.Stats.Coverage*100)
}

// PotentialMap draws m as a heat map titled with name and saves it to path.
// The image format follows the file extension.
func PotentialMap(m *filler.Map, name string, p *message.Printer, path string) error {
	if m == nil || len(m.Values) == 0 {
		return ErrEmpty
	}
	pl, err := potentialPlot(m, name, p)
	if err != nil {
		return err
	}
	if err := pl.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save map: %w", err)
	}
	return nil
}

func potentialPlot(m *filler.Map, name string, p *message.Printer) (*plot.Plot, error) {
	lo, hi := m.Stats.Min, m.Stats.Max
	if m.Generator == filler.GeneratorPotential {
		lo, hi = 0, 1
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		lo, hi = 0, 1
	}
	if hi <= lo {
		hi = lo + 1
	}

	pl := plot.New()
	pl.Title.Text = Caption(p, name, m)
	pl.X.Label.Text = "Longitude"
	pl.Y.Label.Text = "Latitude"

	hm := plotter.NewHeatMap(mapGrid{m: m, min: lo, max: hi}, palette.Heat(16, 1))
	hm.NaN = color.Transparent
	pl.Add(hm)
	pl.X.Min, pl.X.Max = m.Area.West, m.Area.West+float64(m.Width)*m.Step
	pl.Y.Min, pl.Y.Max = m.Area.North-float64(m.Height)*m.Step, m.Area.North
	return pl, nil
}

// Track is the path followed by one animal.
type Track struct {
	ID     string
	Points []model.GeoPoint
}

// Tracks draws the animal tracks over area and saves them to path.
func Tracks(tracks []Track, area model.Area, title string, path string) error {
	pl, err := tracksPlot(tracks, area, title)
	if err != nil {
		return err
	}
	if err := pl.Save(Width, Height, path); err != nil {
		return fmt.Errorf("save tracks: %w", err)
	}
	return nil
}

func tracksPlot(tracks []Track, area model.Area, title string) (*plot.Plot, error) {
	drawn := 0
	for _, t := range tracks {
		if len(t.Points) > 0 {
			drawn++
		}
	}
	if drawn == 0 {
		return nil, ErrEmpty
	}

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "Longitude"
	pl.Y.Label.Text = "Latitude"
	pl.X.Min, pl.X.Max = area.West, area.East
	pl.Y.Min, pl.Y.Max = area.South, area.North

	colors := palette.Rainbow(max(drawn, 2), palette.Blue, palette.Red, 1, 1, 1).Colors()
	i := 0
	for _, t := range tracks {
		if len(t.Points) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(t.Points))
		for j, p := range t.Points {
			pts[j] = plotter.XY{X: p.Lon, Y: p.Lat}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("track %s: %w", t.ID, err)
		}
		line.Color = colors[i]
		line.Width = vg.Points(1)
		pl.Add(line)
		i++
	}
	return pl, nil
}
