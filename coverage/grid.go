package coverage

import (
	"math"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// Grid is one georeferenced raster slice in a geographic coordinate system.
// Cell (col, row) covers longitudes West+col*CellWidth to West+(col+1)*CellWidth
// and latitudes North-(row+1)*CellHeight to North-row*CellHeight. Missing
// values are NaN.
type Grid struct {
	West, North           float64
	CellWidth, CellHeight float64
	Width, Height, Bands  int
	// Values are stored band after band, rows from north to south.
	Values []float32
}

// NewGrid allocates a grid filled with NaN.
func NewGrid(west, north, cellWidth, cellHeight float64, width, height, bands int) *Grid {
	g := &Grid{
		West:       west,
		North:      north,
		CellWidth:  cellWidth,
		CellHeight: cellHeight,
		Width:      width,
		Height:     height,
		Bands:      bands,
		Values:     make([]float32, width*height*bands),
	}
	nan := float32(math.NaN())
	for i := range g.Values {
		g.Values[i] = nan
	}
	return g
}

// Area returns the geographic extent of the grid.
func (g *Grid) Area() model.Area {
	return model.Area{
		West:  g.West,
		East:  g.West + float64(g.Width)*g.CellWidth,
		South: g.North - float64(g.Height)*g.CellHeight,
		North: g.North,
	}
}

// Contains reports whether p falls inside the grid extent.
func (g *Grid) Contains(p model.GeoPoint) bool {
	return g.Area().Contains(p)
}

func (g *Grid) index(band, col, row int) int {
	return (band*g.Height+row)*g.Width + col
}

// At returns the value of a cell.
func (g *Grid) At(band, col, row int) float64 {
	return float64(g.Values[g.index(band, col, row)])
}

// Set stores the value of a cell.
func (g *Grid) Set(band, col, row int, v float64) {
	g.Values[g.index(band, col, row)] = float32(v)
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := *g
	c.Values = append([]float32(nil), g.Values...)
	return &c
}

// CellCenter returns the geographic position of the centre of a cell.
func (g *Grid) CellCenter(col, row int) model.GeoPoint {
	return model.GeoPoint{
		Lon: g.West + (float64(col)+0.5)*g.CellWidth,
		Lat: g.North - (float64(row)+0.5)*g.CellHeight,
	}
}

// Interpolate returns the bilinear interpolation of band at p between the
// four surrounding cell centres. Missing neighbours are left out and the
// weights of the others renormalized; the result is NaN only when all four
// are missing. Points between the outermost centres and the grid edge use
// the edge cells.
func (g *Grid) Interpolate(band int, p model.GeoPoint) float64 {
	fc := clamp((p.Lon-g.West)/g.CellWidth-0.5, 0, float64(g.Width-1))
	fr := clamp((g.North-p.Lat)/g.CellHeight-0.5, 0, float64(g.Height-1))

	c0, r0 := int(math.Floor(fc)), int(math.Floor(fr))
	c1, r1 := min(c0+1, g.Width-1), min(r0+1, g.Height-1)
	fx, fy := fc-float64(c0), fr-float64(r0)

	var sum, weight float64
	add := func(col, row int, w float64) {
		if w == 0 {
			return
		}
		v := g.At(band, col, row)
		if math.IsNaN(v) {
			return
		}
		sum += v * w
		weight += w
	}
	add(c0, r0, (1-fx)*(1-fy))
	add(c1, r0, fx*(1-fy))
	add(c0, r1, (1-fx)*fy)
	add(c1, r1, fx*fy)

	if weight == 0 {
		return math.NaN()
	}
	return sum / weight
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
