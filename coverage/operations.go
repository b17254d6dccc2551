package coverage

import (
	"fmt"
	"math"

	"github.com/desruisseaux/Seagis-sub004/model"
)

func checkOperation(op *model.Operation) error {
	switch op.Name {
	case model.OperationNodataFilter, model.OperationSobel:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Name)
	}
	for _, name := range []string{"nodata", "min", "max", "scale"} {
		if _, err := op.Float(name, 0); err != nil {
			return err
		}
	}
	return nil
}

// ApplyOperation returns g transformed by op. g is never modified.
//
// NodataFilter replaces the "nodata" value and values outside ["min", "max"]
// with NaN. Sobel replaces every band by the magnitude of its gradient,
// per cell, multiplied by "scale".
func ApplyOperation(op *model.Operation, g *Grid) (*Grid, error) {
	if op == nil {
		return g, nil
	}
	if err := checkOperation(op); err != nil {
		return nil, err
	}
	switch op.Name {
	case model.OperationSobel:
		scale, _ := op.Float("scale", 1)
		return sobel(g, scale), nil
	default:
		nodata, _ := op.Float("nodata", math.NaN())
		lo, _ := op.Float("min", math.Inf(-1))
		hi, _ := op.Float("max", math.Inf(1))
		return nodataFilter(g, nodata, lo, hi), nil
	}
}

func nodataFilter(g *Grid, nodata, lo, hi float64) *Grid {
	out := g.Clone()
	nan := float32(math.NaN())
	for i, v := range out.Values {
		f := float64(v)
		if f == nodata || f < lo || f > hi {
			out.Values[i] = nan
		}
	}
	return out
}

// sobel computes the gradient magnitude with the 3×3 Sobel kernels. Cells
// with a missing neighbour and border cells are NaN.
func sobel(g *Grid, scale float64) *Grid {
	out := NewGrid(g.West, g.North, g.CellWidth, g.CellHeight, g.Width, g.Height, g.Bands)
	for b := 0; b < g.Bands; b++ {
		for row := 1; row < g.Height-1; row++ {
			for col := 1; col < g.Width-1; col++ {
				at := func(dc, dr int) float64 { return g.At(b, col+dc, row+dr) }
				gx := (at(1, -1) + 2*at(1, 0) + at(1, 1)) - (at(-1, -1) + 2*at(-1, 0) + at(-1, 1))
				gy := (at(-1, 1) + 2*at(0, 1) + at(1, 1)) - (at(-1, -1) + 2*at(0, -1) + at(1, -1))
				// NaN neighbours propagate through the sums
				out.Set(b, col, row, math.Hypot(gx, gy)/8*scale)
			}
		}
	}
	return out
}
