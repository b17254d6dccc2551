package filler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// Map generators.
const (
	GeneratorValue     = "value"
	GeneratorPotential = "potential"
)

var (
	ErrUnknownGenerator = errors.New("unknown generator")
	ErrBadMapStep       = errors.New("map step must be positive")
)

// PointEvaluator evaluates a parameter at a point and time.
type PointEvaluator interface {
	Evaluate(ctx context.Context, p model.GeoPoint, t time.Time) (float64, error)
}

// Stats summarises the non-missing cells of a map.
type Stats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	// Coverage is the fraction of cells holding a value.
	Coverage float64
}

// Map is a regular lon/lat grid of values. Rows run from north to south and
// missing cells are NaN.
type Map struct {
	Area      model.Area
	Time      time.Time
	Step      float64
	Width     int
	Height    int
	Generator string
	Values    []float64
	Stats     Stats
}

// At returns the value of column x, row y.
func (m *Map) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// CellCenter returns the geographic centre of column x, row y.
func (m *Map) CellCenter(x, y int) model.GeoPoint {
	return model.GeoPoint{
		Lon: m.Area.West + (float64(x)+0.5)*m.Step,
		Lat: m.Area.North - (float64(y)+0.5)*m.Step,
	}
}

// GenerateMap evaluates ev at the centre of every step×step degree cell of
// area at time t. GeneratorValue keeps the raw values; GeneratorPotential
// rescales them to [0,1]. Cells outside the coverage are NaN; other errors
// abort the map.
func GenerateMap(ctx context.Context, ev PointEvaluator, area model.Area, t time.Time, step float64, generator string) (*Map, error) {
	switch generator {
	case "", GeneratorValue:
		generator = GeneratorValue
	case GeneratorPotential:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, generator)
	}
	if !(step > 0) {
		return nil, fmt.Errorf("%w: %v", ErrBadMapStep, step)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "filler.GenerateMap")
	defer span.End()

	m := &Map{
		Area:      area,
		Time:      t,
		Step:      step,
		Width:     max(1, int(math.Ceil((area.East-area.West)/step))),
		Height:    max(1, int(math.Ceil((area.North-area.South)/step))),
		Generator: generator,
	}
	span.SetAttributes(
		attribute.String("generator", generator),
		attribute.Int("cells", m.Width*m.Height),
	)

	m.Values = make([]float64, m.Width*m.Height)
	for y := 0; y < m.Height; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < m.Width; x++ {
			v, err := ev.Evaluate(ctx, m.CellCenter(x, y), t)
			if err != nil {
				if !coverage.IsOutside(err) {
					return nil, fmt.Errorf("evaluate %s: %w", m.CellCenter(x, y), err)
				}
				v = math.NaN()
			}
			m.Values[y*m.Width+x] = v
		}
	}

	m.Stats = summarize(m.Values)
	if generator == GeneratorPotential {
		normalize(m.Values, m.Stats.Min, m.Stats.Max)
	}
	return m, nil
}

func present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func summarize(values []float64) Stats {
	ok := present(values)
	if len(ok) == 0 {
		nan := math.NaN()
		return Stats{Mean: nan, StdDev: nan, Min: nan, Max: nan}
	}
	s := Stats{
		Min:      floats.Min(ok),
		Max:      floats.Max(ok),
		Coverage: float64(len(ok)) / float64(len(values)),
	}
	if len(ok) == 1 {
		s.Mean = ok[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(ok, nil)
	return s
}

// normalize rescales values from [lo,hi] to [0,1] in place. A constant map
// becomes all zeros.
func normalize(values []float64, lo, hi float64) {
	span := hi - lo
	for i, v := range values {
		switch {
		case math.IsNaN(v):
		case span > 0:
			values[i] = (v - lo) / span
		default:
			values[i] = 0
		}
	}
}
