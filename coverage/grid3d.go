package coverage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// SliceLoader reads slice i of a source.
type SliceLoader func(ctx context.Context, i int) (*Grid, error)

// Source is a time-ordered stack of grids loaded on first use. It is shared
// by every handle cloned from the same coverage and is safe for concurrent
// use.
type Source struct {
	name  string
	times []time.Time
	bands int
	load  SliceLoader

	mu    sync.Mutex
	grids map[int]*Grid
	loads int
}

// NewSource builds a source over slices acquired at times, which must be
// sorted in ascending order.
func NewSource(name string, times []time.Time, bands int, load SliceLoader) *Source {
	return &Source{
		name:  name,
		times: times,
		bands: bands,
		load:  load,
		grids: make(map[int]*Grid),
	}
}

// NewStaticSource wraps grids that are already in memory. grids[i] was
// acquired at times[i]; both are sorted by the caller.
func NewStaticSource(name string, times []time.Time, grids []*Grid) *Source {
	bands := 0
	if len(grids) > 0 {
		bands = grids[0].Bands
	}
	return NewSource(name, times, bands, func(_ context.Context, i int) (*Grid, error) {
		return grids[i], nil
	})
}

// Name identifies the source in logs and errors.
func (s *Source) Name() string { return s.name }

// Times returns the acquisition times of the slices.
func (s *Source) Times() []time.Time { return s.times }

// Loads is the number of slices read so far.
func (s *Source) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// WithOperation returns a new source whose slices are transformed by op.
// The identity operation returns s itself.
func (s *Source) WithOperation(op *model.Operation) (*Source, error) {
	if op == nil || (op.Name == model.OperationNodataFilter && len(op.Parameters) == 0) {
		return s, nil
	}
	if err := checkOperation(op); err != nil {
		return nil, err
	}
	name := s.name + "/" + op.Name
	return NewSource(name, s.times, s.bands, func(ctx context.Context, i int) (*Grid, error) {
		g, err := s.grid(ctx, i)
		if err != nil {
			return nil, err
		}
		return ApplyOperation(op, g)
	}), nil
}

func (s *Source) grid(ctx context.Context, i int) (*Grid, error) {
	s.mu.Lock()
	g, ok := s.grids[i]
	s.mu.Unlock()
	if ok {
		return g, nil
	}

	// Read outside the lock; a concurrent reader of the same slice may load
	// it twice and the first stored grid wins.
	g, err := s.load(ctx, i)
	if err != nil {
		return nil, fmt.Errorf("load %s slice %s: %w", s.name, s.times[i].Format(time.RFC3339), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.grids[i]; ok {
		return prev, nil
	}
	s.grids[i] = g
	s.loads++
	return g, nil
}

// bracket finds the slices around t. lower == upper when t is exactly a
// slice time.
func (s *Source) bracket(t time.Time) (lower, upper int, ok bool) {
	n := len(s.times)
	if n == 0 || t.Before(s.times[0]) || t.After(s.times[n-1]) {
		return 0, 0, false
	}
	i := sort.Search(n, func(i int) bool { return !s.times[i].Before(t) })
	if s.times[i].Equal(t) {
		return i, i, true
	}
	return i - 1, i, true
}

// GridCoverage3D interpolates a Source bilinearly in space and linearly in
// time between the two bracketing slices. Each handle remembers the last
// bracket it used, which makes ascending time queries cheap.
type GridCoverage3D struct {
	src *Source

	mu           sync.Mutex
	lower, upper int
	cached       bool
}

// NewGridCoverage3D returns a handle over src.
func NewGridCoverage3D(src *Source) *GridCoverage3D {
	return &GridCoverage3D{src: src}
}

// Name returns the source name.
func (c *GridCoverage3D) Name() string { return c.src.name }

// NumBands returns the number of bands of the source.
func (c *GridCoverage3D) NumBands() int { return c.src.bands }

// Source returns the shared data source.
func (c *GridCoverage3D) Source() *Source { return c.src }

// Clone returns a handle sharing the source with an empty bracket cache.
func (c *GridCoverage3D) Clone() Coverage {
	return &GridCoverage3D{src: c.src}
}

func (c *GridCoverage3D) bracket(t time.Time) (int, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached {
		lo, hi := c.src.times[c.lower], c.src.times[c.upper]
		if !t.Before(lo) && !t.After(hi) {
			if t.Equal(lo) {
				return c.lower, c.lower, true
			}
			if t.Equal(hi) {
				return c.upper, c.upper, true
			}
			return c.lower, c.upper, true
		}
	}
	lower, upper, ok := c.src.bracket(t)
	if !ok {
		return 0, 0, false
	}
	if lower != upper {
		c.lower, c.upper, c.cached = lower, upper, true
	}
	return lower, upper, true
}

// Evaluate returns one value per band at (p, t).
func (c *GridCoverage3D) Evaluate(ctx context.Context, p model.GeoPoint, t time.Time) ([]float64, error) {
	lower, upper, ok := c.bracket(t)
	if !ok {
		return nil, c.outside(p, t)
	}
	g0, err := c.src.grid(ctx, lower)
	if err != nil {
		return nil, err
	}
	if !g0.Contains(p) {
		return nil, c.outside(p, t)
	}
	out := make([]float64, g0.Bands)
	for b := range out {
		out[b] = g0.Interpolate(b, p)
	}
	if lower == upper {
		return out, nil
	}

	g1, err := c.src.grid(ctx, upper)
	if err != nil {
		return nil, err
	}
	if !g1.Contains(p) {
		return nil, c.outside(p, t)
	}
	t0, t1 := c.src.times[lower], c.src.times[upper]
	w := float64(t.Sub(t0)) / float64(t1.Sub(t0))
	for b := range out {
		v1 := math.NaN()
		if b < g1.Bands {
			v1 = g1.Interpolate(b, p)
		}
		out[b] = blend(out[b], v1, w)
	}
	return out, nil
}

// EvaluateSample evaluates a sample shifted by pos. Samples with an end
// point are averaged over points spread along the segment, ignoring points
// that are missing or outside; the sample is outside only when every point
// is.
func (c *GridCoverage3D) EvaluateSample(ctx context.Context, s *model.Sample, pos *model.RelativePosition) ([]float64, error) {
	p, t := pos.Apply(s.Point, s.Time)
	if s.End == nil {
		return c.Evaluate(ctx, p, t)
	}
	end, _ := pos.Apply(*s.End, s.Time)

	const steps = 5
	sums := make([]float64, c.NumBands())
	counts := make([]int, c.NumBands())
	var firstOutside error
	for i := 0; i < steps; i++ {
		f := float64(i) / (steps - 1)
		q := model.GeoPoint{Lon: p.Lon + f*(end.Lon-p.Lon), Lat: p.Lat + f*(end.Lat-p.Lat)}
		values, err := c.Evaluate(ctx, q, t)
		if err != nil {
			if IsOutside(err) {
				if firstOutside == nil {
					firstOutside = err
				}
				continue
			}
			return nil, err
		}
		for b, v := range values {
			if b < len(sums) && !math.IsNaN(v) {
				sums[b] += v
				counts[b]++
			}
		}
	}

	out := make([]float64, len(sums))
	inside := false
	for b := range out {
		if counts[b] == 0 {
			out[b] = math.NaN()
			continue
		}
		inside = true
		out[b] = sums[b] / float64(counts[b])
	}
	if !inside && firstOutside != nil {
		return nil, firstOutside
	}
	return out, nil
}

func (c *GridCoverage3D) outside(p model.GeoPoint, t time.Time) error {
	return &PointOutsideError{Coverage: c.src.name, Point: p, Time: t}
}

// blend interpolates linearly, keeping the available value when the other
// slice is missing.
func blend(v0, v1, w float64) float64 {
	switch {
	case math.IsNaN(v0):
		return v1
	case math.IsNaN(v1):
		return v0
	default:
		return v0 + (v1-v0)*w
	}
}
