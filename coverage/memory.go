package coverage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

// MemoryProvider serves coverages from grids held in memory. It backs tests
// and synthetic simulations.
type MemoryProvider struct {
	mu     sync.RWMutex
	series map[string][]memorySlice
	opens  map[string]int
}

type memorySlice struct {
	t    time.Time
	grid *Grid
}

// NewMemoryProvider returns an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		series: make(map[string][]memorySlice),
		opens:  make(map[string]int),
	}
}

// Add registers the grid of a series acquired at t. A grid already
// registered at t is replaced.
func (p *MemoryProvider) Add(series string, t time.Time, g *Grid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	slices := p.series[series]
	for i := range slices {
		if slices[i].t.Equal(t) {
			slices[i].grid = g
			return
		}
	}
	slices = append(slices, memorySlice{t: t, grid: g})
	sort.Slice(slices, func(i, j int) bool { return slices[i].t.Before(slices[j].t) })
	p.series[series] = slices
}

// Opens returns how many coverages were opened for a series.
func (p *MemoryProvider) Opens(series string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.opens[series]
}

// Open implements Provider.
func (p *MemoryProvider) Open(ctx context.Context, series *model.Series, op *model.Operation) (Coverage, error) {
	p.mu.Lock()
	slices, ok := p.series[series.Name]
	if ok {
		p.opens[series.Name]++
	}
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSeries, series.Name)
	}

	times := make([]time.Time, len(slices))
	grids := make([]*Grid, len(slices))
	for i, s := range slices {
		times[i] = s.t
		grids[i] = s.grid
	}
	src, err := NewStaticSource(series.Name, times, grids).WithOperation(op)
	if err != nil {
		return nil, err
	}
	return NewGridCoverage3D(src), nil
}
