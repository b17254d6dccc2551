package coverage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
)

type lookupCounter map[string]int

func (l lookupCounter) RecordLookup(result string) { l[result]++ }

func newTestProvider(series ...string) *MemoryProvider {
	p := NewMemoryProvider()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, name := range series {
		for d := 0; d < 3; d++ {
			g := NewGrid(0, 10, 1, 1, 10, 10, 1)
			for i := range g.Values {
				g.Values[i] = float32(d)
			}
			p.Add(name, t0.AddDate(0, 0, d), g)
		}
	}
	return p
}

func TestCache_OneOpenPerSeriesAndOperation(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider("SST")
	lookups := lookupCounter{}
	cache := NewCache(provider, WithLookupRecorder(lookups))
	sst := &model.Series{Name: "SST"}
	day := 24 * time.Hour

	var first, second, again Coverage
	m, err := cache.Rebuild(ctx, func(g *Generation) error {
		var err error
		if first, err = g.GetOrCreate(ctx, sst, nil, Offset(0)); err != nil {
			return err
		}
		if second, err = g.GetOrCreate(ctx, sst, nil, Offset(-5*day)); err != nil {
			return err
		}
		again, err = g.GetOrCreate(ctx, sst, nil, Offset(0))
		return err
	})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if got := provider.Opens("SST"); got != 1 {
		t.Fatalf("expected one provider open, got %d", got)
	}
	if first == second {
		t.Fatalf("different offsets should get distinct handles")
	}
	if first != again {
		t.Fatalf("exact key should return the registered handle")
	}
	if first.(*GridCoverage3D).Source() != second.(*GridCoverage3D).Source() {
		t.Fatalf("clone should share the data source")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", m.Len())
	}
	if lookups[LookupOpen] != 1 || lookups[LookupClone] != 1 || lookups[LookupExact] != 1 {
		t.Fatalf("unexpected lookup counts %v", lookups)
	}
}

func TestCache_ReusesPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider("SST")
	cache := NewCache(provider)
	sst := &model.Series{Name: "SST"}

	var before, after Coverage
	if _, err := cache.Rebuild(ctx, func(g *Generation) error {
		var err error
		before, err = g.GetOrCreate(ctx, sst, nil, Offset(0))
		return err
	}); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	if _, err := cache.Rebuild(ctx, func(g *Generation) error {
		var err error
		after, err = g.GetOrCreate(ctx, sst, nil, Offset(0))
		if g.Opened() != 0 {
			t.Errorf("expected no provider call, got %d", g.Opened())
		}
		return err
	}); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	if provider.Opens("SST") != 1 {
		t.Fatalf("expected the previous handle to be reused, opens=%d", provider.Opens("SST"))
	}
	if before == after {
		t.Fatalf("handles from the previous map should be cloned")
	}

	// Another operation is another data path.
	sobel := &model.Operation{Name: model.OperationSobel}
	if _, err := cache.Rebuild(ctx, func(g *Generation) error {
		_, err := g.GetOrCreate(ctx, sst, sobel, Offset(0))
		return err
	}); err != nil {
		t.Fatalf("third Rebuild: %v", err)
	}
	if provider.Opens("SST") != 2 {
		t.Fatalf("expected a second open for a new operation, opens=%d", provider.Opens("SST"))
	}
}

func TestCache_OperationParametersAreDistinctPaths(t *testing.T) {
	ctx := context.Background()
	provider := newTestProvider("SST")
	cache := NewCache(provider)
	sst := &model.Series{Name: "SST"}
	fine := &model.Operation{Name: model.OperationSobel, Parameters: map[string]string{"scale": "1"}}
	coarse := &model.Operation{Name: model.OperationSobel, Parameters: map[string]string{"scale": "10"}}

	var a, b Coverage
	if _, err := cache.Rebuild(ctx, func(g *Generation) error {
		var err error
		a, err = g.GetOrCreate(ctx, sst, fine, Offset(0))
		return err
	}); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	m, err := cache.Rebuild(ctx, func(g *Generation) error {
		var err error
		b, err = g.GetOrCreate(ctx, sst, coarse, AnyOffset)
		return err
	})
	if err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	if got := provider.Opens("SST"); got != 2 {
		t.Fatalf("expected two provider opens, got %d", got)
	}
	if a.(*GridCoverage3D).Source() == b.(*GridCoverage3D).Source() {
		t.Fatalf("scale=10 must not share the scale=1 data source")
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 key, got %d", m.Len())
	}
}

func TestCache_FailedRebuildKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newTestProvider("SST"))
	sst := &model.Series{Name: "SST"}

	prev, err := cache.Rebuild(ctx, func(g *Generation) error {
		_, err := g.GetOrCreate(ctx, sst, nil, AnyOffset)
		return err
	})
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	_, err = cache.Rebuild(ctx, func(g *Generation) error {
		_, err := g.GetOrCreate(ctx, &model.Series{Name: "missing"}, nil, AnyOffset)
		return err
	})
	if !errors.Is(err, ErrUnknownSeries) {
		t.Fatalf("expected ErrUnknownSeries, got %v", err)
	}
	if cache.Previous() != prev {
		t.Fatalf("failed rebuild must not replace the previous map")
	}
}
