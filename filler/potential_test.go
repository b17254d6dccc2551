package filler

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// rampEvaluator returns the longitude, and is outside west of cutoff.
type rampEvaluator struct {
	cutoff float64
	err    error
}

func (r rampEvaluator) Evaluate(_ context.Context, p model.GeoPoint, t time.Time) (float64, error) {
	if r.err != nil {
		return 0, r.err
	}
	if p.Lon < r.cutoff {
		return 0, &coverage.PointOutsideError{Coverage: "ramp", Point: p, Time: t}
	}
	return p.Lon, nil
}

var mapArea = model.Area{West: 50, East: 54, South: -22, North: -20}

func TestGenerateMap_Values(t *testing.T) {
	m, err := GenerateMap(context.Background(), rampEvaluator{cutoff: 51}, mapArea, day0, 1, "")
	if err != nil {
		t.Fatalf("GenerateMap: %v", err)
	}
	if m.Width != 4 || m.Height != 2 || m.Generator != GeneratorValue {
		t.Fatalf("unexpected map shape %dx%d %s", m.Width, m.Height, m.Generator)
	}
	if !math.IsNaN(m.At(0, 0)) {
		t.Fatalf("westmost column should be outside, got %v", m.At(0, 0))
	}
	if m.At(3, 1) != 53.5 {
		t.Fatalf("expected 53.5 at the south-east cell, got %v", m.At(3, 1))
	}
	if c := m.CellCenter(0, 1); c.Lon != 50.5 || c.Lat != -21.5 {
		t.Fatalf("unexpected cell centre %v", c)
	}
	if m.Stats.Min != 51.5 || m.Stats.Max != 53.5 || m.Stats.Coverage != 0.75 {
		t.Fatalf("unexpected stats %+v", m.Stats)
	}
	if math.Abs(m.Stats.Mean-52.5) > 1e-9 || m.Stats.StdDev <= 0 {
		t.Fatalf("unexpected mean/stddev %+v", m.Stats)
	}
}

func TestGenerateMap_Potential(t *testing.T) {
	m, err := GenerateMap(context.Background(), rampEvaluator{cutoff: 51}, mapArea, day0, 1, GeneratorPotential)
	if err != nil {
		t.Fatalf("GenerateMap: %v", err)
	}
	if m.At(1, 0) != 0 || m.At(3, 0) != 1 || m.At(2, 1) != 0.5 {
		t.Fatalf("expected values rescaled to [0,1], got %v", m.Values)
	}
	if m.Stats.Max != 53.5 {
		t.Fatalf("stats should describe raw values, got %+v", m.Stats)
	}
}

func TestGenerateMap_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := GenerateMap(ctx, rampEvaluator{}, mapArea, day0, 1, "histogram"); !errors.Is(err, ErrUnknownGenerator) {
		t.Fatalf("expected ErrUnknownGenerator, got %v", err)
	}
	if _, err := GenerateMap(ctx, rampEvaluator{}, mapArea, day0, 0, GeneratorValue); !errors.Is(err, ErrBadMapStep) {
		t.Fatalf("expected ErrBadMapStep, got %v", err)
	}
	if _, err := GenerateMap(ctx, rampEvaluator{err: coverage.ErrCannotReproject}, mapArea, day0, 1, GeneratorValue); !errors.Is(err, coverage.ErrCannotReproject) {
		t.Fatalf("expected ErrCannotReproject to propagate, got %v", err)
	}

	m, err := GenerateMap(ctx, rampEvaluator{cutoff: 1000}, mapArea, day0, 1, GeneratorPotential)
	if err != nil {
		t.Fatalf("an all-missing map is not an error: %v", err)
	}
	if m.Stats.Coverage != 0 || !math.IsNaN(m.Stats.Mean) {
		t.Fatalf("unexpected stats for empty map %+v", m.Stats)
	}
}
