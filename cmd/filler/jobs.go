package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/evaluator"
	"github.com/desruisseaux/Seagis-sub004/filler"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/internal/observability"
	"github.com/desruisseaux/Seagis-sub004/internal/render"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// jobs runs fill and map requests against one catalog.
type jobs struct {
	catalog  catalog.Catalog
	provider coverage.Provider
	log      logging.Logger
	metrics  *observability.CoverageCollector
}

// mapRequest describes one rendered parameter map.
type mapRequest struct {
	Parameter string
	Time      time.Time
	Area      model.Area
	Step      float64
	Generator string
	Locale    string
	// Output is the image path; no image is written when empty.
	Output string
}

func (j *jobs) evaluator() *evaluator.ParameterCoverage {
	cache := coverage.NewCache(j.provider,
		coverage.WithCacheLogger(j.log),
		coverage.WithLookupRecorder(j.metrics),
	)
	return evaluator.New(j.provider,
		evaluator.WithCache(cache),
		evaluator.WithLogger(j.log),
		evaluator.WithRecorder(j.metrics),
	)
}

// fill writes the named parameter for every sample of the catalog.
func (j *jobs) fill(ctx context.Context, parameter string, positions []string) (filler.Report, error) {
	f := filler.New(j.catalog, filler.WithLogger(j.log), filler.WithRecorder(j.metrics))
	return f.FillParameter(ctx, j.catalog, j.evaluator(), parameter, positions)
}

// potentialMap evaluates the requested parameter over an area and renders
// it when an output path is given.
func (j *jobs) potentialMap(ctx context.Context, req mapRequest) (*filler.Map, error) {
	p, err := j.catalog.Parameter(ctx, req.Parameter)
	if err != nil {
		return nil, err
	}
	ev := j.evaluator()
	if err := ev.SetParameter(ctx, p); err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	m, err := filler.GenerateMap(ctx, ev, req.Area, req.Time, req.Step, req.Generator)
	if err != nil {
		return nil, err
	}

	printer := render.Printer(req.Locale)
	j.log.Info(ctx, render.Caption(printer, p.Name, m),
		logging.String("generator", m.Generator),
		logging.Float("coverage", m.Stats.Coverage),
	)
	if req.Output == "" {
		return m, nil
	}
	if err := render.PotentialMap(m, p.Name, printer, req.Output); err != nil {
		return nil, err
	}
	j.log.Info(ctx, "map written", logging.String("path", req.Output))
	return m, nil
}
