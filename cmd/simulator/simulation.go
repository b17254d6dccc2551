package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/catalog/sqlcatalog"
	"github.com/desruisseaux/Seagis-sub004/core"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/evaluator"
	"github.com/desruisseaux/Seagis-sub004/internal/config"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/internal/raster"
	"github.com/desruisseaux/Seagis-sub004/internal/render"
	"github.com/desruisseaux/Seagis-sub004/model"
	"github.com/desruisseaux/Seagis-sub004/timectrl"
)

// maxTurn bounds the random walk heading change per step, in degrees.
const maxTurn = 45

// synthetic grids extend this far beyond the configured area, in degrees
const syntheticMargin = 5

// recorder receives the coverage metrics of every parameter.
type recorder interface {
	coverage.LookupRecorder
	evaluator.Recorder
}

type setup struct {
	log       logging.Logger
	coverage  recorder
	steps     core.StepRecorder
	imageRoot string
	mode      timectrl.Mode
	pace      time.Duration
}

type simulation struct {
	cfg    *config.Simulation
	engine *core.SimulationEngine
	tc     *timectrl.TimeController
	log    logging.Logger
	closer func() error
}

// newSimulation builds the environment, the population and the time
// controller described by cfg.
func newSimulation(ctx context.Context, cfg *config.Simulation, s setup) (*simulation, error) {
	if s.log == nil {
		s.log = logging.Noop()
	}
	sim := &simulation{cfg: cfg, log: s.log, closer: func() error { return nil }}

	var (
		provider coverage.Provider
		images   catalog.Reader
	)
	if cfg.Database != "" {
		store, err := sqlcatalog.Open(ctx, cfg.Database, sqlcatalog.WithLogger(s.log))
		if err != nil {
			return nil, err
		}
		sim.closer = store.Close
		images = store
		provider = raster.NewProvider(store, raster.WithRoot(s.imageRoot), raster.WithLogger(s.log))
	} else {
		s.log.Info(ctx, "no database configured, using synthetic environment")
		provider = syntheticProvider(cfg)
	}

	env := core.NewEnvironment(cfg.StartTime)
	motion := &core.PerceptionModel{Fallback: core.NewRandomWalk(cfg.Seed, maxTurn)}
	added := make(map[string]bool)
	for _, row := range cfg.Parameters {
		p, err := rowParameter(ctx, images, row)
		if err != nil {
			sim.Close()
			return nil, err
		}
		// Rows that differ only by evaluator share one environment parameter.
		if added[p.Name] {
			motion.Rules = append(motion.Rules, core.Rule{Parameter: p.Name, Evaluator: row.Evaluator})
			continue
		}
		added[p.Name] = true
		cache := coverage.NewCache(provider,
			coverage.WithCacheLogger(s.log),
			coverage.WithLookupRecorder(s.coverage),
		)
		ev := evaluator.New(provider,
			evaluator.WithCache(cache),
			evaluator.WithLogger(s.log),
			evaluator.WithRecorder(s.coverage),
		)
		if err := ev.SetParameter(ctx, p); err != nil {
			sim.Close()
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		if err := env.AddParameter(p.Name, ev); err != nil {
			sim.Close()
			return nil, err
		}
		motion.Rules = append(motion.Rules, core.Rule{Parameter: p.Name, Evaluator: row.Evaluator})
	}

	sim.engine = core.NewSimulationEngine(env, motion,
		core.WithEngineLogger(s.log),
		core.WithStepRecorder(s.steps),
	)
	animals, err := population(cfg)
	if err != nil {
		sim.Close()
		return nil, err
	}
	for _, a := range animals {
		if err := sim.engine.AddAnimal(a); err != nil {
			sim.Close()
			return nil, err
		}
	}

	sim.tc = timectrl.NewTimeController(cfg.StartTime, cfg.TimeStep, s.mode)
	if s.pace > 0 {
		sim.tc.Pace = s.pace
	}
	sim.engine.Attach(sim.tc)
	return sim, nil
}

// rowParameter turns a configuration row into a direct parameter. Without
// a catalog the series and operation are referenced by name only.
func rowParameter(ctx context.Context, r catalog.Reader, row config.ParameterRow) (*model.Parameter, error) {
	name := row.Series
	if row.Operation != "" {
		name += ":" + row.Operation
	}
	p := &model.Parameter{Name: name}
	if r == nil {
		p.Series = []*model.Series{{Name: row.Series}}
		if row.Operation != "" {
			p.Operation = &model.Operation{Name: row.Operation}
		}
		return p, nil
	}

	series, err := r.Series(ctx, row.Series)
	if err != nil {
		return nil, err
	}
	p.Series = []*model.Series{series}
	if row.Operation != "" {
		if p.Operation, err = r.Operation(ctx, row.Operation); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func population(cfg *config.Simulation) ([]*core.Animal, error) {
	spec := core.PopulationSpec{
		Count:            cfg.Population,
		Species:          "animat",
		Area:             cfg.Area,
		Speed:            cfg.SpeedMetersPerDay(),
		PerceptionRadius: cfg.PerceptionMeters(),
	}
	if cfg.PopulationFile == "" {
		return core.RandomPopulation(spec, rand.New(rand.NewSource(cfg.Seed))), nil
	}
	f, err := os.Open(cfg.PopulationFile)
	if err != nil {
		return nil, fmt.Errorf("open population: %w", err)
	}
	defer f.Close()
	return core.LoadPopulation(f, spec)
}

// syntheticProvider serves one smooth field per configured series, with a
// slice every day of the simulation.
func syntheticProvider(cfg *config.Simulation) *coverage.MemoryProvider {
	const cell = 0.25
	area := cfg.Area
	west, north := area.West-syntheticMargin, area.North+syntheticMargin
	width := int(math.Ceil((area.East - area.West + 2*syntheticMargin) / cell))
	height := int(math.Ceil((area.North - area.South + 2*syntheticMargin) / cell))

	provider := coverage.NewMemoryProvider()
	seen := make(map[string]bool)
	for i, row := range cfg.Parameters {
		if seen[row.Series] {
			continue
		}
		seen[row.Series] = true
		phase := float64(i) * math.Pi / 3
		for t := cfg.StartTime.Add(-24 * time.Hour); !t.After(cfg.EndTime.Add(24 * time.Hour)); t = t.Add(24 * time.Hour) {
			days := t.Sub(cfg.StartTime).Hours() / 24
			g := coverage.NewGrid(west, north, cell, cell, width, height, 1)
			for r := 0; r < height; r++ {
				for c := 0; c < width; c++ {
					p := g.CellCenter(c, r)
					g.Set(0, c, r, 20+5*math.Sin(p.Lon/7+phase+days/30)*math.Cos(p.Lat/5))
				}
			}
			provider.Add(row.Series, t, g)
		}
	}
	return provider
}

// run advances the simulation until its end time or until ctx is done.
func (s *simulation) run(ctx context.Context) error {
	s.log.Info(ctx, "simulation started",
		logging.Time("start", s.cfg.StartTime),
		logging.Time("end", s.cfg.EndTime),
		logging.Duration("step", s.cfg.TimeStep),
		logging.Int("animals", len(s.engine.Animals())),
	)
	if err := <-s.tc.Start(ctx, s.cfg.EndTime); err != nil {
		return err
	}
	s.log.Info(ctx, "simulation finished", logging.Int("steps", s.tc.Steps()))
	return nil
}

func (s *simulation) tracks() []render.Track {
	animals := s.engine.Animals()
	out := make([]render.Track, 0, len(animals))
	for _, a := range animals {
		out = append(out, render.Track{ID: a.ID, Points: a.Path.Points()})
	}
	return out
}

// Close releases the catalog, if any.
func (s *simulation) Close() error {
	return s.closer()
}
