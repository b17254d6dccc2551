package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desruisseaux/Seagis-sub004/core"
	"github.com/desruisseaux/Seagis-sub004/internal/config"
	"github.com/desruisseaux/Seagis-sub004/internal/observability"
	"github.com/desruisseaux/Seagis-sub004/timectrl"
)

const testConfig = `# two weeks in the Indian Ocean
START_TIME = 2002-01-01
END_TIME = 2002-01-15
TIME_STEP = 1
POPULATION = 5
SPEED = 20
PERCEPTION_RADIUS = 30
AREA = 50,60,-20,-10
SEED = 7
--------------------
SST;;Maximum
CHL;;Average
`

// TestSyntheticSimulationRun runs a short accelerated simulation over the
// synthetic environment.
func TestSyntheticSimulationRun(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(testConfig))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	registry := prometheus.NewRegistry()
	coverageMetrics, err := observability.NewCoverageCollector(registry)
	if err != nil {
		t.Fatalf("NewCoverageCollector error: %v", err)
	}
	simMetrics, err := observability.NewSimulationCollector(registry)
	if err != nil {
		t.Fatalf("NewSimulationCollector error: %v", err)
	}

	ctx := context.Background()
	sim, err := newSimulation(ctx, cfg, setup{
		coverage: coverageMetrics,
		steps:    simMetrics,
		mode:     timectrl.Accelerated,
	})
	if err != nil {
		t.Fatalf("newSimulation error: %v", err)
	}
	defer sim.Close()

	if err := sim.run(ctx); err != nil {
		t.Fatalf("run error: %v", err)
	}

	if got, want := sim.tc.Steps(), cfg.Steps(); got != want {
		t.Fatalf("expected %d steps, got %d", want, got)
	}
	if got := testutil.ToFloat64(simMetrics.Steps); got != float64(cfg.Steps()) {
		t.Fatalf("expected simulation_steps_total %d, got %v", cfg.Steps(), got)
	}
	if got := testutil.ToFloat64(coverageMetrics.Evaluations.WithLabelValues("value")); got == 0 {
		t.Fatalf("expected evaluations to be recorded")
	}

	tracks := sim.tracks()
	if len(tracks) != 5 {
		t.Fatalf("expected 5 tracks, got %d", len(tracks))
	}
	for _, tr := range tracks {
		if len(tr.Points) < 2 {
			t.Fatalf("track %s did not move: %d points", tr.ID, len(tr.Points))
		}
	}

	for _, a := range sim.engine.Animals() {
		if len(a.Observations) == 0 {
			t.Fatalf("animal %s made no observation", a.ID)
		}
		if _, ok := a.Observations[0].Values["CHL"]; !ok {
			t.Fatalf("animal %s did not observe CHL: %v", a.ID, a.Observations[0].Values)
		}
	}
}

func TestSimulationStopsOnCancel(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(testConfig))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	sim, err := newSimulation(context.Background(), cfg, setup{mode: timectrl.RealTime, pace: time.Hour})
	if err != nil {
		t.Fatalf("newSimulation error: %v", err)
	}
	defer sim.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := sim.run(ctx); err == nil {
		t.Fatalf("expected run to stop with the context error")
	}
	if sim.tc.Steps() != 1 {
		t.Fatalf("expected only the first step before cancellation, got %d", sim.tc.Steps())
	}
}

func TestRowsSharingAParameter(t *testing.T) {
	cfg, err := config.Parse(strings.NewReader(strings.Replace(testConfig, "CHL;;Average", "SST;;Average", 1)))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	sim, err := newSimulation(context.Background(), cfg, setup{mode: timectrl.Accelerated})
	if err != nil {
		t.Fatalf("newSimulation error: %v", err)
	}
	defer sim.Close()

	if got := sim.engine.Env.Parameters(); len(got) != 1 || got[0] != "SST" {
		t.Fatalf("expected one SST environment parameter, got %v", got)
	}
	motion, ok := sim.engine.Motion.(*core.PerceptionModel)
	if !ok {
		t.Fatalf("unexpected motion model %T", sim.engine.Motion)
	}
	if len(motion.Rules) != 2 || motion.Rules[1].Parameter != "SST" ||
		motion.Rules[0].Evaluator != config.EvaluatorMaximum || motion.Rules[1].Evaluator != config.EvaluatorAverage {
		t.Fatalf("expected two SST rules, got %+v", motion.Rules)
	}
}

func TestPopulationFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "population.json")
	data := `{"animals":[{"id":"tuna-1","species":"tuna","lon":55,"lat":-15},{"id":"tuna-2","species":"tuna","lon":56,"lat":-14}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := config.Parse(strings.NewReader(strings.Replace(testConfig, "POPULATION = 5", "POPULATION_FILE = "+path, 1)))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	animals, err := population(cfg)
	if err != nil {
		t.Fatalf("population error: %v", err)
	}
	if len(animals) != 2 || animals[0].ID != "tuna-1" {
		t.Fatalf("unexpected population: %+v", animals)
	}
	if animals[0].Speed != 20000 {
		t.Fatalf("expected default speed 20000 m/day, got %v", animals[0].Speed)
	}
}

func TestRowParameterNaming(t *testing.T) {
	p, err := rowParameter(context.Background(), nil, config.ParameterRow{Series: "SST", Operation: "Sobel", Evaluator: "Maximum"})
	if err != nil {
		t.Fatalf("rowParameter error: %v", err)
	}
	if p.Name != "SST:Sobel" {
		t.Fatalf("expected SST:Sobel, got %s", p.Name)
	}
	if p.Operation == nil || p.Operation.Name != "Sobel" {
		t.Fatalf("expected Sobel operation, got %+v", p.Operation)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
}
