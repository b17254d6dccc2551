package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/timectrl"
)

const tracerName = "github.com/desruisseaux/Seagis-sub004/core"

// StepRecorder receives simulation step metrics.
type StepRecorder interface {
	ObserveStep(d time.Duration, animals int)
}

// SimulationEngine moves a population through an environment, one step at
// a time.
type SimulationEngine struct {
	Env    *Environment
	Motion MotionModel

	mu      sync.Mutex
	animals []*Animal
	ids     map[string]bool

	log           logging.Logger
	recorder      StepRecorder
	tickListeners []func(step int, simTime time.Time)
}

// EngineOption configures a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithEngineLogger sets the engine logger.
func WithEngineLogger(l logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if l != nil {
			se.log = l
		}
	}
}

// WithStepRecorder reports step metrics to r.
func WithStepRecorder(r StepRecorder) EngineOption {
	return func(se *SimulationEngine) {
		se.recorder = r
	}
}

// NewSimulationEngine returns an engine without animals.
func NewSimulationEngine(env *Environment, motion MotionModel, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Env:    env,
		Motion: motion,
		ids:    make(map[string]bool),
		log:    logging.Noop(),
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// AddAnimal adds a to the population. IDs must be unique.
func (se *SimulationEngine) AddAnimal(a *Animal) error {
	se.mu.Lock()
	defer se.mu.Unlock()
	if se.ids[a.ID] {
		return fmt.Errorf("animal with ID %q already exists", a.ID)
	}
	se.ids[a.ID] = true
	se.animals = append(se.animals, a)
	return nil
}

// Animals returns the population in insertion order.
func (se *SimulationEngine) Animals() []*Animal {
	se.mu.Lock()
	defer se.mu.Unlock()
	return append([]*Animal(nil), se.animals...)
}

// RegisterTickListener is called after every step.
func (se *SimulationEngine) RegisterTickListener(fn func(step int, simTime time.Time)) {
	se.tickListeners = append(se.tickListeners, fn)
}

// Step sets the environment to simTime and moves every animal for dt.
func (se *SimulationEngine) Step(ctx context.Context, simTime time.Time, step int, dt time.Duration) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "simulation.Step")
	defer span.End()
	span.SetAttributes(attribute.Int("step", step), attribute.String("sim_time", simTime.Format(time.RFC3339)))

	start := time.Now()
	se.Env.SetTime(simTime)
	animals := se.Animals()
	for _, a := range animals {
		if err := se.Motion.Move(ctx, se.Env, a, dt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("step %d: animal %s: %w", step, a.ID, err)
		}
	}
	elapsed := time.Since(start)
	if se.recorder != nil {
		se.recorder.ObserveStep(elapsed, len(animals))
	}
	se.log.Debug(ctx, "simulation step",
		logging.Int("step", step),
		logging.Time("sim_time", simTime),
		logging.Duration("elapsed", elapsed),
	)

	for _, fn := range se.tickListeners {
		fn(step, simTime)
	}
	return nil
}

// Run performs steps steps of length dt from start.
func (se *SimulationEngine) Run(ctx context.Context, start time.Time, dt time.Duration, steps int) error {
	for i := 0; i < steps; i++ {
		if err := se.Step(ctx, start.Add(time.Duration(i)*dt), i, dt); err != nil {
			return err
		}
	}
	return nil
}

// Attach drives the engine from a time controller.
func (se *SimulationEngine) Attach(tc *timectrl.TimeController) {
	tc.AddListener(func(ctx context.Context, simTime time.Time, step int) error {
		return se.Step(ctx, simTime, step, tc.Tick)
	})
}
