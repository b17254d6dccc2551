package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/desruisseaux/Seagis-sub004/model"
	"github.com/desruisseaux/Seagis-sub004/timectrl"
)

type stepCounter struct {
	steps   int
	animals int
}

func (s *stepCounter) ObserveStep(_ time.Duration, animals int) {
	s.steps++
	s.animals = animals
}

func TestSimulationEngine_AttachToTimeController(t *testing.T) {
	ctx := context.Background()
	env := NewEnvironment(day0)
	rec := &stepCounter{}
	engine := NewSimulationEngine(env, NewRandomWalk(7, 30), WithStepRecorder(rec))
	for i, p := range []model.GeoPoint{{Lon: 50, Lat: -5}, {Lon: 52, Lat: -7}} {
		if err := engine.AddAnimal(NewAnimal(string(rune('a'+i)), "tuna", p, 40000, 20000)); err != nil {
			t.Fatalf("AddAnimal: %v", err)
		}
	}

	var ticks []int
	engine.RegisterTickListener(func(step int, _ time.Time) { ticks = append(ticks, step) })

	tc := timectrl.NewTimeController(day0, 24*time.Hour, timectrl.Accelerated)
	engine.Attach(tc)
	if err := tc.RunUntil(ctx, day0.AddDate(0, 0, 4)); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	if len(ticks) != 5 || ticks[4] != 4 {
		t.Fatalf("unexpected ticks %v", ticks)
	}
	for _, a := range engine.Animals() {
		if a.Path.Len() != 6 {
			t.Fatalf("animal %s: expected 6 points, got %d", a.ID, a.Path.Len())
		}
	}
	if !env.Time().Equal(day0.AddDate(0, 0, 4)) {
		t.Fatalf("environment time %v", env.Time())
	}
	if rec.steps != 5 || rec.animals != 2 {
		t.Fatalf("unexpected recorder state %+v", rec)
	}
}

func TestSimulationEngine_DuplicateAnimal(t *testing.T) {
	engine := NewSimulationEngine(NewEnvironment(day0), StaticMotionModel{})
	a := NewAnimal("x", "tuna", model.GeoPoint{}, 1, 1)
	if err := engine.AddAnimal(a); err != nil {
		t.Fatalf("AddAnimal: %v", err)
	}
	if err := engine.AddAnimal(a); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestSimulationEngine_StepErrorNamesAnimal(t *testing.T) {
	env := NewEnvironment(day0)
	m := &PerceptionModel{Rules: []Rule{{Parameter: "missing", Evaluator: EvaluatorMaximum}}}
	engine := NewSimulationEngine(env, m)
	engine.AddAnimal(NewAnimal("bob", "tuna", model.GeoPoint{}, 1, 1))

	err := engine.Run(context.Background(), day0, time.Hour, 3)
	if err == nil || !strings.Contains(err.Error(), "bob") {
		t.Fatalf("expected an error naming the animal, got %v", err)
	}
}
