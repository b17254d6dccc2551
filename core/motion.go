package core

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// MotionModel moves an animal for one simulation step of length step.
type MotionModel interface {
	Move(ctx context.Context, env *Environment, a *Animal, step time.Duration) error
}

// StaticMotionModel leaves animals in place.
type StaticMotionModel struct{}

// Move does nothing.
func (StaticMotionModel) Move(context.Context, *Environment, *Animal, time.Duration) error {
	return nil
}

// RandomWalk turns by a random angle up to MaxTurn degrees either way, then
// swims straight.
type RandomWalk struct {
	MaxTurn float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomWalk returns a deterministic random walk for seed.
func NewRandomWalk(seed int64, maxTurn float64) *RandomWalk {
	return &RandomWalk{MaxTurn: maxTurn, rng: rand.New(rand.NewSource(seed))}
}

// Move implements MotionModel.
func (w *RandomWalk) Move(_ context.Context, _ *Environment, a *Animal, step time.Duration) error {
	w.mu.Lock()
	turn := (w.rng.Float64()*2 - 1) * w.MaxTurn
	w.mu.Unlock()
	a.Path.Rotate(turn)
	a.Path.Move(a.StepDistance(step))
	return nil
}

// Evaluator names of a perception rule.
const (
	EvaluatorAverage = "Average"
	EvaluatorMaximum = "Maximum"
	EvaluatorMinimum = "Minimum"
)

// Rule tells an animal how to react to one parameter. Maximum and Minimum
// rules attract the animal toward the corner of its perception square with
// the highest or lowest value; Average rules are only observed.
type Rule struct {
	Parameter string
	Evaluator string
}

// PerceptionModel steers animals using the environment around them. When
// no rule can rank the corners, Fallback moves the animal.
type PerceptionModel struct {
	Rules    []Rule
	Fallback MotionModel
}

// Move implements MotionModel.
func (m *PerceptionModel) Move(ctx context.Context, env *Environment, a *Animal, step time.Duration) error {
	here, ok := a.Location()
	if !ok {
		return nil
	}
	area, _ := a.PerceptionArea()
	corners := area.Corners()
	// four corners then the centre
	points := make([]model.GeoPoint, 0, 5)
	for _, c := range corners {
		points = append(points, model.GeoPoint{Lon: c[0], Lat: c[1]})
	}
	points = append(points, here)

	obs := Observation{Time: env.Time(), Position: here, Values: make(map[string]float64)}
	scores := make([]float64, len(corners))
	ranked := false

	for _, rule := range m.Rules {
		values := make([]float64, len(points))
		var finite []float64
		for i, p := range points {
			v, err := env.Evaluate(ctx, rule.Parameter, p)
			if err != nil {
				if !coverage.IsOutside(err) {
					return fmt.Errorf("perceive %s: %w", rule.Parameter, err)
				}
				v = math.NaN()
			}
			values[i] = v
			if !math.IsNaN(v) {
				finite = append(finite, v)
			}
		}
		if len(finite) == 0 {
			continue
		}
		if centre := values[len(values)-1]; !math.IsNaN(centre) {
			obs.Values[rule.Parameter] = centre
		}

		switch rule.Evaluator {
		case EvaluatorAverage:
			obs.Values[rule.Parameter] = stat.Mean(finite, nil)
		case EvaluatorMaximum, EvaluatorMinimum:
			lo, hi := floats.Min(finite), floats.Max(finite)
			if hi <= lo {
				continue
			}
			for i := range corners {
				if math.IsNaN(values[i]) {
					continue
				}
				n := (values[i] - lo) / (hi - lo)
				if rule.Evaluator == EvaluatorMinimum {
					n = 1 - n
				}
				scores[i] += n
				ranked = true
			}
		default:
			return fmt.Errorf("unknown evaluator %q for %s", rule.Evaluator, rule.Parameter)
		}
	}
	a.Observations = append(a.Observations, obs)

	if !ranked {
		if m.Fallback == nil {
			return nil
		}
		return m.Fallback.Move(ctx, env, a, step)
	}
	best := corners[floats.MaxIdx(scores)]
	a.Path.MoveToward(a.StepDistance(step), model.GeoPoint{Lon: best[0], Lat: best[1]})
	return nil
}
