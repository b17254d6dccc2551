package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// ErrUnknownParameter is returned for a parameter name that was never added.
var ErrUnknownParameter = errors.New("unknown environment parameter")

// ParameterEvaluator evaluates one environmental parameter.
type ParameterEvaluator interface {
	Evaluate(ctx context.Context, p model.GeoPoint, t time.Time) (float64, error)
}

// Environment is the set of parameters perceived by the animals at the
// current simulation time. Values are memoized per parameter until the
// time changes.
type Environment struct {
	mu     sync.Mutex
	now    time.Time
	step   uint64
	params map[string]*envParameter
}

type envParameter struct {
	eval  ParameterEvaluator
	valid bool
	memo  map[model.GeoPoint]envValue
}

type envValue struct {
	v   float64
	err error
}

// NewEnvironment returns an environment positioned at start.
func NewEnvironment(start time.Time) *Environment {
	return &Environment{
		now:    start,
		params: make(map[string]*envParameter),
	}
}

// AddParameter registers an evaluator under name.
func (e *Environment) AddParameter(name string, ev ParameterEvaluator) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.params[name]; exists {
		return fmt.Errorf("environment parameter %q already exists", name)
	}
	e.params[name] = &envParameter{eval: ev}
	return nil
}

// Parameters returns the registered names in sorted order.
func (e *Environment) Parameters() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.params))
	for n := range e.params {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Time returns the current simulation time.
func (e *Environment) Time() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

// SetTime moves to t and invalidates every memoized value.
func (e *Environment) SetTime(t time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Equal(e.now) {
		return
	}
	e.now = t
	e.step++
	for _, p := range e.params {
		p.valid = false
	}
}

// Evaluate returns the value of a parameter at p for the current time.
// Outside-coverage results are memoized like values; other errors are not.
// The evaluator runs without holding the environment lock.
func (e *Environment) Evaluate(ctx context.Context, name string, p model.GeoPoint) (float64, error) {
	e.mu.Lock()
	ep, ok := e.params[name]
	if !ok {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
	}
	if ep.valid {
		if m, ok := ep.memo[p]; ok {
			e.mu.Unlock()
			return m.v, m.err
		}
	}
	now, step := e.now, e.step
	e.mu.Unlock()

	v, err := ep.eval.Evaluate(ctx, p, now)
	if err != nil && !coverage.IsOutside(err) {
		return v, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step == step {
		if !ep.valid {
			ep.memo = make(map[model.GeoPoint]envValue)
			ep.valid = true
		}
		ep.memo[p] = envValue{v: v, err: err}
	}
	return v, err
}
