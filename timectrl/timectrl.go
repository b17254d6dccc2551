package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock gives read access to simulation time, so that components depend
// on a clock rather than on the controller driving it.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime waits Pace of wall-clock time between steps.
	RealTime Mode = iota
	// Accelerated steps as fast as the listeners allow.
	Accelerated
)

// Listener is called once per step with the simulation time of the step.
// A listener error stops the run.
type Listener func(ctx context.Context, simTime time.Time, step int) error

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode
	// Pace is the wall-clock delay between steps in RealTime mode.
	Pace time.Duration

	currentTime time.Time
	step        int

	listeners []Listener
}

// NewTimeController constructs a controller positioned at start.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		Pace:        time.Second,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime moves the clock without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// Steps returns how many steps were notified so far.
func (tc *TimeController) Steps() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.step
}

// AddListener registers a callback invoked on every step.
func (tc *TimeController) AddListener(fn Listener) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// notify calls the listeners for the current time, then advances the clock
// by one tick.
func (tc *TimeController) notify(ctx context.Context) error {
	tc.mu.Lock()
	simTime, step := tc.currentTime, tc.step
	listeners := append([]Listener(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		if err := fn(ctx, simTime, step); err != nil {
			return err
		}
	}

	tc.mu.Lock()
	tc.currentTime = simTime.Add(tc.Tick)
	tc.step = step + 1
	tc.mu.Unlock()
	return nil
}

// RunUntil notifies listeners at the current time and every tick after it,
// up to and including end. It stops early on a listener error or when ctx
// is done.
func (tc *TimeController) RunUntil(ctx context.Context, end time.Time) error {
	var ticker *time.Ticker
	if tc.Mode == RealTime && tc.Pace > 0 {
		ticker = time.NewTicker(tc.Pace)
		defer ticker.Stop()
	}

	first := true
	for !tc.Now().After(end) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ticker != nil && !first {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
		first = false
		if err := tc.notify(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Start runs RunUntil in a separate goroutine. The returned channel
// receives its result and is then closed.
func (tc *TimeController) Start(ctx context.Context, end time.Time) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- tc.RunUntil(ctx, end)
	}()
	return done
}
