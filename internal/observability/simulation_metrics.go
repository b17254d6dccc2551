package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimulationCollector exposes animat simulation metrics. It satisfies
// core.StepRecorder.
type SimulationCollector struct {
	gatherer prometheus.Gatherer

	StepDuration prometheus.Histogram
	Steps        prometheus.Counter
	Animals      prometheus.Gauge
}

// NewSimulationCollector registers simulation metrics against the provided registerer.
func NewSimulationCollector(reg prometheus.Registerer) (*SimulationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	stepHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "simulation_step_duration_seconds",
		Help:    "Wall-clock duration of one simulation time step.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	stepHistogram, err := registerHistogram(reg, stepHistogram, "simulation_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	steps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "simulation_steps_total",
		Help: "Number of simulation time steps completed.",
	})
	steps, err = registerCounter(reg, steps, "simulation_steps_total")
	if err != nil {
		return nil, err
	}

	animals := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "simulation_animals",
		Help: "Number of animals moved in the last simulation step.",
	})
	animals, err = registerGauge(reg, animals, "simulation_animals")
	if err != nil {
		return nil, err
	}

	return &SimulationCollector{
		gatherer:     gatherer,
		StepDuration: stepHistogram,
		Steps:        steps,
		Animals:      animals,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimulationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveStep records one completed simulation step.
func (c *SimulationCollector) ObserveStep(d time.Duration, animals int) {
	if c == nil {
		return
	}
	if c.StepDuration != nil {
		c.StepDuration.Observe(d.Seconds())
	}
	if c.Steps != nil {
		c.Steps.Inc()
	}
	if c.Animals != nil {
		c.Animals.Set(float64(animals))
	}
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
