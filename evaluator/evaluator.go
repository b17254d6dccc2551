// Package evaluator computes environmental parameters, read directly from a
// series or derived from a linear model of other parameters, at arbitrary
// points or at fishery samples.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

const tracerName = "github.com/desruisseaux/Seagis-sub004/evaluator"

// ErrNoParameter is returned by evaluations before SetParameter succeeded.
var ErrNoParameter = errors.New("no parameter selected")

// Evaluation outcomes reported to a Recorder.
const (
	OutcomeValue   = "value"
	OutcomeMissing = "missing"
	OutcomeOutside = "outside"
	OutcomeError   = "error"
)

// Recorder receives evaluation metrics.
type Recorder interface {
	ObserveEvaluation(outcome string, d time.Duration)
	RecordFallback()
}

// snapshot is the immutable configuration read by evaluations.
type snapshot struct {
	version   uint64
	parameter *model.Parameter
	// direct[i] reads parameter.Series[i]; nil for derived parameters
	direct []coverage.Coverage
	terms  []term
	// maxBands is the widest band count among the coverages.
	maxBands int
}

type term struct {
	coefficient float64
	descriptors []descriptor
}

type descriptor struct {
	d *model.Descriptor
	// sources[i] reads d.Parameter.Series[i]
	sources []coverage.Coverage
	band    int
}

// ParameterCoverage evaluates the currently selected parameter. SetParameter
// is serialized; evaluations only load the published snapshot and never
// block on a reconfiguration in progress.
type ParameterCoverage struct {
	mu      sync.Mutex // serializes SetParameter
	cache   *coverage.Cache
	current atomic.Pointer[snapshot]
	version uint64

	log      logging.Logger
	recorder Recorder
}

// Option configures a ParameterCoverage.
type Option func(*ParameterCoverage)

// WithCache shares a coverage cache between evaluators.
func WithCache(c *coverage.Cache) Option {
	return func(pc *ParameterCoverage) {
		if c != nil {
			pc.cache = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(pc *ParameterCoverage) {
		if l != nil {
			pc.log = l
		}
	}
}

// WithRecorder reports evaluation metrics to r.
func WithRecorder(r Recorder) Option {
	return func(pc *ParameterCoverage) {
		pc.recorder = r
	}
}

// New returns an evaluator that opens coverages through provider. It has no
// parameter until SetParameter is called.
func New(provider coverage.Provider, opts ...Option) *ParameterCoverage {
	pc := &ParameterCoverage{log: logging.Noop()}
	for _, opt := range opts {
		opt(pc)
	}
	if pc.cache == nil {
		pc.cache = coverage.NewCache(provider, coverage.WithCacheLogger(pc.log))
	}
	return pc
}

// Parameter returns the selected parameter, or nil.
func (pc *ParameterCoverage) Parameter() *model.Parameter {
	if s := pc.current.Load(); s != nil {
		return s.parameter
	}
	return nil
}

// MaxBands returns the widest band count of the coverages in use.
func (pc *ParameterCoverage) MaxBands() int {
	if s := pc.current.Load(); s != nil {
		return s.maxBands
	}
	return 0
}

// Version increases by one on every successful SetParameter.
func (pc *ParameterCoverage) Version() uint64 {
	if s := pc.current.Load(); s != nil {
		return s.version
	}
	return 0
}

// SetParameter selects the parameter to evaluate and opens the coverages it
// needs. A nil parameter clears the selection. On error the previous
// selection stays in effect.
func (pc *ParameterCoverage) SetParameter(ctx context.Context, p *model.Parameter) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if p == nil {
		pc.current.Store(nil)
		return nil
	}
	if cur := pc.current.Load(); cur != nil && cur.parameter == p {
		return nil
	}
	if err := p.Validate(); err != nil {
		return err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "evaluator.SetParameter")
	defer span.End()
	span.SetAttributes(
		attribute.String("parameter", p.Name),
		attribute.Bool("derived", p.IsDerived()),
	)

	next := &snapshot{parameter: p}
	_, err := pc.cache.Rebuild(ctx, func(g *coverage.Generation) error {
		if !p.IsDerived() {
			for _, s := range p.Series {
				c, err := g.GetOrCreate(ctx, s, p.Operation, coverage.Offset(0))
				if err != nil {
					return err
				}
				next.direct = append(next.direct, c)
				next.maxBands = max(next.maxBands, c.NumBands())
			}
			return nil
		}
		for _, mt := range p.Model {
			t := term{coefficient: mt.Coefficient}
			for _, d := range mt.Descriptors {
				if d.IsIdentity() {
					continue
				}
				desc := descriptor{d: d, band: d.SourceBand()}
				for _, s := range d.Parameter.Series {
					c, err := g.GetOrCreate(ctx, s, d.Operation, coverage.Offset(d.Position.Offset()))
					if err != nil {
						return err
					}
					desc.sources = append(desc.sources, c)
					next.maxBands = max(next.maxBands, c.NumBands())
				}
				t.descriptors = append(t.descriptors, desc)
			}
			next.terms = append(next.terms, t)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("select parameter %s: %w", p.Name, err)
	}

	pc.version++
	next.version = pc.version
	pc.current.Store(next)
	pc.log.Info(ctx, "parameter selected",
		logging.String("parameter", p.Name),
		logging.Int("terms", len(next.terms)),
		logging.Int("bands", next.maxBands),
	)
	return nil
}

// reader evaluates one coverage.
type reader func(ctx context.Context, c coverage.Coverage, d *model.Descriptor) ([]float64, error)

// Evaluate returns the parameter value at p and t. NaN means the point is
// inside the coverage but the value is missing.
func (pc *ParameterCoverage) Evaluate(ctx context.Context, p model.GeoPoint, t time.Time) (float64, error) {
	return pc.evaluate(ctx, func(ctx context.Context, c coverage.Coverage, d *model.Descriptor) ([]float64, error) {
		if d == nil {
			return c.Evaluate(ctx, p, t)
		}
		dp, dt := d.Position.Apply(p, t)
		return c.Evaluate(ctx, dp, dt)
	})
}

// EvaluateSample returns the parameter value for a sample observed at the
// relative position pos, which may be nil. Coverages implementing
// coverage.SampleAwareCoverage receive the sample itself.
func (pc *ParameterCoverage) EvaluateSample(ctx context.Context, s *model.Sample, pos *model.RelativePosition) (float64, error) {
	base, t := pos.Apply(s.Point, s.Time)
	shifted := *s
	shifted.Point, shifted.Time = base, t
	if s.End != nil {
		end, _ := pos.Apply(*s.End, s.Time)
		shifted.End = &end
	}
	return pc.evaluate(ctx, func(ctx context.Context, c coverage.Coverage, d *model.Descriptor) ([]float64, error) {
		var dpos *model.RelativePosition
		if d != nil {
			dpos = d.Position
		}
		if sa, ok := c.(coverage.SampleAwareCoverage); ok {
			return sa.EvaluateSample(ctx, &shifted, dpos)
		}
		dp, dt := dpos.Apply(base, t)
		return c.Evaluate(ctx, dp, dt)
	})
}

func (pc *ParameterCoverage) evaluate(ctx context.Context, read reader) (float64, error) {
	snap := pc.current.Load()
	if snap == nil {
		return math.NaN(), ErrNoParameter
	}

	start := time.Now()
	var (
		v   float64
		err error
	)
	if snap.parameter.IsDerived() {
		v, err = pc.combine(ctx, snap, read)
	} else {
		v, err = pc.firstValue(ctx, snap.direct, snap.parameter.Band, nil, read)
	}
	pc.observe(v, err, time.Since(start))
	return v, err
}

// firstValue tries sources in order and returns the first non-missing band
// value. The result is NaN with a nil error when some source covered the
// point without a value, and the first outside error when none covered it.
func (pc *ParameterCoverage) firstValue(ctx context.Context, sources []coverage.Coverage, band int, d *model.Descriptor, read reader) (float64, error) {
	var firstOutside error
	inside := false
	for i, c := range sources {
		values, err := read(ctx, c, d)
		if err != nil {
			if !coverage.IsOutside(err) {
				return math.NaN(), err
			}
			if firstOutside == nil {
				firstOutside = err
			}
			continue
		}
		inside = true
		if band >= len(values) {
			return math.NaN(), fmt.Errorf("%w: band %d out of range for %s", model.ErrInvalidParameter, band, c.Name())
		}
		if v := values[band]; !math.IsNaN(v) {
			if i > 0 && pc.recorder != nil {
				pc.recorder.RecordFallback()
			}
			return v, nil
		}
	}
	if !inside && firstOutside != nil {
		return math.NaN(), firstOutside
	}
	return math.NaN(), nil
}

// combine sums coefficient × product of normalized descriptors over the
// terms. A descriptor without a value makes its term NaN, and the NaN
// carries into the sum. The result is an outside error only when no
// descriptor of any term produced a value.
func (pc *ParameterCoverage) combine(ctx context.Context, snap *snapshot, read reader) (float64, error) {
	var (
		value        float64
		anyInside    bool
		firstOutside error
	)
	for _, t := range snap.terms {
		tv := t.coefficient
		for _, desc := range t.descriptors {
			v, err := pc.firstValue(ctx, desc.sources, desc.band, desc.d, read)
			if err != nil && !coverage.IsOutside(err) {
				return math.NaN(), err
			}
			if err != nil && firstOutside == nil {
				firstOutside = err
			}
			if !math.IsNaN(v) {
				anyInside = true
				v = desc.d.Normalize(v)
			}
			tv *= v
		}
		value += tv
	}
	if !anyInside && firstOutside != nil {
		return math.NaN(), firstOutside
	}
	return value, nil
}

func (pc *ParameterCoverage) observe(v float64, err error, d time.Duration) {
	if pc.recorder == nil {
		return
	}
	outcome := OutcomeValue
	switch {
	case coverage.IsOutside(err):
		outcome = OutcomeOutside
	case err != nil:
		outcome = OutcomeError
	case math.IsNaN(v):
		outcome = OutcomeMissing
	}
	pc.recorder.ObserveEvaluation(outcome, d)
}
