package filler

import (
	"context"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

const tracerName = "github.com/desruisseaux/Seagis-sub004/filler"

// Task outcomes reported to a Recorder.
const (
	OutcomeWritten = "written"
	OutcomeMissing = "missing"
	OutcomeOutside = "outside"
)

// SampleEvaluator evaluates a parameter for a sample seen from a relative
// position.
type SampleEvaluator interface {
	EvaluateSample(ctx context.Context, s *model.Sample, pos *model.RelativePosition) (float64, error)
}

// ParameterSelector is a SampleEvaluator whose parameter can be changed.
type ParameterSelector interface {
	SampleEvaluator
	SetParameter(ctx context.Context, p *model.Parameter) error
}

// Recorder observes task outcomes.
type Recorder interface {
	RecordTask(outcome string)
}

// Report summarises one Fill call.
type Report struct {
	Tasks   int
	Written int
	Missing int
	Outside int
}

// Filler evaluates tasks and writes the results to a catalog.
type Filler struct {
	writer   catalog.Writer
	log      logging.Logger
	recorder Recorder
}

// Option configures a Filler.
type Option func(*Filler)

// WithLogger sets the filler logger.
func WithLogger(l logging.Logger) Option {
	return func(f *Filler) {
		if l != nil {
			f.log = l
		}
	}
}

// WithRecorder reports task outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(f *Filler) {
		f.recorder = r
	}
}

// New returns a Filler writing to w.
func New(w catalog.Writer, opts ...Option) *Filler {
	f := &Filler{writer: w, log: logging.Noop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fill evaluates the tasks in order and stores every non-missing value in
// column. A task outside the coverage is skipped and logged once per
// coverage. Any other evaluation or write error stops the batch.
func (f *Filler) Fill(ctx context.Context, ev SampleEvaluator, column string, tasks []Task) (Report, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "filler.Fill")
	defer span.End()
	span.SetAttributes(
		attribute.String("column", column),
		attribute.Int("tasks", len(tasks)),
	)

	log := f.log
	if id := logging.RunIDFromContext(ctx); id != "" {
		log = log.With(logging.String("run_id", id))
	}
	rep := Report{Tasks: len(tasks)}
	reported := make(map[string]struct{})
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		v, err := ev.EvaluateSample(ctx, task.Sample, task.Position)
		switch {
		case coverage.IsOutside(err):
			rep.Outside++
			f.record(OutcomeOutside)
			name := coverage.OutsideCoverageName(err)
			if _, seen := reported[name]; !seen {
				reported[name] = struct{}{}
				log.Warn(ctx, "sample outside coverage",
					logging.String("coverage", name),
					logging.String("column", column),
					logging.Any("sample", task.Sample.ID),
					logging.Err(err),
				)
			}
			continue
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return rep, fmt.Errorf("evaluate %s for sample %d: %w", column, task.Sample.ID, err)
		}
		if math.IsNaN(v) {
			rep.Missing++
			f.record(OutcomeMissing)
			continue
		}
		if err := f.writer.SetValue(ctx, task.Sample, task.Position, column, v); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return rep, err
		}
		rep.Written++
		f.record(OutcomeWritten)
	}

	span.SetAttributes(
		attribute.Int("written", rep.Written),
		attribute.Int("outside", rep.Outside),
	)
	log.Info(ctx, "environment column filled",
		logging.String("column", column),
		logging.Int("tasks", rep.Tasks),
		logging.Int("written", rep.Written),
		logging.Int("missing", rep.Missing),
		logging.Int("outside", rep.Outside),
	)
	return rep, nil
}

// FillParameter selects the named parameter on ev and fills its column for
// every sample of the catalog at the given positions, or at the default
// positions when none are named.
func (f *Filler) FillParameter(ctx context.Context, r catalog.Reader, ev ParameterSelector, name string, positions []string) (Report, error) {
	p, err := r.Parameter(ctx, name)
	if err != nil {
		return Report{}, err
	}
	if err := ev.SetParameter(ctx, p); err != nil {
		return Report{}, err
	}
	samples, err := r.Samples(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load samples: %w", err)
	}
	pos, err := catalog.PositionsOrDefault(ctx, r, positions)
	if err != nil {
		return Report{}, err
	}
	ctx, _ = logging.EnsureRunID(ctx)
	return f.Fill(ctx, ev, p.Name, BuildTasks(samples, pos))
}

func (f *Filler) record(outcome string) {
	if f.recorder != nil {
		f.recorder.RecordTask(outcome)
	}
}

