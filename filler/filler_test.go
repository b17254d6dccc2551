package filler

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/evaluator"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/model"
)

// scriptedEvaluator returns a fixed result per sample ID.
type scriptedEvaluator struct {
	values map[int64]float64
	errs   map[int64]error
	order  []int64
}

func (s *scriptedEvaluator) EvaluateSample(_ context.Context, sm *model.Sample, _ *model.RelativePosition) (float64, error) {
	s.order = append(s.order, sm.ID)
	if err, ok := s.errs[sm.ID]; ok {
		return 0, err
	}
	return s.values[sm.ID], nil
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (r *recordingLogger) Debug(context.Context, string, ...logging.Field) {}
func (r *recordingLogger) Info(context.Context, string, ...logging.Field)  {}
func (r *recordingLogger) Error(context.Context, string, ...logging.Field) {}
func (r *recordingLogger) With(...logging.Field) logging.Logger            { return r }

func (r *recordingLogger) Warn(_ context.Context, _ string, fields ...logging.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range fields {
		if f.Key == "coverage" {
			r.warns = append(r.warns, f.Value.(string))
		}
	}
}

type countingRecorder map[string]int

func (c countingRecorder) RecordTask(outcome string) { c[outcome]++ }

func outside(name string) error {
	return &coverage.PointOutsideError{Coverage: name, Time: day0}
}

func TestFill_WritesOnlyValues(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemory()
	log := &recordingLogger{}
	rec := countingRecorder{}
	f := New(store, WithLogger(log), WithRecorder(rec))

	ev := &scriptedEvaluator{
		values: map[int64]float64{1: 21.5, 2: math.NaN(), 5: 19},
		errs: map[int64]error{
			3: outside("SST"),
			4: outside("SST"),
			6: outside("CHL"),
		},
	}
	var samples []*model.Sample
	for id := int64(1); id <= 6; id++ {
		samples = append(samples, sampleAt(id, int(id)))
	}
	rep, err := f.Fill(ctx, ev, "SST", BuildTasks(samples, nil))
	if err != nil {
		t.Fatalf("Fill error: %v", err)
	}
	if rep != (Report{Tasks: 6, Written: 2, Missing: 1, Outside: 3}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	if store.ValueCount() != 2 {
		t.Fatalf("expected 2 stored values, got %d", store.ValueCount())
	}
	if v, ok := store.Value(5, "", "SST"); !ok || v != 19 {
		t.Fatalf("expected 19 for sample 5, got %v %v", v, ok)
	}
	if len(log.warns) != 2 || log.warns[0] != "SST" || log.warns[1] != "CHL" {
		t.Fatalf("expected one warning per coverage, got %v", log.warns)
	}
	if rec[OutcomeWritten] != 2 || rec[OutcomeMissing] != 1 || rec[OutcomeOutside] != 3 {
		t.Fatalf("unexpected recorded outcomes %v", rec)
	}
}

func TestFill_StopsOnOtherErrors(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemory()
	boom := errors.New("disk failure")
	ev := &scriptedEvaluator{
		values: map[int64]float64{1: 1, 3: 3},
		errs:   map[int64]error{2: boom},
	}
	samples := []*model.Sample{sampleAt(1, 1), sampleAt(2, 2), sampleAt(3, 3)}
	rep, err := New(store).Fill(ctx, ev, "SST", BuildTasks(samples, nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped failure, got %v", err)
	}
	if rep.Written != 1 || len(ev.order) != 2 {
		t.Fatalf("batch should stop at the failing task: %+v, evaluated %v", rep, ev.order)
	}
}

func TestFill_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ev := &scriptedEvaluator{}
	_, err := New(catalog.NewMemory()).Fill(ctx, ev, "SST", BuildTasks([]*model.Sample{sampleAt(1, 0)}, nil))
	if !errors.Is(err, context.Canceled) || len(ev.order) != 0 {
		t.Fatalf("expected cancellation before any evaluation, got %v", err)
	}
}

func TestFillParameter_EndToEnd(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemory()

	sst := &model.Series{Name: "SST"}
	if err := store.AddSeries(sst); err != nil {
		t.Fatalf("AddSeries: %v", err)
	}
	if err := store.AddParameter(&model.Parameter{Name: "SST", Series: []*model.Series{sst}}); err != nil {
		t.Fatalf("AddParameter: %v", err)
	}
	before := &model.RelativePosition{Name: "t-1", TimeOffset: -24 * time.Hour, Default: true}
	store.AddRelativePosition(before)
	store.AddRelativePosition(&model.RelativePosition{Name: "t-30", TimeOffset: -30 * 24 * time.Hour})

	inside := &model.Sample{Time: day0.AddDate(0, 0, 1), Point: model.GeoPoint{Lon: 55.5, Lat: -20.5}}
	far := &model.Sample{Time: day0.AddDate(0, 0, 1), Point: model.GeoPoint{Lon: 120, Lat: 10}}
	store.AddSample(inside)
	store.AddSample(far)

	grid := coverage.NewGrid(55, -20, 1, 1, 1, 1, 1)
	grid.Set(0, 0, 0, 26.5)
	provider := coverage.NewMemoryProvider()
	provider.Add("SST", day0, grid)
	provider.Add("SST", day0.AddDate(0, 0, 10), grid)

	rep, err := New(store).FillParameter(ctx, store, evaluator.New(provider), "SST", nil)
	if err != nil {
		t.Fatalf("FillParameter: %v", err)
	}
	if rep.Tasks != 2 || rep.Written != 1 || rep.Outside != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if v, ok := store.Value(inside.ID, "t-1", "SST"); !ok || math.Abs(v-26.5) > 1e-6 {
		t.Fatalf("expected 26.5 at t-1, got %v %v", v, ok)
	}

	if _, err := New(store).FillParameter(ctx, store, evaluator.New(provider), "CHL", nil); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown parameter, got %v", err)
	}
}
