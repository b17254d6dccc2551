package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desruisseaux/Seagis-sub004/catalog"
	"github.com/desruisseaux/Seagis-sub004/coverage"
	"github.com/desruisseaux/Seagis-sub004/filler"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/internal/observability"
	"github.com/desruisseaux/Seagis-sub004/model"
)

var day0 = time.Date(2002, 3, 1, 0, 0, 0, 0, time.UTC)

// newTestJobs returns jobs over a 4x4 degree SST field increasing eastward.
func newTestJobs(t *testing.T) (*jobs, *catalog.Memory) {
	t.Helper()
	store := catalog.NewMemory()
	sst := &model.Series{Name: "SST"}
	if err := store.AddSeries(sst); err != nil {
		t.Fatalf("AddSeries error: %v", err)
	}
	if err := store.AddParameter(&model.Parameter{Name: "SST", Series: []*model.Series{sst}}); err != nil {
		t.Fatalf("AddParameter error: %v", err)
	}
	if err := store.AddRelativePosition(&model.RelativePosition{Name: "t0", Default: true}); err != nil {
		t.Fatalf("AddRelativePosition error: %v", err)
	}

	grid := coverage.NewGrid(50, -20, 1, 1, 4, 4, 1)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			grid.Set(0, c, r, 20+float64(c))
		}
	}
	provider := coverage.NewMemoryProvider()
	provider.Add("SST", day0, grid)
	provider.Add("SST", day0.AddDate(0, 0, 10), grid)

	metrics, err := observability.NewCoverageCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewCoverageCollector error: %v", err)
	}
	return &jobs{catalog: store, provider: provider, log: logging.Noop(), metrics: metrics}, store
}

func TestFillJobWritesSamples(t *testing.T) {
	j, store := newTestJobs(t)
	inside := &model.Sample{Time: day0.AddDate(0, 0, 2), Point: model.GeoPoint{Lon: 51.5, Lat: -21.5}}
	store.AddSample(inside)
	store.AddSample(&model.Sample{Time: day0.AddDate(0, 0, 2), Point: model.GeoPoint{Lon: 80, Lat: 0}})

	rep, err := j.fill(context.Background(), "SST", nil)
	if err != nil {
		t.Fatalf("fill error: %v", err)
	}
	if rep.Written != 1 || rep.Outside != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if v, ok := store.Value(inside.ID, "t0", "SST"); !ok || math.Abs(v-21) > 1e-6 {
		t.Fatalf("expected 21, got %v %v", v, ok)
	}
	if got := testutil.ToFloat64(j.metrics.FillerTasks.WithLabelValues(filler.OutcomeWritten)); got != 1 {
		t.Fatalf("expected 1 written task metric, got %v", got)
	}
}

func TestMapJobRendersPotential(t *testing.T) {
	j, _ := newTestJobs(t)
	out := filepath.Join(t.TempDir(), "sst.png")
	m, err := j.potentialMap(context.Background(), mapRequest{
		Parameter: "SST",
		Time:      day0.AddDate(0, 0, 1),
		Area:      model.Area{West: 50, East: 54, South: -24, North: -20},
		Step:      1,
		Generator: filler.GeneratorPotential,
		Locale:    "fr",
		Output:    out,
	})
	if err != nil {
		t.Fatalf("potentialMap error: %v", err)
	}
	if m.Stats.Coverage != 1 {
		t.Fatalf("expected full coverage, got %v", m.Stats.Coverage)
	}
	if math.Abs(m.At(0, 0)) > 1e-9 || math.Abs(m.At(3, 0)-1) > 1e-9 {
		t.Fatalf("expected potential from 0 in the west to 1 in the east, got %v and %v", m.At(0, 0), m.At(3, 0))
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Fatalf("expected a rendered map at %s: %v", out, err)
	}
}

func TestMapJobUnknownParameter(t *testing.T) {
	j, _ := newTestJobs(t)
	_, err := j.potentialMap(context.Background(), mapRequest{Parameter: "CHL", Step: 1, Area: model.Area{West: 50, East: 51, South: -21, North: -20}})
	if err == nil {
		t.Fatalf("expected an error for an unknown parameter")
	}
}

func TestParseMapRequest(t *testing.T) {
	req, err := parseMapRequest("SST", "2002-03-04", "50,54,-24,-20", 0.5, filler.GeneratorValue, "en", "")
	if err != nil {
		t.Fatalf("parseMapRequest error: %v", err)
	}
	if !req.Time.Equal(time.Date(2002, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", req.Time)
	}
	if req.Area != (model.Area{West: 50, East: 54, South: -24, North: -20}) {
		t.Fatalf("unexpected area %+v", req.Area)
	}
	if _, err := parseMapRequest("SST", "yesterday", "50,54,-24,-20", 0.5, "", "", ""); err == nil {
		t.Fatalf("expected an error for a bad date")
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" t-1, ,t-30 "); !reflect.DeepEqual(got, []string{"t-1", "t-30"}) {
		t.Fatalf("unexpected split %v", got)
	}
	if got := splitList(""); got != nil {
		t.Fatalf("expected nil for an empty list, got %v", got)
	}
}
