package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/desruisseaux/Seagis-sub004/catalog/sqlcatalog"
	"github.com/desruisseaux/Seagis-sub004/filler"
	"github.com/desruisseaux/Seagis-sub004/internal/config"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/internal/observability"
	"github.com/desruisseaux/Seagis-sub004/internal/raster"
)

var errNothingToDo = errors.New("nothing to do: set -fill or -parameter")

func main() {
	os.Exit(execute())
}

func execute() int {
	dbPath := flag.String("db", "", "Path to the SQLite catalog")
	imageRoot := flag.String("images", "", "Directory that image paths in the catalog are relative to")
	fillParam := flag.String("fill", "", "Parameter whose column is filled for every sample")
	positions := flag.String("positions", "", "Comma-separated relative positions to fill; default positions when empty")
	mapParam := flag.String("parameter", "", "Parameter mapped over -area at -date")
	date := flag.String("date", "", "Map time, YYYY-MM-DD or RFC 3339")
	area := flag.String("area", "", "Map area as west,east,south,north in degrees")
	step := flag.Float64("step", 0.25, "Map cell size in degrees")
	generator := flag.String("generator", filler.GeneratorValue, "Map generator: value or potential")
	locale := flag.String("locale", "en", "Locale used to format map captions")
	output := flag.String("file", "", "PNG file the map is written to")
	every := flag.Duration("every", 0, "Repeat the jobs at this interval; run once when zero")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics; empty disables it")
	flag.Parse()

	_ = godotenv.Load()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *dbPath == "" {
		*dbPath = os.Getenv("SEAGIS_DATABASE")
	}
	if *dbPath == "" {
		log.Error(ctx, "no catalog: set -db or SEAGIS_DATABASE")
		return 2
	}
	if *fillParam == "" && *mapParam == "" {
		log.Error(ctx, "invalid arguments", logging.Err(errNothingToDo))
		return 2
	}

	var req mapRequest
	if *mapParam != "" {
		var err error
		if req, err = parseMapRequest(*mapParam, *date, *area, *step, *generator, *locale, *output); err != nil {
			log.Error(ctx, "invalid map request", logging.Err(err))
			return 2
		}
	}

	tracingCfg, err := observability.TracingConfigFromEnv("seagis-filler")
	if err != nil {
		log.Error(ctx, "invalid tracing configuration", logging.Err(err))
		return 2
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewCoverageCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	store, err := sqlcatalog.Open(ctx, *dbPath, sqlcatalog.WithLogger(log))
	if err != nil {
		log.Error(ctx, "failed to open catalog", logging.String("path", *dbPath), logging.Err(err))
		return 1
	}
	defer store.Close()

	j := &jobs{
		catalog:  store,
		provider: raster.NewProvider(store, raster.WithRoot(*imageRoot), raster.WithLogger(log)),
		log:      log,
		metrics:  collector,
	}
	runOnce := func(ctx context.Context) error {
		ctx, log := logging.WithRunLogger(ctx, log)
		if *fillParam != "" {
			rep, err := j.fill(ctx, *fillParam, splitList(*positions))
			if err != nil {
				return err
			}
			log.Info(ctx, "fill finished", logging.String("parameter", *fillParam), logging.Int("written", rep.Written))
		}
		if *mapParam != "" {
			if _, err := j.potentialMap(ctx, req); err != nil {
				return err
			}
		}
		return nil
	}

	if *every <= 0 {
		if err := runOnce(ctx); err != nil {
			log.Error(ctx, "job failed", logging.Err(err))
			return 1
		}
		return 0
	}

	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(*every).Do(func() {
		if err := runOnce(ctx); err != nil {
			log.Warn(ctx, "scheduled job failed", logging.Err(err))
		}
	}); err != nil {
		log.Error(ctx, "failed to schedule jobs", logging.Err(err))
		return 1
	}
	s.StartAsync()
	log.Info(ctx, "jobs scheduled", logging.Duration("every", *every))
	<-ctx.Done()
	log.Info(ctx, "stopping scheduler")
	s.Stop()
	return 0
}

func parseMapRequest(parameter, date, area string, step float64, generator, locale, output string) (mapRequest, error) {
	req := mapRequest{
		Parameter: parameter,
		Step:      step,
		Generator: generator,
		Locale:    locale,
		Output:    output,
	}
	var err error
	if req.Area, err = config.ParseArea(area); err != nil {
		return mapRequest{}, err
	}
	if req.Time, err = config.ParseTime(date); err != nil {
		return mapRequest{}, err
	}
	return req, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func serveMetrics(addr string, collector *observability.CoverageCollector, log logging.Logger) *http.Server {
	if addr == "" || collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
