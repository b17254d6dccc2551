package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desruisseaux/Seagis-sub004/internal/config"
	"github.com/desruisseaux/Seagis-sub004/internal/logging"
	"github.com/desruisseaux/Seagis-sub004/internal/observability"
	"github.com/desruisseaux/Seagis-sub004/internal/render"
	"github.com/desruisseaux/Seagis-sub004/timectrl"
)

func main() {
	os.Exit(execute())
}

func execute() int {
	configPath := flag.String("config", "simulation.txt", "Path to the simulation configuration file")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics; empty disables it")
	imageRoot := flag.String("images", "", "Directory that image paths in the catalog are relative to")
	realtime := flag.Bool("realtime", false, "Wait -pace of wall-clock time between steps")
	pace := flag.Duration("pace", time.Second, "Wall-clock delay between steps in realtime mode")
	flag.Parse()

	// a missing .env file is not an error
	_ = godotenv.Load()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, log = logging.WithRunLogger(ctx, log)

	tracingCfg, err := observability.TracingConfigFromEnv("seagis-simulator")
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

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		return 1
	}

	registry := prometheus.NewRegistry()
	coverageMetrics, err := observability.NewCoverageCollector(registry)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	simMetrics, err := observability.NewSimulationCollector(registry)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		return 1
	}
	metricsSrv := serveMetrics(*metricsAddr, registry, log)

	mode := timectrl.Accelerated
	if *realtime {
		mode = timectrl.RealTime
	}
	sim, err := newSimulation(ctx, cfg, setup{
		log:       log,
		coverage:  coverageMetrics,
		steps:     simMetrics,
		imageRoot: *imageRoot,
		mode:      mode,
		pace:      *pace,
	})
	if err != nil {
		log.Error(ctx, "failed to build simulation", logging.Err(err))
		return 1
	}

	code := 0
	if err := sim.run(ctx); err != nil {
		log.Error(ctx, "simulation stopped", logging.Err(err))
		code = 1
	}
	if cfg.TracksOutput != "" {
		if err := render.Tracks(sim.tracks(), cfg.Area, "Animat tracks", cfg.TracksOutput); err != nil {
			log.Warn(ctx, "failed to render tracks", logging.String("path", cfg.TracksOutput), logging.Err(err))
		} else {
			log.Info(ctx, "tracks written", logging.String("path", cfg.TracksOutput))
		}
	}
	if err := sim.Close(); err != nil {
		log.Warn(ctx, "failed to close catalog", logging.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return code
}

func serveMetrics(addr string, gatherer prometheus.Gatherer, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

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
