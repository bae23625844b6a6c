package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/okian/oratora/internal/adapters/http/api"
	"github.com/okian/oratora/internal/adapters/http/swagger"
	"github.com/okian/oratora/internal/adapters/repository"
	service "github.com/okian/oratora/internal/app"
	"github.com/okian/oratora/internal/config"
	"github.com/okian/oratora/internal/domain/scoring"
	"github.com/okian/oratora/pkg/logger"
	"github.com/okian/oratora/pkg/metrics"
)

// HTTP server timeout constants. Reads are generous because a conductor
// recording can be tens of megabytes on a slow uplink.
const (
	readTimeout           = 60 * time.Second
	writeTimeout          = 30 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Go and process collectors duplicate the system gauges we publish ourselves.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be configured yet.
		os.Stderr.WriteString("oratora: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// run loads configuration, wires the service and serves HTTP until ctx is done.
func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWithFormat(logger.Format(cfg.LogFormat), os.Stdout); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	scorer, err := newScorer(ctx, cfg)
	if err != nil {
		return err
	}
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := service.New(
		service.WithLogger(log.Named("service")),
		service.WithScorer(scorer),
		service.WithStore(store),
		service.WithAudioDir(cfg.AudioDir),
		service.WithQueueCapacity(cfg.QueueCapacity),
		service.WithMaxPrompts(cfg.MaxPrompts),
		service.WithMaxAudioBytes(cfg.MaxAudioBytes),
		service.WithRetention(cfg.RetentionWindow, cfg.SweepInterval),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithLogger(log.Named("api")),
		// Form fields ride along with the audio part.
		api.WithMaxUploadBytes(cfg.MaxAudioBytes+1<<20),
	).Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		updateSystemMetrics(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		// Accepted evaluations are finished before the process exits.
		if err := svc.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	if err != nil {
		log.Error(ctx, "server stopped with error", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newScorer builds the scoring client selected by scoring_provider.
func newScorer(ctx context.Context, cfg *config.Config) (scoring.Client, error) {
	switch cfg.ScoringProvider {
	case config.ProviderGemini:
		sc, err := scoring.NewGeminiScorer(ctx, cfg.GeminiAPIKey,
			scoring.WithModel(cfg.GeminiModel),
			scoring.WithTimeout(cfg.ScoringTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("create gemini scorer: %w", err)
		}
		return sc, nil
	default:
		return scoring.NewSimulatedScorer(
			scoring.WithLatencyRange(
				time.Duration(cfg.ScoringLatencyMinMS)*time.Millisecond,
				time.Duration(cfg.ScoringLatencyMaxMS)*time.Millisecond,
			),
			scoring.WithFailureRate(cfg.ScoringFailureRate),
		), nil
	}
}

// newStore opens PostgreSQL when database_url is set and falls back to memory.
func newStore(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		return repository.NewMemoryStore(), func() {}, nil
	}
	pg, err := repository.ConnectPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect history store: %w", err)
	}
	return pg, pg.Close, nil
}

// updateSystemMetrics publishes runtime gauges until ctx is done.
func updateSystemMetrics(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			metrics.UpdateSystemMemoryUsage(m.Alloc)
			metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
		}
	}
}
