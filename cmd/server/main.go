package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/TimurManjosov/sprida/internal/api"
	"github.com/TimurManjosov/sprida/internal/audit"
	"github.com/TimurManjosov/sprida/internal/auth"
	"github.com/TimurManjosov/sprida/internal/config"
	"github.com/TimurManjosov/sprida/internal/logging"
	"github.com/TimurManjosov/sprida/internal/store"
	"github.com/TimurManjosov/sprida/internal/telemetry"
	"github.com/TimurManjosov/sprida/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sprida: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN, cfg.DBMaxConns)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()

	telemetry.Init()

	keys, err := auth.ParseKeys(cfg.APIKeys)
	if err != nil {
		return fmt.Errorf("API_KEYS: %w", err)
	}
	opts := []api.Option{
		api.WithLogger(logger),
		api.WithRateLimit(cfg.RateLimitPerIP),
		api.WithAPIKeys(keys),
	}

	sink, err := auditSink(ctx, cfg, st, logger)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	if sink != nil {
		auditSvc := audit.NewService(sink, cfg.AuditQueueSize, audit.WithLogger(logger))
		defer auditSvc.Close()
		opts = append(opts, api.WithAudit(auditSvc))
	}

	if len(cfg.WebhookURLs) > 0 {
		endpoints := make([]webhook.Endpoint, 0, len(cfg.WebhookURLs))
		for _, u := range cfg.WebhookURLs {
			endpoints = append(endpoints, webhook.Endpoint{
				URL:        u,
				Secret:     cfg.WebhookSecret,
				Events:     cfg.WebhookEvents,
				MaxRetries: cfg.WebhookMaxRetries,
				Timeout:    cfg.WebhookTimeout,
			})
		}
		dispatcher := webhook.NewDispatcher(endpoints, webhook.WithLogger(logger))
		dispatcher.Start()
		defer dispatcher.Close()
		opts = append(opts, api.WithWebhooks(dispatcher))
		logger.Info().Int("endpoints", len(endpoints)).Msg("webhooks enabled")
	}

	srvAPI := api.NewServer(st, cfg.Env, cfg.AdminAPIKey, opts...)
	if err := srvAPI.RebuildSnapshot(ctx); err != nil {
		return fmt.Errorf("load splits: %w", err)
	}
	logger.Info().
		Str("env", cfg.Env).
		Str("store", cfg.StoreType).
		Msg("initial snapshot loaded")

	apiServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(logger, "api", apiServer) })
	g.Go(func() error { return serve(logger, "metrics", metricsServer) })
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutCtx), metricsServer.Shutdown(shutCtx))
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("stopped")
	return nil
}

func serve(logger zerolog.Logger, name string, srv *http.Server) error {
	logger.Info().Str("server", name).Str("addr", srv.Addr).Msg("listening")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// auditSink picks where split changes are recorded. It returns nil when
// auditing is disabled.
func auditSink(ctx context.Context, cfg *config.Config, st store.Store, logger zerolog.Logger) (audit.Sink, error) {
	switch cfg.AuditSink {
	case "none":
		return nil, nil
	case "postgres":
		pg, ok := st.(*store.PostgresStore)
		if !ok {
			return nil, errors.New("postgres audit sink requires the postgres store")
		}
		sink := audit.NewPostgresSink(pg.Pool())
		if err := sink.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return audit.NewLogSink(logger.With().Str("component", "audit").Logger()), nil
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}
