package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/vet-reminders/cmd/mainconfig"
	appconfig "github.com/clinicware/vet-reminders/internal/config"
	"github.com/clinicware/vet-reminders/internal/http/handlers"
	"github.com/clinicware/vet-reminders/internal/http/middleware"
	"github.com/clinicware/vet-reminders/internal/observability/metrics"
	"github.com/clinicware/vet-reminders/internal/practice"
	"github.com/clinicware/vet-reminders/internal/reminder"
	"github.com/clinicware/vet-reminders/internal/send"
	"github.com/clinicware/vet-reminders/internal/store/memory"
	"github.com/clinicware/vet-reminders/internal/store/postgres"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

// appStore is the union of the worker's and the handlers' store surfaces.
type appStore interface {
	send.Store
	handlers.Store
}

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vet-reminders API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	redisClient := newRedisClient(cfg)
	practiceStore := practice.NewStore(redisClient)

	emailSender, err := mainconfig.NewEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build email sender", "error", err)
		os.Exit(1)
	}
	smsSender := mainconfig.NewSMSSender(cfg, logger)

	m := metrics.NewReminderMetrics(nil)
	worker := send.NewWorker(store, emailSender, smsSender, m, logger, workerOptions(ctx, cfg, practiceStore, logger))
	go worker.Start(ctx)

	r := newRouter(cfg, logger, store, worker, practiceStore)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// newStore connects to Postgres, or falls back to the in-memory store when no
// database is configured.
func newStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (appStore, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store")
		return memory.New(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return postgres.New(pool), pool.Close, nil
}

func newRedisClient(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// workerOptions resolves the worker's timing and grouping settings: the
// default practice's stored settings when available, environment switches
// otherwise.
func workerOptions(ctx context.Context, cfg *appconfig.Config, practices *practice.Store, logger *logging.Logger) send.Options {
	email, sms, print := cfg.GroupingPolicy()
	opts := send.Options{
		Config:       practice.DefaultSettings("default").Reminders,
		Grouping:     reminder.GroupingPolicy{Email: email, SMS: sms, Print: print},
		DisableSMS:   cfg.DisableSMS,
		PageSize:     cfg.ProcessPageSize,
		PollInterval: cfg.WorkerPollInterval,
	}
	settings, err := practices.Get(ctx, "default")
	if err != nil {
		logger.Warn("failed to load practice settings, using defaults", "error", err)
		return opts
	}
	opts.Config = settings.Reminders
	opts.Grouping = settings.Grouping
	opts.DisableSMS = cfg.DisableSMS || settings.DisableSMS
	return opts
}

func newRouter(cfg *appconfig.Config, logger *logging.Logger, store appStore, worker *send.Worker, practiceStore *practice.Store) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(middleware.RateLimit(20, 40))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminJWT(cfg.AdminJWTSecret))
		r.Mount("/practices", practice.NewHandler(practiceStore, logger).Routes())
		r.Mount("/reminders", handlers.NewReminderHandler(store, worker, logger).Routes())
	})

	return r
}
