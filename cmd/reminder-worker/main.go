// Command reminder-worker runs the reminder pipeline on a schedule without
// the HTTP API: evaluating due reminders into items and dispatching pending
// email and SMS items.
package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/vet-reminders/cmd/mainconfig"
	appconfig "github.com/clinicware/vet-reminders/internal/config"
	"github.com/clinicware/vet-reminders/internal/observability/metrics"
	"github.com/clinicware/vet-reminders/internal/practice"
	"github.com/clinicware/vet-reminders/internal/reminder"
	"github.com/clinicware/vet-reminders/internal/send"
	"github.com/clinicware/vet-reminders/internal/store/postgres"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting vet-reminders worker", "env", cfg.Env)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	store := postgres.New(pool)

	redisOpts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	practices := practice.NewStore(redis.NewClient(redisOpts))

	emailSender, err := mainconfig.NewEmailSender(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build email sender", "error", err)
		os.Exit(1)
	}
	smsSender := mainconfig.NewSMSSender(cfg, logger)

	email, sms, print := cfg.GroupingPolicy()
	opts := send.Options{
		Config:       reminder.DefaultConfiguration(),
		Grouping:     reminder.GroupingPolicy{Email: email, SMS: sms, Print: print},
		DisableSMS:   cfg.DisableSMS,
		PageSize:     cfg.ProcessPageSize,
		PollInterval: cfg.WorkerPollInterval,
	}
	if settings, err := practices.Get(ctx, "default"); err != nil {
		logger.Warn("failed to load practice settings, using defaults", "error", err)
	} else {
		opts.Config = settings.Reminders
		opts.Grouping = settings.Grouping
		opts.DisableSMS = cfg.DisableSMS || settings.DisableSMS
	}

	worker := send.NewWorker(store, emailSender, smsSender, metrics.NewReminderMetrics(nil), logger, opts)
	go worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("worker shutting down")
	cancel()
}
