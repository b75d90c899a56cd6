// Command api runs the institute backend HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"institute_backend/internal/conversion"
	"institute_backend/internal/email"
	"institute_backend/internal/leads"
	"institute_backend/internal/notification"
	"institute_backend/internal/router"
	"institute_backend/internal/scheduler"
	"institute_backend/platform/cache"
	"institute_backend/platform/config"
	"institute_backend/platform/db"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
	"institute_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)
	validator.RegisterGinValidators()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := withRetry(ctx, log, "database", func() (*pgxpool.Pool, error) {
		return db.NewPool(ctx, cfg)
	})
	if err != nil {
		log.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, "migrations"); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	redisClient, err := withRetry(ctx, log, "redis", func() (*redis.Client, error) {
		return cache.NewClient(ctx, cfg)
	})
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	taskClient, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("task queue unavailable", "error", err)
		os.Exit(1)
	}
	defer taskClient.Close()

	bus := platformevents.NewInMemoryBus(log)

	leadsModule := leads.New(pool, taskClient, bus, log)
	conversionModule := conversion.New(pool, redisClient, leadsModule.Repo, cfg, bus, log)

	notifier := notification.New(email.NewSender(cfg, log), cfg, log)
	notifier.Subscribe(bus)

	engine := router.New(router.Deps{
		Env:        cfg.Env,
		HTTPConfig: cfg,
		JWTConfig:  cfg,
		Log:        log,
		DB:         db.NewPoolAdapter(pool),
		Redis:      cache.NewPingAdapter(redisClient),
		Leads:      leadsModule,
		Conversion: conversionModule,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// withRetry dials a dependency with backoff so the service survives a slow
// database or redis on boot.
func withRetry[T any](ctx context.Context, log *logger.Logger, name string, dial func() (T, error)) (T, error) {
	var zero T
	backoff := time.Second
	for attempt := 1; attempt <= 5; attempt++ {
		value, err := dial()
		if err == nil {
			return value, nil
		}
		log.Warn("dependency not ready", "dependency", name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return dial()
}
