// Command scheduler runs the deferred-task worker (follow-up reminders).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"institute_backend/internal/email"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/notification"
	"institute_backend/internal/scheduler"
	"institute_backend/platform/config"
	"institute_backend/platform/db"
	"institute_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

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

	leadsRepo := repository.New(pool)
	notifier := notification.New(email.NewSender(cfg, log), cfg, log)

	worker, err := scheduler.NewWorker(cfg, leadsRepo, notifier, log)
	if err != nil {
		log.Error("worker setup failed", "error", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down worker")
		worker.Shutdown()
	}()

	log.Info("scheduler worker running", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
	if err := worker.Run(); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

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
