package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"institute_backend/internal/leads/domain"
	"institute_backend/internal/leads/repository"
	"institute_backend/platform/config"
	"institute_backend/platform/logger"
)

// LeadReader loads leads for reminder processing.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CreateCommunication(ctx context.Context, params repository.CreateCommunicationParams) (repository.Communication, error)
}

// Notifier tells the team a follow-up is due.
type Notifier interface {
	FollowUpDue(ctx context.Context, lead repository.Lead) error
}

// Worker consumes scheduled tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, leads LeadReader, notifier Notifier, log *logger.Logger) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeFollowUpReminder, followUpReminderHandler(leads, notifier, log))

	return &Worker{server: server, mux: mux, log: log}, nil
}

// Run blocks processing tasks until Shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func followUpReminderHandler(leads LeadReader, notifier Notifier, log *logger.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := ParseFollowUpReminderTask(task)
		if err != nil {
			return fmt.Errorf("parse follow-up reminder: %v: %w", err, asynq.SkipRetry)
		}

		lead, err := leads.GetByID(ctx, payload.LeadID)
		if errors.Is(err, repository.ErrNotFound) {
			// Lead gone, nothing to remind about.
			return nil
		}
		if err != nil {
			return err
		}

		// Terminal leads need no follow-up.
		if domain.IsTerminal(lead.Status) {
			return nil
		}

		if err := notifier.FollowUpDue(ctx, lead); err != nil {
			return err
		}

		if _, err := leads.CreateCommunication(ctx, repository.CreateCommunicationParams{
			LeadID:  lead.ID,
			Type:    repository.CommTypeSystem,
			Content: "Follow-up reminder sent to the team",
		}); err != nil {
			log.Error("failed to log reminder note", "lead_id", lead.ID, "error", err)
		}

		log.Info("follow-up reminder processed", "lead_id", lead.ID, "comm_id", payload.CommID)
		return nil
	}
}
