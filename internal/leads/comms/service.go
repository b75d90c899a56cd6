// Package comms implements the append-only communication log for leads.
package comms

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"institute_backend/internal/events"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/leads/transport"
	"institute_backend/platform/apperr"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// Store is the persistence surface the logger needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CreateCommunication(ctx context.Context, params repository.CreateCommunicationParams) (repository.Communication, error)
	ListCommunications(ctx context.Context, leadID uuid.UUID, offset, limit int) ([]repository.Communication, int, error)
	TouchLastContact(ctx context.Context, id uuid.UUID) error
}

// Scheduler enqueues a reminder for a communication scheduled in the future.
type Scheduler interface {
	EnqueueFollowUpReminder(ctx context.Context, leadID, commID uuid.UUID, due time.Time) error
}

type Service struct {
	store     Store
	scheduler Scheduler
	bus       platformevents.Bus
	log       *logger.Logger
}

func New(store Store, scheduler Scheduler, bus platformevents.Bus, log *logger.Logger) *Service {
	return &Service{store: store, scheduler: scheduler, bus: bus, log: log}
}

// Log appends an entry to the lead's communication history. Contact-type
// entries stamp the lead's last-contact time; entries with a future
// scheduled-for get a reminder enqueued. The log itself is append only.
func (s *Service) Log(ctx context.Context, leadID uuid.UUID, req transport.LogCommunicationRequest, actorID *uuid.UUID) (repository.Communication, error) {
	if !repository.IsKnownCommType(req.Type) || req.Type == repository.CommTypeSystem {
		return repository.Communication{}, apperr.Validation("unknown communication type")
	}

	if _, err := s.store.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Communication{}, apperr.NotFound("lead not found")
		}
		return repository.Communication{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	comm, err := s.store.CreateCommunication(ctx, repository.CreateCommunicationParams{
		LeadID:       leadID,
		Type:         req.Type,
		Subject:      req.Subject,
		Content:      req.Content,
		ActorAgentID: actorID,
		ScheduledFor: req.ScheduledFor,
	})
	if err != nil {
		return repository.Communication{}, apperr.Wrap(apperr.KindInternal, "failed to log communication", err)
	}

	if repository.IsContactCommType(comm.Type) {
		if err := s.store.TouchLastContact(ctx, leadID); err != nil {
			s.log.Error("failed to stamp last contact", "lead_id", leadID, "error", err)
		}
	}

	if comm.ScheduledFor != nil && comm.ScheduledFor.After(time.Now()) && s.scheduler != nil {
		if err := s.scheduler.EnqueueFollowUpReminder(ctx, leadID, comm.ID, *comm.ScheduledFor); err != nil {
			// The entry is durable; a lost reminder is logged, not surfaced.
			s.log.Error("failed to enqueue follow-up reminder", "lead_id", leadID, "error", err)
		}
	}

	s.bus.Publish(ctx, events.CommunicationLogged{
		BaseEvent:    platformevents.NewBaseEvent(),
		LeadID:       leadID,
		CommID:       comm.ID,
		CommType:     comm.Type,
		ScheduledFor: comm.ScheduledFor,
	})

	return comm, nil
}

// History returns the lead's log newest first.
func (s *Service) History(ctx context.Context, leadID uuid.UUID, page, pageSize int) ([]repository.Communication, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	if _, err := s.store.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, 0, apperr.NotFound("lead not found")
		}
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	entries, total, err := s.store.ListCommunications(ctx, leadID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to list communications", err)
	}
	return entries, total, nil
}
