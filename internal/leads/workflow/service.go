// Package workflow implements the lead status state machine: guarded
// transitions, bulk application, and withdrawal handling.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"institute_backend/internal/events"
	"institute_backend/internal/leads/domain"
	"institute_backend/internal/leads/repository"
	"institute_backend/platform/apperr"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// bulkConcurrency bounds how many leads a bulk request works on at once.
const bulkConcurrency = 8

// casAttempts is how often a transition re-reads and retries after losing a
// compare-and-set race before giving up with a conflict.
const casAttempts = 3

// Store is the persistence surface the state machine needs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	UpdateStatusGuarded(ctx context.Context, id uuid.UUID, expectedStatus, newStatus, newPhase string, stampContact bool) (repository.Lead, error)
	SetWithdrawal(ctx context.Context, id uuid.UUID, reason string) (repository.Lead, error)
	Reactivate(ctx context.Context, id uuid.UUID, newStatus, newPhase string) (repository.Lead, error)
}

type Service struct {
	store Store
	bus   platformevents.Bus
	log   *logger.Logger
}

func New(store Store, bus platformevents.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// Transition moves a lead to target. The write is guarded on the status the
// decision was made against, so two agents racing on the same lead cannot
// interleave an illegal pair of transitions.
//
// A request for the status the lead already has is an idempotent no-op.
// Direct transitions to converted are rejected; conversion only happens
// through the verified-conversion flow, which freezes the status inside its
// own transaction.
func (s *Service) Transition(ctx context.Context, leadID uuid.UUID, target string, actorID *uuid.UUID) (repository.Lead, error) {
	if !domain.IsKnownStatus(target) {
		return repository.Lead{}, apperr.Validation("unknown status")
	}
	if target == domain.StatusConverted {
		return repository.Lead{}, apperr.Conflict("leads are converted through phone verification, not a direct status change")
	}

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		lead, err := s.store.GetByID(ctx, leadID)
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		if err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
		}

		if lead.Status == target {
			return lead, nil
		}
		if !domain.CanTransition(lead.Status, target) {
			return repository.Lead{}, apperr.Conflict(
				fmt.Sprintf("cannot transition lead from %s to %s", lead.Status, target))
		}

		phase := domain.DerivePhase(target, lead.LastContactAt != nil || target == domain.StatusContacted, lead.WorkflowPhase)
		stampContact := target == domain.StatusContacted && lead.LastContactAt == nil

		updated, err := s.store.UpdateStatusGuarded(ctx, leadID, lead.Status, target, phase, stampContact)
		if errors.Is(err, repository.ErrStatusChanged) {
			lastErr = err
			continue
		}
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead not found")
		}
		if err != nil {
			return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to update lead status", err)
		}

		s.log.WorkflowEvent(leadID.String(), lead.Status, target)
		s.bus.Publish(ctx, events.LeadStatusChanged{
			BaseEvent:  platformevents.NewBaseEvent(),
			LeadID:     leadID,
			FromStatus: lead.Status,
			ToStatus:   target,
			Phase:      updated.WorkflowPhase,
			ActorID:    actorID,
		})

		return updated, nil
	}

	return repository.Lead{}, apperr.Wrap(apperr.KindConflict, "lead was modified concurrently, try again", lastErr)
}

// BulkResult reports the outcome for a single lead in a bulk request.
type BulkResult struct {
	LeadID uuid.UUID
	Lead   repository.Lead
	Err    error
}

// ApplyBulk applies one target status to many leads. Each lead is processed
// independently; one failure never aborts the rest, and every lead's own
// transition is all-or-nothing. Results are returned in input order.
func (s *Service) ApplyBulk(ctx context.Context, leadIDs []uuid.UUID, target string, actorID *uuid.UUID) []BulkResult {
	results := make([]BulkResult, len(leadIDs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(bulkConcurrency)

	for i, id := range leadIDs {
		i, id := i, id
		group.Go(func() error {
			lead, err := s.Transition(groupCtx, id, target, actorID)
			results[i] = BulkResult{LeadID: id, Lead: lead, Err: err}
			// Per-item errors live in the result set, never in the group.
			return nil
		})
	}
	_ = group.Wait()

	return results
}

// Withdraw marks the lead lost with a recorded reason. If the lead is still
// active it is first transitioned to lost. A reason can only be recorded
// once; changing it requires reactivating first.
func (s *Service) Withdraw(ctx context.Context, leadID uuid.UUID, reason string, actorID *uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	if lead.Status == domain.StatusConverted {
		return repository.Lead{}, apperr.Conflict("a converted lead cannot be withdrawn")
	}
	if lead.WithdrawalReason != nil {
		return repository.Lead{}, apperr.Conflict("a withdrawal reason is already recorded; reactivate the lead to change it")
	}

	if lead.Status != domain.StatusLost {
		if _, err := s.Transition(ctx, leadID, domain.StatusLost, actorID); err != nil {
			return repository.Lead{}, err
		}
	}

	updated, err := s.store.SetWithdrawal(ctx, leadID, reason)
	if errors.Is(err, repository.ErrStatusChanged) {
		// A conversion committed between the lost-transition and this write.
		return repository.Lead{}, apperr.Conflict("a converted lead cannot be withdrawn")
	}
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to record withdrawal", err)
	}

	s.bus.Publish(ctx, events.LeadWithdrawn{
		BaseEvent: platformevents.NewBaseEvent(),
		LeadID:    leadID,
		Reason:    reason,
		ActorID:   actorID,
	})

	return updated, nil
}

// Reactivate returns a lost lead to the active workflow: withdrawal metadata
// is cleared, status becomes contacted, phase becomes follow_up.
// Reactivating a lead that is not lost is a no-op returning current state.
func (s *Service) Reactivate(ctx context.Context, leadID uuid.UUID, actorID *uuid.UUID) (repository.Lead, error) {
	lead, err := s.store.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	if lead.Status == domain.StatusConverted {
		return repository.Lead{}, apperr.Conflict("a converted lead cannot be reactivated")
	}
	if lead.Status != domain.StatusLost {
		return lead, nil
	}

	updated, err := s.store.Reactivate(ctx, leadID, domain.StatusContacted, domain.PhaseFollowUp)
	if errors.Is(err, repository.ErrStatusChanged) {
		// Raced with another reactivation; report current state.
		return s.store.GetByID(ctx, leadID)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to reactivate lead", err)
	}

	s.log.WorkflowEvent(leadID.String(), domain.StatusLost, domain.StatusContacted)
	s.bus.Publish(ctx, events.LeadReactivated{
		BaseEvent: platformevents.NewBaseEvent(),
		LeadID:    leadID,
		ToStatus:  domain.StatusContacted,
		ActorID:   actorID,
	})

	return updated, nil
}
