// Package service implements lead intake and profile management.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"institute_backend/internal/events"
	"institute_backend/internal/leads/domain"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/leads/transport"
	"institute_backend/platform/apperr"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
	"institute_backend/platform/phone"
)

type Service struct {
	repo *repository.Repository
	bus  platformevents.Bus
	log  *logger.Logger
}

func New(repo *repository.Repository, bus platformevents.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, bus: bus, log: log}
}

// Create registers a new lead. The phone number is normalized to E.164 and
// checked against active leads so the same person is not worked twice.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (repository.Lead, error) {
	normalized, ok := phone.NormalizeMobile(req.Phone)
	if !ok {
		return repository.Lead{}, apperr.Validation("invalid mobile number")
	}

	existing, err := s.repo.GetByPhone(ctx, normalized)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to check for duplicates", err)
	}
	if err == nil && !domain.IsTerminal(existing.Status) {
		return repository.Lead{}, apperr.Conflict("an active lead with this phone already exists")
	}

	priority := req.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}

	var agentID *uuid.UUID
	if req.AssignedAgentID != nil {
		parsed, err := uuid.Parse(*req.AssignedAgentID)
		if err != nil {
			return repository.Lead{}, apperr.Validation("invalid agent id")
		}
		agentID = &parsed
	}

	lead, err := s.repo.Create(ctx, repository.CreateLeadParams{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Phone:              normalized,
		Email:              req.Email,
		Source:             req.Source,
		Priority:           priority,
		InterestedLanguage: req.InterestedLanguage,
		InterestedLevel:    req.InterestedLevel,
		InterestedFormat:   req.InterestedFormat,
		Budget:             req.Budget,
		Status:             domain.StatusNew,
		WorkflowPhase:      domain.PhaseNewIntake,
		AssignedAgentID:    agentID,
	})
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err)
	}

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent:       platformevents.NewBaseEvent(),
		LeadID:          lead.ID,
		Phone:           lead.Phone,
		Source:          lead.Source,
		Priority:        lead.Priority,
		AssignedAgentID: lead.AssignedAgentID,
	})

	return lead, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	return lead, nil
}

// Update applies profile changes. These fields are last write wins; workflow
// state is never touched here.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (repository.Lead, error) {
	params := repository.UpdateLeadParams{
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Email:              req.Email,
		Priority:           req.Priority,
		InterestedLanguage: req.InterestedLanguage,
		InterestedLevel:    req.InterestedLevel,
		InterestedFormat:   req.InterestedFormat,
		Budget:             req.Budget,
	}

	if req.Phone != nil {
		normalized, ok := phone.NormalizeMobile(*req.Phone)
		if !ok {
			return repository.Lead{}, apperr.Validation("invalid mobile number")
		}
		params.Phone = &normalized
	}

	lead, err := s.repo.Update(ctx, id, params)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to update lead", err)
	}
	return lead, nil
}

// Assign sets or clears the owning agent.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) (repository.Lead, error) {
	lead, err := s.repo.Update(ctx, id, repository.UpdateLeadParams{
		AssignedAgentID:    agentID,
		AssignedAgentIDSet: true,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to assign lead", err)
	}
	return lead, nil
}

// List returns a filtered page of leads.
func (s *Service) List(ctx context.Context, query transport.ListLeadsQuery) ([]repository.Lead, int, error) {
	params := repository.ListParams{
		Search: query.Search,
		Offset: 0,
		Limit:  50,
	}

	if query.Page > 0 && query.PageSize > 0 {
		params.Limit = query.PageSize
		params.Offset = (query.Page - 1) * query.PageSize
	} else if query.PageSize > 0 {
		params.Limit = query.PageSize
	}

	if query.Status != "" {
		params.Status = &query.Status
	}
	if query.Phase != "" {
		params.Phase = &query.Phase
	}
	if query.Priority != "" {
		params.Priority = &query.Priority
	}
	if query.Source != "" {
		params.Source = &query.Source
	}
	if query.AgentID != "" {
		agentID, err := uuid.Parse(query.AgentID)
		if err != nil {
			return nil, 0, apperr.Validation("invalid agent id")
		}
		params.AssignedAgentID = &agentID
	}
	if query.DateFrom != "" {
		from, err := time.Parse("2006-01-02", query.DateFrom)
		if err != nil {
			return nil, 0, apperr.Validation("invalid dateFrom")
		}
		params.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse("2006-01-02", query.DateTo)
		if err != nil {
			return nil, 0, apperr.Validation("invalid dateTo")
		}
		// inclusive end of day
		to = to.Add(24*time.Hour - time.Nanosecond)
		params.DateTo = &to
	}

	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, apperr.Wrap(apperr.KindInternal, "failed to list leads", err)
	}
	return leads, total, nil
}
