// Package conversion orchestrates the verified promotion of a lead to a
// user account.
package conversion

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"institute_backend/internal/accounts"
	"institute_backend/internal/events"
	"institute_backend/internal/leads/domain"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/otp"
	"institute_backend/platform/apperr"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// Challenger is the OTP surface the coordinator needs.
type Challenger interface {
	Issue(ctx context.Context, leadID uuid.UUID, phone string) (otp.IssueResult, error)
	Verify(ctx context.Context, leadID uuid.UUID, phone, code string) (otp.VerifyOutcome, error)
}

// LeadReader loads leads and appends to their communication log.
type LeadReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error)
	CreateCommunication(ctx context.Context, params repository.CreateCommunicationParams) (repository.Communication, error)
}

// AccountReader resolves the account linked to a converted lead.
type AccountReader interface {
	GetByLeadID(ctx context.Context, leadID uuid.UUID) (accounts.User, error)
}

// UnitOfWork runs account creation and the lead's freeze to converted as one
// transaction. Implementations return repository.ErrStatusChanged when the
// lead was already converted by a racing call.
type UnitOfWork interface {
	Convert(ctx context.Context, leadID uuid.UUID, phase string, params accounts.CreateUserParams) (accounts.User, repository.Lead, error)
}

type Service struct {
	challenger Challenger
	leads      LeadReader
	accounts   AccountReader
	uow        UnitOfWork
	bus        platformevents.Bus
	log        *logger.Logger
}

func NewService(challenger Challenger, leads LeadReader, accountReader AccountReader, uow UnitOfWork, bus platformevents.Bus, log *logger.Logger) *Service {
	return &Service{
		challenger: challenger,
		leads:      leads,
		accounts:   accountReader,
		uow:        uow,
		bus:        bus,
		log:        log,
	}
}

// Result is the outcome of a conversion. AlreadyConverted marks the
// idempotent path: the lead had been converted before this call and the
// existing account is returned.
type Result struct {
	User             accounts.User
	Lead             repository.Lead
	AlreadyConverted bool
}

// RequestCode issues a verification code for the lead. Conversion of an
// already-converted lead needs no code, so the request is refused.
func (s *Service) RequestCode(ctx context.Context, leadID uuid.UUID, phone string) (otp.IssueResult, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return otp.IssueResult{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return otp.IssueResult{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}
	if lead.Status == domain.StatusConverted {
		return otp.IssueResult{}, apperr.Conflict("lead is already converted")
	}
	if domain.IsTerminal(lead.Status) {
		return otp.IssueResult{}, apperr.Conflict("a lost lead must be reactivated before it can convert")
	}

	return s.challenger.Issue(ctx, leadID, phone)
}

// VerifyAndConvert validates the code and promotes the lead to a user
// account in one logical transaction. Verification always runs first and its
// failures propagate unchanged. A caller who passes the gate but finds the
// lead already converted gets the existing account, never a duplicate.
func (s *Service) VerifyAndConvert(ctx context.Context, leadID uuid.UUID, phone, code string) (Result, error) {
	lead, err := s.leads.GetByID(ctx, leadID)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", err)
	}

	// The code is checked before any lead state is consulted: the endpoint is
	// public, so nothing about the lead (or its account) leaks to a caller
	// who has not passed the OTP gate.
	outcome, err := s.challenger.Verify(ctx, leadID, phone, code)
	if err != nil {
		return Result{}, err
	}

	if domain.IsTerminal(lead.Status) && lead.Status != domain.StatusConverted {
		return Result{}, apperr.Conflict("a lost lead must be reactivated before it can convert")
	}

	// The phase freezes with the status.
	phase := domain.DerivePhase(domain.StatusConverted, lead.LastContactAt != nil, lead.WorkflowPhase)

	user, converted, err := s.uow.Convert(ctx, leadID, phase, accounts.CreateUserParams{
		Phone:     outcome.Phone,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		LeadID:    &lead.ID,
	})
	if errors.Is(err, repository.ErrStatusChanged) {
		// The lead froze between the read and the commit. Another conversion
		// winning means the existing account is this caller's answer; a
		// withdrawal winning means no conversion at all.
		current, loadErr := s.leads.GetByID(ctx, leadID)
		if loadErr != nil {
			return Result{}, apperr.Wrap(apperr.KindInternal, "failed to load lead", loadErr)
		}
		if current.Status == domain.StatusConverted {
			return s.existingResult(ctx, current)
		}
		return Result{}, apperr.Conflict("a lost lead must be reactivated before it can convert")
	}
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInternal, "conversion failed", err)
	}

	if _, err := s.leads.CreateCommunication(ctx, repository.CreateCommunicationParams{
		LeadID:  leadID,
		Type:    repository.CommTypeSystem,
		Content: "Lead converted to user account after phone verification",
	}); err != nil {
		// The conversion is committed; a failed audit note is logged, not
		// surfaced.
		s.log.Error("failed to log conversion note", "lead_id", leadID, "error", err)
	}

	s.log.WorkflowEvent(leadID.String(), lead.Status, domain.StatusConverted)
	s.bus.Publish(ctx, events.LeadConverted{
		BaseEvent:       platformevents.NewBaseEvent(),
		LeadID:          leadID,
		UserID:          user.ID,
		Phone:           user.Phone,
		AssignedAgentID: converted.AssignedAgentID,
	})

	return Result{User: user, Lead: converted}, nil
}

func (s *Service) existingResult(ctx context.Context, lead repository.Lead) (Result, error) {
	user, err := s.accounts.GetByLeadID(ctx, lead.ID)
	if errors.Is(err, accounts.ErrNotFound) {
		// Converted status without a linked account breaks the conversion
		// invariant; surface loudly.
		return Result{}, apperr.Internal("converted lead has no linked account")
	}
	if err != nil {
		return Result{}, apperr.Wrap(apperr.KindInternal, "failed to load linked account", err)
	}
	return Result{User: user, Lead: lead, AlreadyConverted: true}, nil
}
