// Package notification turns domain events into emails for the intake team.
package notification

import (
	"context"
	"fmt"

	"institute_backend/internal/email"
	"institute_backend/internal/events"
	"institute_backend/internal/leads/repository"
	"institute_backend/platform/config"
	platformevents "institute_backend/platform/events"
	"institute_backend/platform/logger"
)

type Service struct {
	sender  email.Sender
	address string
	log     *logger.Logger
}

func New(sender email.Sender, cfg config.EmailConfig, log *logger.Logger) *Service {
	return &Service{sender: sender, address: cfg.GetNotifyAddress(), log: log}
}

// Subscribe registers the event handlers. With no notify address configured
// the service stays inert.
func (s *Service) Subscribe(bus platformevents.Bus) {
	if s.address == "" {
		s.log.Info("notification emails disabled: NOTIFY_EMAIL not set")
		return
	}

	bus.Subscribe(events.LeadCreatedName, platformevents.HandlerFunc(s.onLeadCreated))
	bus.Subscribe(events.LeadConvertedName, platformevents.HandlerFunc(s.onLeadConverted))
	bus.Subscribe(events.LeadWithdrawnName, platformevents.HandlerFunc(s.onLeadWithdrawn))
}

func (s *Service) onLeadCreated(ctx context.Context, event platformevents.Event) error {
	created, ok := event.(events.LeadCreated)
	if !ok {
		return nil
	}
	return s.sender.Send(ctx, s.address,
		"New lead registered",
		fmt.Sprintf("A new lead (%s) arrived via %s with priority %s.",
			created.LeadID, created.Source, created.Priority))
}

func (s *Service) onLeadConverted(ctx context.Context, event platformevents.Event) error {
	converted, ok := event.(events.LeadConverted)
	if !ok {
		return nil
	}
	return s.sender.Send(ctx, s.address,
		"Lead converted to student account",
		fmt.Sprintf("Lead %s verified their phone and now has account %s.",
			converted.LeadID, converted.UserID))
}

func (s *Service) onLeadWithdrawn(ctx context.Context, event platformevents.Event) error {
	withdrawn, ok := event.(events.LeadWithdrawn)
	if !ok {
		return nil
	}
	return s.sender.Send(ctx, s.address,
		"Lead withdrawn",
		fmt.Sprintf("Lead %s was withdrawn: %s", withdrawn.LeadID, withdrawn.Reason))
}

// FollowUpDue implements the scheduler's Notifier: a scheduled communication
// has come due for a still-active lead.
func (s *Service) FollowUpDue(ctx context.Context, lead repository.Lead) error {
	if s.address == "" {
		return nil
	}
	return s.sender.Send(ctx, s.address,
		"Follow-up due",
		fmt.Sprintf("Lead %s %s (%s, status %s) has a follow-up due.",
			lead.FirstName, lead.LastName, lead.Phone, lead.Status))
}
