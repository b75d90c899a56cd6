// Package events defines the domain events exchanged between modules.
package events

import (
	"time"

	"github.com/google/uuid"

	"institute_backend/platform/events"
)

// Event names.
const (
	LeadCreatedName         = "lead.created"
	LeadStatusChangedName   = "lead.status_changed"
	LeadConvertedName       = "lead.converted"
	LeadWithdrawnName       = "lead.withdrawn"
	LeadReactivatedName     = "lead.reactivated"
	CommunicationLoggedName = "lead.communication_logged"
	OTPIssuedName           = "otp.issued"
)

// LeadCreated fires when a new lead enters the pipeline.
type LeadCreated struct {
	events.BaseEvent
	LeadID          uuid.UUID
	Phone           string
	Source          string
	Priority        string
	AssignedAgentID *uuid.UUID
}

func (LeadCreated) EventName() string { return LeadCreatedName }

// LeadStatusChanged fires on every successful workflow transition,
// including the freeze to converted.
type LeadStatusChanged struct {
	events.BaseEvent
	LeadID     uuid.UUID
	FromStatus string
	ToStatus   string
	Phase      string
	ActorID    *uuid.UUID
}

func (LeadStatusChanged) EventName() string { return LeadStatusChangedName }

// LeadConverted fires once per lead, after the conversion transaction
// commits.
type LeadConverted struct {
	events.BaseEvent
	LeadID          uuid.UUID
	UserID          uuid.UUID
	Phone           string
	AssignedAgentID *uuid.UUID
}

func (LeadConverted) EventName() string { return LeadConvertedName }

// LeadWithdrawn fires when a lead is moved to lost with a withdrawal reason.
type LeadWithdrawn struct {
	events.BaseEvent
	LeadID  uuid.UUID
	Reason  string
	ActorID *uuid.UUID
}

func (LeadWithdrawn) EventName() string { return LeadWithdrawnName }

// LeadReactivated fires when a lost lead returns to the active workflow.
type LeadReactivated struct {
	events.BaseEvent
	LeadID   uuid.UUID
	ToStatus string
	ActorID  *uuid.UUID
}

func (LeadReactivated) EventName() string { return LeadReactivatedName }

// CommunicationLogged fires after an entry is appended to a lead's log.
type CommunicationLogged struct {
	events.BaseEvent
	LeadID       uuid.UUID
	CommID       uuid.UUID
	CommType     string
	ScheduledFor *time.Time
}

func (CommunicationLogged) EventName() string { return CommunicationLoggedName }

// OTPIssued fires when a verification code has been handed to the SMS
// provider. It carries no code material.
type OTPIssued struct {
	events.BaseEvent
	LeadID uuid.UUID
	Phone  string
}

func (OTPIssued) EventName() string { return OTPIssuedName }
