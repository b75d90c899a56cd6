// Package transport defines the request and response shapes for the leads
// HTTP surface.
package transport

import (
	"time"

	"github.com/google/uuid"

	"institute_backend/internal/leads/repository"
)

type CreateLeadRequest struct {
	FirstName          string  `json:"firstName" binding:"required,min=1,max=100"`
	LastName           string  `json:"lastName" binding:"required,min=1,max=100"`
	Phone              string  `json:"phone" binding:"required,irmobile"`
	Email              *string `json:"email,omitempty" binding:"omitempty,email"`
	Source             string  `json:"source" binding:"required,oneof=website referral walk_in call_center self_serve"`
	Priority           string  `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	InterestedLanguage *string `json:"interestedLanguage,omitempty" binding:"omitempty,max=50"`
	InterestedLevel    *string `json:"interestedLevel,omitempty" binding:"omitempty,max=50"`
	InterestedFormat   *string `json:"interestedFormat,omitempty" binding:"omitempty,oneof=online in_person hybrid"`
	Budget             *int64  `json:"budget,omitempty" binding:"omitempty,min=0"`
	AssignedAgentID    *string `json:"assignedAgentId,omitempty" binding:"omitempty,uuid"`
}

type UpdateLeadRequest struct {
	FirstName          *string `json:"firstName,omitempty" binding:"omitempty,min=1,max=100"`
	LastName           *string `json:"lastName,omitempty" binding:"omitempty,min=1,max=100"`
	Phone              *string `json:"phone,omitempty" binding:"omitempty,irmobile"`
	Email              *string `json:"email,omitempty" binding:"omitempty,email"`
	Priority           *string `json:"priority,omitempty" binding:"omitempty,oneof=low medium high urgent"`
	InterestedLanguage *string `json:"interestedLanguage,omitempty" binding:"omitempty,max=50"`
	InterestedLevel    *string `json:"interestedLevel,omitempty" binding:"omitempty,max=50"`
	InterestedFormat   *string `json:"interestedFormat,omitempty" binding:"omitempty,oneof=online in_person hybrid"`
	Budget             *int64  `json:"budget,omitempty" binding:"omitempty,min=0"`
}

type AssignLeadRequest struct {
	AgentID *string `json:"agentId" binding:"omitempty,uuid"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required,oneof=new contacted interested qualified converted lost"`
}

type WithdrawRequest struct {
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

type ReactivateRequest struct {
	Status string `json:"status" binding:"omitempty,oneof=new contacted interested qualified"`
}

type BulkStatusRequest struct {
	LeadIDs []string `json:"leadIds" binding:"required,min=1,max=100,dive,uuid"`
	Status  string   `json:"status" binding:"required,oneof=new contacted interested qualified converted lost"`
}

type LogCommunicationRequest struct {
	Type         string     `json:"type" binding:"required,oneof=call sms email meeting note"`
	Subject      *string    `json:"subject,omitempty" binding:"omitempty,max=200"`
	Content      string     `json:"content" binding:"required,min=1,max=5000"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
}

type ListLeadsQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=new contacted interested qualified converted lost"`
	Phase    string `form:"phase" binding:"omitempty,oneof=new_intake follow_up withdrawal"`
	Priority string `form:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Source   string `form:"source" binding:"omitempty,oneof=website referral walk_in call_center self_serve"`
	AgentID  string `form:"agentId" binding:"omitempty,uuid"`
	DateFrom string `form:"dateFrom" binding:"omitempty,datetime=2006-01-02"`
	DateTo   string `form:"dateTo" binding:"omitempty,datetime=2006-01-02"`
	Search   string `form:"search" binding:"omitempty,max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=200"`
}

type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Phone              string     `json:"phone"`
	Email              *string    `json:"email,omitempty"`
	Source             string     `json:"source"`
	Priority           string     `json:"priority"`
	InterestedLanguage *string    `json:"interestedLanguage,omitempty"`
	InterestedLevel    *string    `json:"interestedLevel,omitempty"`
	InterestedFormat   *string    `json:"interestedFormat,omitempty"`
	Budget             *int64     `json:"budget,omitempty"`
	Status             string     `json:"status"`
	WorkflowPhase      string     `json:"workflowPhase"`
	WithdrawalReason   *string    `json:"withdrawalReason,omitempty"`
	WithdrawalDate     *time.Time `json:"withdrawalDate,omitempty"`
	AssignedAgentID    *uuid.UUID `json:"assignedAgentId,omitempty"`
	UserID             *uuid.UUID `json:"userId,omitempty"`
	LastContactAt      *time.Time `json:"lastContactAt,omitempty"`
	ConvertedAt        *time.Time `json:"convertedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// ToLeadResponse maps the persistence model to the API shape.
func ToLeadResponse(lead repository.Lead) LeadResponse {
	return LeadResponse{
		ID:                 lead.ID,
		FirstName:          lead.FirstName,
		LastName:           lead.LastName,
		Phone:              lead.Phone,
		Email:              lead.Email,
		Source:             lead.Source,
		Priority:           lead.Priority,
		InterestedLanguage: lead.InterestedLanguage,
		InterestedLevel:    lead.InterestedLevel,
		InterestedFormat:   lead.InterestedFormat,
		Budget:             lead.Budget,
		Status:             lead.Status,
		WorkflowPhase:      lead.WorkflowPhase,
		WithdrawalReason:   lead.WithdrawalReason,
		WithdrawalDate:     lead.WithdrawalDate,
		AssignedAgentID:    lead.AssignedAgentID,
		UserID:             lead.UserID,
		LastContactAt:      lead.LastContactAt,
		ConvertedAt:        lead.ConvertedAt,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}

type LeadListResponse struct {
	Leads    []LeadResponse `json:"leads"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
}

type CommunicationResponse struct {
	ID           uuid.UUID  `json:"id"`
	LeadID       uuid.UUID  `json:"leadId"`
	Type         string     `json:"type"`
	Subject      *string    `json:"subject,omitempty"`
	Content      string     `json:"content"`
	ActorAgentID *uuid.UUID `json:"actorAgentId,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ToCommunicationResponse maps the persistence model to the API shape.
func ToCommunicationResponse(comm repository.Communication) CommunicationResponse {
	return CommunicationResponse{
		ID:           comm.ID,
		LeadID:       comm.LeadID,
		Type:         comm.Type,
		Subject:      comm.Subject,
		Content:      comm.Content,
		ActorAgentID: comm.ActorAgentID,
		ScheduledFor: comm.ScheduledFor,
		CreatedAt:    comm.CreatedAt,
	}
}

type CommunicationListResponse struct {
	Communications []CommunicationResponse `json:"communications"`
	Total          int                     `json:"total"`
	Page           int                     `json:"page"`
	PageSize       int                     `json:"pageSize"`
}

// BulkItemResult reports the outcome for one lead in a bulk transition.
type BulkItemResult struct {
	LeadID string `json:"leadId"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type BulkStatusResponse struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}
