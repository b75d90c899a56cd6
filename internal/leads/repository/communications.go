package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Communication types. Contact types stamp the lead's last_contact_at;
// notes and system entries do not.
const (
	CommTypeCall    = "call"
	CommTypeSMS     = "sms"
	CommTypeEmail   = "email"
	CommTypeMeeting = "meeting"
	CommTypeNote    = "note"
	CommTypeSystem  = "system"
)

var knownCommTypes = map[string]bool{
	CommTypeCall:    true,
	CommTypeSMS:     true,
	CommTypeEmail:   true,
	CommTypeMeeting: true,
	CommTypeNote:    true,
	CommTypeSystem:  true,
}

// IsKnownCommType reports whether the communication type is part of the enum.
func IsKnownCommType(commType string) bool {
	return knownCommTypes[commType]
}

// IsContactCommType reports whether logging this type counts as contacting
// the lead.
func IsContactCommType(commType string) bool {
	switch commType {
	case CommTypeCall, CommTypeSMS, CommTypeEmail, CommTypeMeeting:
		return true
	}
	return false
}

type Communication struct {
	ID           uuid.UUID
	LeadID       uuid.UUID
	Type         string
	Subject      *string
	Content      string
	ActorAgentID *uuid.UUID
	ScheduledFor *time.Time
	CreatedAt    time.Time
}

type CreateCommunicationParams struct {
	LeadID       uuid.UUID
	Type         string
	Subject      *string
	Content      string
	ActorAgentID *uuid.UUID
	ScheduledFor *time.Time
}

const communicationColumns = `id, lead_id, comm_type, subject, content, actor_agent_id, scheduled_for, created_at`

// CreateCommunication appends an entry to the lead's communication log.
// The log is append only; no update or delete statements exist for it.
func (r *Repository) CreateCommunication(ctx context.Context, params CreateCommunicationParams) (Communication, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO lead_communications (lead_id, comm_type, subject, content, actor_agent_id, scheduled_for)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+communicationColumns,
		params.LeadID, params.Type, params.Subject, params.Content, params.ActorAgentID, params.ScheduledFor,
	)
	return scanCommunication(row)
}

// ListCommunications returns the lead's log newest first.
func (r *Repository) ListCommunications(ctx context.Context, leadID uuid.UUID, offset, limit int) ([]Communication, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM lead_communications WHERE lead_id = $1
	`, leadID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+communicationColumns+`
		FROM lead_communications
		WHERE lead_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, leadID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := make([]Communication, 0)
	for rows.Next() {
		entry, err := scanCommunication(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}

	return entries, total, nil
}

func scanCommunication(row rowScanner) (Communication, error) {
	var comm Communication
	err := row.Scan(
		&comm.ID, &comm.LeadID, &comm.Type, &comm.Subject, &comm.Content,
		&comm.ActorAgentID, &comm.ScheduledFor, &comm.CreatedAt,
	)
	if err != nil {
		return Communication{}, err
	}
	return comm, nil
}
