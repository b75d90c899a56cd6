// Package scheduler wires deferred work (follow-up reminders) through asynq.
package scheduler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TypeFollowUpReminder fires when a scheduled communication comes due.
const TypeFollowUpReminder = "leads:follow_up_reminder"

// FollowUpReminderPayload identifies the lead and log entry the reminder is
// about.
type FollowUpReminderPayload struct {
	LeadID uuid.UUID `json:"leadId"`
	CommID uuid.UUID `json:"commId"`
	Due    time.Time `json:"due"`
}

// NewFollowUpReminderTask builds the asynq task for a reminder.
func NewFollowUpReminderTask(payload FollowUpReminderPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeFollowUpReminder, body), nil
}

// ParseFollowUpReminderTask decodes the reminder payload.
func ParseFollowUpReminderTask(task *asynq.Task) (FollowUpReminderPayload, error) {
	var payload FollowUpReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return FollowUpReminderPayload{}, err
	}
	return payload, nil
}
