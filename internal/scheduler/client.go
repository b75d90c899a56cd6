package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"institute_backend/platform/config"
	"institute_backend/platform/logger"
)

// Client enqueues deferred tasks. It satisfies the comms service's
// Scheduler interface.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  cfg.GetAsynqQueueName(),
		log:    log,
	}, nil
}

// EnqueueFollowUpReminder schedules the reminder to run at due.
func (c *Client) EnqueueFollowUpReminder(ctx context.Context, leadID, commID uuid.UUID, due time.Time) error {
	task, err := NewFollowUpReminderTask(FollowUpReminderPayload{
		LeadID: leadID,
		CommID: commID,
		Due:    due,
	})
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.ProcessAt(due),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	c.log.Debug("enqueued follow-up reminder",
		"task_id", info.ID, "lead_id", leadID, "due", due)
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
