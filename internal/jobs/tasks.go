// Package jobs runs background work on asynq: answer notifications and housekeeping.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQueryAnswered notifies a customer that their question was answered.
	TaskQueryAnswered = "query:answered"
	// TaskProcessedEventsCleanup prunes old change-feed dedup records.
	TaskProcessedEventsCleanup = "maintenance:processed_events_cleanup"

	// DefaultEventRetention is how long processed change events are remembered.
	DefaultEventRetention = 7 * 24 * time.Hour
)

// QueryAnsweredPayload describes the notification to deliver.
type QueryAnsweredPayload struct {
	QueryID  int64     `json:"query_id"`
	UserID   uuid.UUID `json:"user_id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
}

// NewQueryAnsweredTask constructs an Asynq task for an answered query.
func NewQueryAnsweredTask(q *models.Query) (*asynq.Task, error) {
	if q == nil || q.Answer == nil {
		return nil, errors.New("jobs: query has no answer")
	}
	data, err := json.Marshal(QueryAnsweredPayload{
		QueryID:  q.ID,
		UserID:   q.UserID,
		Question: q.Question,
		Answer:   *q.Answer,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQueryAnswered, data, asynq.MaxRetry(5)), nil
}

// QueryAnsweredJob delivers answer notifications.
type QueryAnsweredJob struct {
	logger *zap.Logger
}

func NewQueryAnsweredJob() *QueryAnsweredJob {
	return &QueryAnsweredJob{logger: util.Named("jobs.query_answered")}
}

// Handle processes TaskQueryAnswered tasks.
func (j *QueryAnsweredJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload QueryAnsweredPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", TaskQueryAnswered, err, asynq.SkipRetry)
	}
	if payload.QueryID == 0 || payload.UserID == uuid.Nil {
		return fmt.Errorf("incomplete %s payload: %w", TaskQueryAnswered, asynq.SkipRetry)
	}

	// Delivery channel (mail, push) is outside this service; the log line is the record.
	j.logger.Info("Query answer notification delivered",
		zap.Int64("query_id", payload.QueryID),
		zap.String("user_id", payload.UserID.String()),
		zap.Int("answer_length", len(payload.Answer)))
	return nil
}

// NewProcessedEventsCleanupTask constructs the periodic cleanup task.
func NewProcessedEventsCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskProcessedEventsCleanup, nil)
}

// EventPruner deletes dedup records older than a cutoff.
type EventPruner interface {
	DeleteProcessedEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob prunes processed change events past their retention.
type CleanupJob struct {
	store     EventPruner
	retention time.Duration
	logger    *zap.Logger
	clock     func() time.Time
}

func NewCleanupJob(store EventPruner, retention time.Duration) *CleanupJob {
	if retention <= 0 {
		retention = DefaultEventRetention
	}
	return &CleanupJob{
		store:     store,
		retention: retention,
		logger:    util.Named("jobs.cleanup"),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskProcessedEventsCleanup tasks.
func (j *CleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	cutoff := j.clock().Add(-j.retention)
	removed, err := j.store.DeleteProcessedEventsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune processed events: %w", err)
	}
	j.logger.Info("Pruned processed events", zap.Int64("removed", removed), zap.Time("cutoff", cutoff))
	return nil
}
