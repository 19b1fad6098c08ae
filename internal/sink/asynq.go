package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nkmitin/tg-relay/internal/telegram"
	"github.com/nkmitin/tg-relay/pkg/logger"
	"github.com/nkmitin/tg-relay/pkg/metrics"
)

const (
	defaultTaskType = "relay:updates:process"
	defaultQueue    = "relay"
)

// Enqueuer is the slice of asynq.Client the queue sink needs; tests supply a
// fake.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

var _ Enqueuer = (*asynq.Client)(nil)

// TaskPayload is the body of an enqueued batch task.
type TaskPayload struct {
	Session       string            `json:"session"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Updates       []telegram.Update `json:"updates"`
}

// Queue hands each emitted batch to downstream workers as one asynq task.
type Queue struct {
	enqueuer Enqueuer
	session  string
	queue    string
	taskType string
	log      *slog.Logger
}

// NewQueue builds a task-queue sink for one session.
func NewQueue(enqueuer Enqueuer, session, queue, taskType string, log *slog.Logger) *Queue {
	if queue == "" {
		queue = defaultQueue
	}
	if taskType == "" {
		taskType = defaultTaskType
	}
	if log == nil {
		log = slog.Default()
	}

	return &Queue{
		enqueuer: enqueuer,
		session:  session,
		queue:    queue,
		taskType: taskType,
		log:      log,
	}
}

// Emit enqueues one task per batch.
func (q *Queue) Emit(ctx context.Context, batches [][]telegram.Update) error {
	correlationID := logger.CorrelationIDFromContext(ctx)

	for _, batch := range batches {
		if len(batch) == 0 {
			continue
		}

		payload, err := json.Marshal(TaskPayload{
			Session:       q.session,
			CorrelationID: correlationID,
			Updates:       batch,
		})
		if err != nil {
			return fmt.Errorf("encode task payload: %w", err)
		}

		info, err := q.enqueuer.EnqueueContext(ctx, asynq.NewTask(q.taskType, payload), asynq.Queue(q.queue))
		if err != nil {
			return fmt.Errorf("enqueue batch: %w", err)
		}

		metrics.RecordSinkRecords("asynq", len(batch))
		q.log.Debug("batch enqueued",
			slog.String("task_id", info.ID),
			slog.String("queue", q.queue),
			slog.Int("records", len(batch)),
			slog.String("correlation_id", correlationID),
		)
	}

	return nil
}
