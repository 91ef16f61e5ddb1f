package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/bizops/pkg/queue"
)

// TaskEnqueuer is the part of *asynq.Client the enqueuer needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer queues mail jobs on the mail queue.
type Enqueuer struct {
	client TaskEnqueuer
	logger *slog.Logger
}

func NewEnqueuer(client TaskEnqueuer, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{client: client, logger: logger}
}

// VerificationRequested queues a verification mail for userID.
func (e *Enqueuer) VerificationRequested(ctx context.Context, userID uuid.UUID) error {
	task, err := NewVerificationMailTask(VerificationMailPayload{UserID: userID})
	if err != nil {
		return fmt.Errorf("building verification task: %w", err)
	}
	return e.enqueue(ctx, task)
}

// LoggedIn queues a login alert. Users who turned alerts off are filtered by
// the worker.
func (e *Enqueuer) LoggedIn(ctx context.Context, userID uuid.UUID, ip, userAgent string) error {
	task, err := NewLoginAlertTask(LoginAlertPayload{
		UserID:    userID,
		IP:        ip,
		UserAgent: userAgent,
		At:        time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("building login alert task: %w", err)
	}
	return e.enqueue(ctx, task)
}

func (e *Enqueuer) enqueue(ctx context.Context, task *asynq.Task) error {
	info, err := e.client.EnqueueContext(ctx, task,
		asynq.Queue(queue.QueueMail),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	e.logger.Debug("queued job", "type", task.Type(), "task_id", info.ID)
	return nil
}
