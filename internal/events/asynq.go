package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"installpro/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	taskPrefix = "project_event:"
	QueueName  = "events"
)

// TaskType is the asynq task type routed to the handler called name.
func TaskType(name string) string {
	return taskPrefix + name
}

// Enqueuer is the subset of *asynq.Client used by AsynqPublisher.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqPublisher enqueues one task per handler so each handler is retried on
// its own. Task ids are derived from the event id, so re-publishing an event
// does not queue it twice.
type AsynqPublisher struct {
	client   Enqueuer
	routes   []string
	maxRetry int
}

func NewAsynqPublisher(client Enqueuer, handlers ...Handler) *AsynqPublisher {
	routes := make([]string, 0, len(handlers))
	for _, h := range handlers {
		routes = append(routes, h.Name())
	}
	return &AsynqPublisher{client: client, routes: routes, maxRetry: 5}
}

// NewTask encodes evt as a task for the named handler.
func NewTask(name string, evt ProjectEvent) (*asynq.Task, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return asynq.NewTask(TaskType(name), payload), nil
}

func (p *AsynqPublisher) Publish(ctx context.Context, evt ProjectEvent) error {
	for _, route := range p.routes {
		task, err := NewTask(route, evt)
		if err != nil {
			logger.L().Error("encode event task", zap.String("handler", route), zap.Error(err))
			continue
		}
		_, err = p.client.EnqueueContext(ctx, task,
			asynq.Queue(QueueName),
			asynq.MaxRetry(p.maxRetry),
			asynq.Timeout(30*time.Second),
			asynq.TaskID(evt.ID.String()+":"+route),
		)
		if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
			logger.L().Error("enqueue event task",
				zap.String("handler", route),
				zap.Uint("project_id", evt.ProjectID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// NewServeMux routes queued event tasks to their handlers. Handler errors are
// returned so asynq retries the task.
func NewServeMux(handlers ...Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for _, h := range handlers {
		mux.HandleFunc(TaskType(h.Name()), TaskHandler(h))
	}
	return mux
}

// TaskHandler adapts h to an asynq handler func.
func TaskHandler(h Handler) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var evt ProjectEvent
		if err := json.Unmarshal(t.Payload(), &evt); err != nil {
			return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}
		if err := h.Handle(ctx, evt); err != nil {
			logger.L().Warn("event task failed",
				zap.String("handler", h.Name()),
				zap.Uint("project_id", evt.ProjectID),
				zap.Error(err),
			)
			return err
		}
		return nil
	}
}
