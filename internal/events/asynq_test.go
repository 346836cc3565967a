package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestAsynqPublisherEnqueuesOneTaskPerHandler(t *testing.T) {
	enq := &fakeEnqueuer{}
	pub := NewAsynqPublisher(enq, &recordingHandler{name: "notifications"}, &recordingHandler{name: "contracts"})

	evt := ProjectEvent{ID: uuid.New(), Type: ProjectUpdated, ProjectID: 3, IsPriceBeingAccepted: true}
	require.NoError(t, pub.Publish(context.Background(), evt))

	require.Len(t, enq.tasks, 2)
	assert.Equal(t, "project_event:notifications", enq.tasks[0].Type())
	assert.Equal(t, "project_event:contracts", enq.tasks[1].Type())

	var decoded ProjectEvent
	require.NoError(t, json.Unmarshal(enq.tasks[1].Payload(), &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.True(t, decoded.IsPriceBeingAccepted)
}

func TestAsynqPublisherSwallowsEnqueueErrors(t *testing.T) {
	pub := NewAsynqPublisher(&fakeEnqueuer{err: errors.New("redis down")}, &recordingHandler{name: "notifications"})
	assert.NoError(t, pub.Publish(context.Background(), ProjectEvent{ID: uuid.New()}))
}

func TestTaskHandler(t *testing.T) {
	t.Run("decodes and dispatches", func(t *testing.T) {
		h := &recordingHandler{name: "contracts"}
		task, err := NewTask(h.Name(), ProjectEvent{ID: uuid.New(), ProjectID: 9})
		require.NoError(t, err)

		require.NoError(t, TaskHandler(h)(context.Background(), task))
		require.Len(t, h.got, 1)
		assert.Equal(t, uint(9), h.got[0].ProjectID)
	})

	t.Run("handler error is returned for retry", func(t *testing.T) {
		h := &recordingHandler{name: "contracts", err: errors.New("db timeout")}
		task, err := NewTask(h.Name(), ProjectEvent{ID: uuid.New()})
		require.NoError(t, err)

		assert.Error(t, TaskHandler(h)(context.Background(), task))
	})

	t.Run("bad payload skips retry", func(t *testing.T) {
		h := &recordingHandler{name: "contracts"}
		err := TaskHandler(h)(context.Background(), asynq.NewTask(TaskType(h.Name()), []byte("{")))
		require.Error(t, err)
		assert.True(t, errors.Is(err, asynq.SkipRetry))
		assert.Empty(t, h.got)
	})
}
