package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	name string
	err  error
	got  []ProjectEvent
	boom bool
}

func (h *recordingHandler) Name() string { return h.name }

func (h *recordingHandler) Handle(_ context.Context, evt ProjectEvent) error {
	if h.boom {
		panic("boom")
	}
	h.got = append(h.got, evt)
	return h.err
}

func TestBusDeliversToEveryHandler(t *testing.T) {
	failing := &recordingHandler{name: "failing", err: errors.New("store down")}
	panicking := &recordingHandler{name: "panicking", boom: true}
	ok := &recordingHandler{name: "ok"}

	bus := NewBus(failing, panicking)
	bus.Subscribe(ok)

	evt := ProjectEvent{ID: uuid.New(), Type: ProjectUpdated, ProjectID: 7}
	require.NoError(t, bus.Publish(context.Background(), evt))

	assert.Len(t, failing.got, 1)
	require.Len(t, ok.got, 1)
	assert.Equal(t, uint(7), ok.got[0].ProjectID)
}

type ctxHandler struct {
	err error
}

func (h *ctxHandler) Name() string { return "ctx" }

func (h *ctxHandler) Handle(ctx context.Context, _ ProjectEvent) error {
	h.err = ctx.Err()
	return h.err
}

func TestBusHandlersOutliveCancelledPublisher(t *testing.T) {
	h := &ctxHandler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, NewBus(h).Publish(ctx, ProjectEvent{ID: uuid.New(), Type: ProjectUpdated, ProjectID: 3}))
	assert.NoError(t, h.err)
}
