package events

import (
	"context"
	"fmt"
	"sync"

	"installpro/pkg/logger"

	"go.uber.org/zap"
)

// Bus delivers events in-process, synchronously, to every subscribed handler.
// A failing handler is logged and does not affect the others. Handlers see the
// publisher's context values but not its cancellation.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus(handlers ...Handler) *Bus {
	return &Bus{handlers: handlers}
}

func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

func (b *Bus) Publish(ctx context.Context, evt ProjectEvent) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)

	for _, h := range handlers {
		if err := safeHandle(ctx, h, evt); err != nil {
			logger.L().Warn("event handler failed",
				zap.String("handler", h.Name()),
				zap.String("event", evt.Type),
				zap.Uint("project_id", evt.ProjectID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func safeHandle(ctx context.Context, h Handler, evt ProjectEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, evt)
}

