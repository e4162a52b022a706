package engine

import (
	"context"
	"sync"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/teano-uTTu-9788/AiCan/pkg/api"
)

type (
	// EventHub broadcasts job events to any number of in-process consumers
	EventHub struct {
		topic     topic.Topic[*api.JobEvent]
		prod      topic.Producer[*api.JobEvent]
		closeOnce sync.Once
		mu        sync.RWMutex
		closed    bool
	}

	// EventConsumer receives job events from the hub
	EventConsumer = topic.Consumer[*api.JobEvent]

	// Notifier is the sink for job events. Notification failures are logged
	// by the engine and never affect the job
	Notifier interface {
		Notify(ctx context.Context, ev *api.JobEvent) error
	}

	// NotifierFunc adapts a plain function to the Notifier interface
	NotifierFunc func(ctx context.Context, ev *api.JobEvent) error
)

// Notify calls f
func (f NotifierFunc) Notify(ctx context.Context, ev *api.JobEvent) error {
	return f(ctx, ev)
}

// NewEventHub creates a new job event hub
func NewEventHub() *EventHub {
	t := caravan.NewTopic[*api.JobEvent]()
	return &EventHub{
		topic: t,
		prod:  t.NewProducer(),
	}
}

// NewConsumer returns a consumer that receives every event published after
// it is created. Callers must Close it when done
func (h *EventHub) NewConsumer() EventConsumer {
	return h.topic.NewConsumer()
}

// Publish sends an event to all consumers. Events published after Close are
// dropped
func (h *EventHub) Publish(ev *api.JobEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	message.Send(h.prod, ev)
}

// Close stops the hub from accepting new events
func (h *EventHub) Close() {
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()
		h.prod.Close()
	})
}
