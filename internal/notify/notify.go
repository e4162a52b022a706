package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teano-uTTu-9788/AiCan/internal/engine"
	"github.com/teano-uTTu-9788/AiCan/pkg/api"
	"github.com/teano-uTTu-9788/AiCan/pkg/log"
)

// Multi fans a job event out to several sinks. A failing sink is logged and
// does not prevent delivery to the others
type Multi struct {
	sinks []engine.Notifier
}

// NewMulti creates a Multi over the non-nil sinks
func NewMulti(sinks ...engine.Notifier) *Multi {
	res := &Multi{}
	for _, s := range sinks {
		if s != nil {
			res.sinks = append(res.sinks, s)
		}
	}
	return res
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Notify delivers the event to every sink and always returns nil
func (m *Multi) Notify(ctx context.Context, ev *api.JobEvent) error {
	for _, s := range m.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			slog.Warn("Notification sink failed",
				slog.String("sink", fmt.Sprintf("%T", s)),
				log.JobID(ev.JobID),
				log.Event(ev.Type),
				log.Error(err))
		}
	}
	return nil
}
