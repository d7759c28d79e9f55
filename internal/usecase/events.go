package usecase

import (
	"context"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

// EventFanOut delivers each event to every sink. Sink failures are logged
// and never reach the lifecycle engine.
type EventFanOut struct {
	sinks []domrepo.EventPublisher
	log   *logger.Logger
}

func NewEventFanOut(log *logger.Logger, sinks ...domrepo.EventPublisher) *EventFanOut {
	if log == nil {
		log = logger.Nop()
	}
	out := make([]domrepo.EventPublisher, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &EventFanOut{sinks: out, log: log.Component("events")}
}

func (f *EventFanOut) Publish(ctx context.Context, e models.Event) error {
	for _, s := range f.sinks {
		if err := s.Publish(ctx, e); err != nil {
			f.log.Warn("event sink failed",
				logger.String("type", string(e.Type)),
				logger.Error(err))
		}
	}
	return nil
}

func emit(ctx context.Context, pub domrepo.EventPublisher, clk Clock, e models.Event) {
	if pub == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = clk.Now()
	}
	if e.Signal != nil {
		e.Signal = e.Signal.Clone()
	}
	_ = pub.Publish(ctx, e)
}
