package usecase

import (
	"context"
	"errors"

	"SignalDesk/internal/domain/models"
	drepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

var errStreamClosed = errors.New("admin stream closed")

// AdminFeed forwards admin signals from the push stream to the dispatcher
// and keeps the stream connected.
type AdminFeed struct {
	stream     drepo.AdminSignalStream
	dispatcher *AdminDispatcher
	metrics    drepo.Metrics
	log        *logger.Logger
	done       chan struct{}
}

func NewAdminFeed(stream drepo.AdminSignalStream, dispatcher *AdminDispatcher, metrics drepo.Metrics, log *logger.Logger) *AdminFeed {
	if log == nil {
		log = logger.Nop()
	}
	return &AdminFeed{
		stream:     stream,
		dispatcher: dispatcher,
		metrics:    metrics,
		log:        log.Component("admin_feed"),
		done:       make(chan struct{}),
	}
}

func (f *AdminFeed) IsConnected() bool {
	return f.stream.IsConnected()
}

// Start connects the stream and consumes it until ctx is done.
func (f *AdminFeed) Start(ctx context.Context) error {
	if err := f.stream.Connect(ctx); err != nil {
		return err
	}
	go f.run(ctx)
	return nil
}

func (f *AdminFeed) run(ctx context.Context) {
	defer close(f.done)
	for {
		ch, errCh := f.stream.Read(ctx)
		err := f.consume(ctx, ch, errCh)
		if ctx.Err() != nil {
			return
		}
		if f.metrics != nil {
			f.metrics.RecordError("admin_stream")
		}
		f.log.Warn("admin stream interrupted, reconnecting", logger.Error(err))

		for {
			if err := f.stream.Reconnect(ctx); err == nil {
				break
			} else if ctx.Err() != nil {
				return
			} else {
				f.log.Warn("admin stream reconnect failed", logger.Error(err))
			}
		}
	}
}

func (f *AdminFeed) consume(ctx context.Context, ch <-chan *models.AdminSignal, errCh <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return err
			}
		case a, ok := <-ch:
			if !ok {
				return errStreamClosed
			}
			if a == nil {
				continue
			}
			res, err := f.dispatcher.Deliver(ctx, a)
			if err != nil {
				f.log.Warn("pushed admin signal not delivered",
					logger.String("admin_signal_id", a.ID),
					logger.Error(err))
				continue
			}
			f.log.Debug("pushed admin signal",
				logger.String("admin_signal_id", a.ID),
				logger.String("delivery", res.String()))
		}
	}
}

// Shutdown closes the stream and waits for the consumer to exit.
func (f *AdminFeed) Shutdown(ctx context.Context) error {
	err := f.stream.Close()
	select {
	case <-f.done:
	case <-ctx.Done():
	}
	return err
}
