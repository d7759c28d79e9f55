package usecase

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"
)

const (
	persistAttempts = 3
	persistDelay    = time.Second
)

// signalWriter wraps repository writes with a fixed retry schedule.
type signalWriter struct {
	repo     domrepo.SignalRepository
	clock    Clock
	log      *logger.Logger
	attempts int
	delay    time.Duration
}

func newSignalWriter(repo domrepo.SignalRepository, clk Clock, log *logger.Logger) *signalWriter {
	return &signalWriter{repo: repo, clock: clk, log: log, attempts: persistAttempts, delay: persistDelay}
}

func (w *signalWriter) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		w.log.Warn("signal write failed",
			logger.String("op", op),
			logger.Int("attempt", attempt),
			logger.Error(err))
		if attempt == w.attempts {
			break
		}
		if serr := sleep(ctx, w.clock, w.delay); serr != nil {
			return errors.Wrap(errors.ErrCodePersistFailed, op, serr)
		}
	}
	return errors.Wrap(errors.ErrCodePersistFailed, op, err)
}

// Create inserts sig. A row already stored under the same id is returned
// unchanged.
func (w *signalWriter) Create(ctx context.Context, sig *models.Signal) (*models.Signal, error) {
	if existing, err := w.repo.GetSignalByID(ctx, sig.ID); err == nil && existing != nil {
		return existing, nil
	}
	var created *models.Signal
	err := w.retry(ctx, "create_signal", func() error {
		var err error
		created, err = w.repo.CreateSignal(ctx, sig)
		return err
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = sig.Clone()
	}
	return created, nil
}

// Resolve writes out for id if the stored row is still unresolved. The
// returned signal is whatever ended up persisted; when another writer got
// there first its result is returned instead of out.
func (w *signalWriter) Resolve(ctx context.Context, sig *models.Signal, out models.Outcome) (*models.Signal, error) {
	if cur, err := w.repo.GetSignalByID(ctx, sig.ID); err == nil && cur != nil && cur.IsResolved() {
		return cur, nil
	}

	var applied bool
	err := w.retry(ctx, "update_signal_result", func() error {
		var err error
		applied, err = w.repo.UpdateSignalResult(ctx, sig.ID, out)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !applied {
		if cur, err := w.repo.GetSignalByID(ctx, sig.ID); err == nil && cur != nil && cur.IsResolved() {
			return cur, nil
		}
	}

	final := sig.Clone()
	out.Apply(final)
	final.UpdatedAt = w.clock.Now()
	return final, nil
}
