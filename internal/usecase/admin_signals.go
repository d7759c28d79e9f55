package usecase

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"

	"github.com/google/uuid"
)

const defaultAdminListLimit = 100

// AdminSignalService is the operator console: it schedules, lists and
// removes admin signals and hands new ones to the dispatcher right away.
type AdminSignalService struct {
	admins     domrepo.AdminSignalRepository
	dispatcher *AdminDispatcher
	windows    Windows
	clock      Clock
	log        *logger.Logger
}

func NewAdminSignalService(admins domrepo.AdminSignalRepository, dispatcher *AdminDispatcher, clk Clock, log *logger.Logger) *AdminSignalService {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	w := DefaultWindows()
	if dispatcher != nil {
		w = dispatcher.windows
	}
	return &AdminSignalService{
		admins:     admins,
		dispatcher: dispatcher,
		windows:    w,
		clock:      clk,
		log:        log.Component("admin_signals"),
	}
}

// Create stores a pending admin signal. A scheduled time already past the
// admission window is rejected.
func (s *AdminSignalService) Create(ctx context.Context, pair, direction string, scheduled time.Time, timeframe int) (*models.AdminSignal, error) {
	pair = NormalizePair(pair)
	if pair == "" {
		return nil, errors.New(errors.ErrCodeInvalidPair, "pair required")
	}
	dir, ok := models.ParseDirection(direction)
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidDirection, "invalid direction %q", direction)
	}
	if scheduled.IsZero() {
		return nil, errors.New(errors.ErrCodeMissingParameter, "scheduled time required")
	}
	if timeframe <= 0 {
		timeframe = 1
	}
	if s.windows.Classify(scheduled, s.clock.Now()) == Stale {
		return nil, errors.Newf(errors.ErrCodeAdminSignalExpired, "scheduled time %s already passed", scheduled.UTC().Format(time.RFC3339))
	}

	a := &models.AdminSignal{
		ID:            uuid.NewString(),
		Pair:          pair,
		Direction:     dir,
		ScheduledTime: scheduled.UTC(),
		Timeframe:     timeframe,
		Status:        models.AdminPending,
	}
	if err := s.admins.CreateAdminSignal(ctx, a); err != nil {
		return nil, err
	}
	s.log.Info("admin signal created",
		logger.String("admin_signal_id", a.ID),
		logger.String("pair", a.Pair),
		logger.String("direction", string(a.Direction)),
		logger.Time("scheduled_time", a.ScheduledTime))

	if s.dispatcher != nil {
		if res, err := s.dispatcher.Deliver(ctx, a); err != nil {
			s.log.Warn("new admin signal not delivered", logger.String("admin_signal_id", a.ID), logger.Error(err))
		} else {
			s.log.Debug("new admin signal", logger.String("admin_signal_id", a.ID), logger.String("delivery", res.String()))
		}
	}
	return a, nil
}

func (s *AdminSignalService) List(ctx context.Context, f models.AdminSignalFilter) ([]*models.AdminSignal, error) {
	if f.Limit <= 0 {
		f.Limit = defaultAdminListLimit
	}
	if f.Pair != "" {
		f.Pair = NormalizePair(f.Pair)
	}
	return s.admins.GetAdminSignals(ctx, f)
}

// Delete removes an admin signal and cancels its pending timer.
func (s *AdminSignalService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New(errors.ErrCodeMissingParameter, "id required")
	}
	if s.dispatcher != nil {
		s.dispatcher.Forget(id)
	}
	return s.admins.DeleteAdminSignal(ctx, id)
}
