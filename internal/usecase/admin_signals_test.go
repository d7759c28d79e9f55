package usecase

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"
)

func (s *AdminDispatcherSuite) service() *AdminSignalService {
	return NewAdminSignalService(s.admins, s.d, s.clk, logger.Nop())
}

func (s *AdminDispatcherSuite) TestCreateSchedulesFutureSignal() {
	a, err := s.service().Create(context.Background(), " btc/usd ", "BUY", s.clk.Now().Add(5*time.Minute), 0)
	s.Require().NoError(err)

	s.Equal("BTC/USDT", a.Pair)
	s.Equal(models.DirectionBuy, a.Direction)
	s.Equal(1, a.Timeframe)
	s.Equal(models.AdminPending, s.admins.status(a.ID))
	s.True(s.d.Scheduled(a.ID))
}

func (s *AdminDispatcherSuite) TestCreateInsideWindowMaterializes() {
	a, err := s.service().Create(context.Background(), "BTC/USDT", "sell", s.clk.Now().Add(30*time.Second), 1)
	s.Require().NoError(err)

	s.Equal(models.AdminExecuted, s.admins.status(a.ID))
	cur := s.store.Current()
	s.Require().NotNil(cur)
	s.Equal(a.ID, cur.AdminSignalID)
}

func (s *AdminDispatcherSuite) TestCreateRejectsBadInput() {
	svc := s.service()
	ctx := context.Background()

	_, err := svc.Create(ctx, "BTC/USDT", "hold", s.clk.Now().Add(time.Minute), 1)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidDirection))

	_, err = svc.Create(ctx, "  ", "buy", s.clk.Now().Add(time.Minute), 1)
	s.True(errors.HasCode(err, errors.ErrCodeInvalidPair))

	_, err = svc.Create(ctx, "BTC/USDT", "buy", time.Time{}, 1)
	s.True(errors.HasCode(err, errors.ErrCodeMissingParameter))

	_, err = svc.Create(ctx, "BTC/USDT", "buy", s.clk.Now().Add(-2*time.Minute), 1)
	s.True(errors.HasCode(err, errors.ErrCodeAdminSignalExpired))
}

func (s *AdminDispatcherSuite) TestDeleteCancelsTimer() {
	svc := s.service()
	a, err := svc.Create(context.Background(), "BTC/USDT", "buy", s.clk.Now().Add(5*time.Minute), 1)
	s.Require().NoError(err)
	s.Require().True(s.d.Scheduled(a.ID))

	s.Require().NoError(svc.Delete(context.Background(), a.ID))
	s.False(s.d.Scheduled(a.ID))

	list, err := svc.List(context.Background(), models.AdminSignalFilter{})
	s.Require().NoError(err)
	s.Empty(list)
}
