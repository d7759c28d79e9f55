package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AdminDispatcherSuite struct {
	suite.Suite
	clk     *fakeClock
	store   *SignalStore
	signals *fakeSignalRepo
	admins  *fakeAdminRepo
	events  *recordingPublisher
	cancel  context.CancelFunc
	d       *AdminDispatcher
	opened  []*models.Signal
	mu      sync.Mutex
}

func TestAdminDispatcherSuite(t *testing.T) {
	suite.Run(t, new(AdminDispatcherSuite))
}

func (s *AdminDispatcherSuite) SetupTest() {
	s.clk = newFakeClock(t0)
	s.store = NewSignalStore()
	s.signals = newFakeSignalRepo()
	s.admins = newFakeAdminRepo()
	s.events = &recordingPublisher{}
	s.opened = nil

	prices := NewPriceResolver(pricesAt(nil), DefaultPriceRetry(), 5*time.Second, s.clk, logger.Nop(), nil)
	resolver := NewResultResolver(s.store, s.signals, prices, nil, s.clk, logger.Nop())
	closes := &fakeCloses{price: optional.Some(64000.0)}
	s.d = NewAdminDispatcher(s.admins, s.signals, s.store, resolver, closes, s.clk, logger.Nop(),
		WithDispatcherEvents(s.events))
	s.d.SetCallbacks(func(sig *models.Signal) {
		s.mu.Lock()
		s.opened = append(s.opened, sig)
		s.mu.Unlock()
	}, nil)
	s.d.Watch("BTC/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.d.Bind(ctx)
}

func (s *AdminDispatcherSuite) TearDownTest() {
	s.cancel()
	s.d.Stop()
}

func (s *AdminDispatcherSuite) admin(id string, in time.Duration) *models.AdminSignal {
	a := &models.AdminSignal{
		ID:            id,
		Pair:          "btc/usd",
		Direction:     models.DirectionSell,
		ScheduledTime: s.clk.Now().Add(in),
		Timeframe:     1,
		Status:        models.AdminPending,
	}
	s.Require().NoError(s.admins.CreateAdminSignal(context.Background(), a))
	return a
}

func (s *AdminDispatcherSuite) TestMaterializeBuildsAdminSignal() {
	a := s.admin("adm-1", 30*time.Second)

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliveryMaterialized, res)

	cur := s.store.Current()
	s.Require().NotNil(cur)
	s.Equal("BTC/USDT", cur.Pair)
	s.Equal(models.DirectionSell, cur.Direction)
	s.Equal(AdminConfidence, cur.Confidence)
	s.Equal(AdminStrategy, cur.Strategy)
	s.Equal(models.SourceAdmin, cur.Source)
	s.Equal("adm-1", cur.AdminSignalID)
	s.Equal(a.ScheduledTime, cur.EntryTime)
	s.Equal(64000.0, cur.EntryPrice)
	s.Equal(models.AdminExecuted, s.admins.status("adm-1"))
	s.Len(s.opened, 1)
	s.Len(s.events.ofType(models.EventSignalOpened), 1)
}

func (s *AdminDispatcherSuite) TestPushAndPollMaterializeOnce() {
	a := s.admin("adm-1", 10*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(push bool) {
			defer wg.Done()
			if push {
				_, _ = s.d.Deliver(context.Background(), a)
			} else {
				s.d.PollOnce(context.Background())
			}
		}(i%2 == 0)
	}
	wg.Wait()

	creates, _ := s.signals.counts()
	s.Equal(1, creates)
	s.Equal(1, s.admins.executed)
	s.Len(s.opened, 1)
}

func (s *AdminDispatcherSuite) TestMaterializeTwiceIsRejected() {
	a := s.admin("adm-1", 0)

	_, err := s.d.Materialize(context.Background(), a)
	s.Require().NoError(err)

	_, err = s.d.Materialize(context.Background(), a)
	s.True(errors.HasCode(err, errors.ErrCodeAdminSignalConsumed))
	creates, _ := s.signals.counts()
	s.Equal(1, creates)
}

func (s *AdminDispatcherSuite) TestFutureSignalScheduledAtAdmission() {
	a := s.admin("adm-1", 91*time.Second)

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliveryScheduled, res)
	s.True(s.d.Scheduled("adm-1"))
	s.Nil(s.store.Current())

	// scheduling again does not add a second timer
	_, _ = s.d.Deliver(context.Background(), a)
	s.Equal(1, s.clk.Pending())

	s.clk.Advance(time.Second)

	s.False(s.d.Scheduled("adm-1"))
	cur := s.store.Current()
	s.Require().NotNil(cur)
	s.Equal("adm-1", cur.AdminSignalID)
}

func (s *AdminDispatcherSuite) TestStaleSignalExpires() {
	a := s.admin("adm-1", -61*time.Second)

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliveryExpired, res)
	s.Equal(models.AdminExpired, s.admins.status("adm-1"))
	s.Nil(s.store.Current())
}

func (s *AdminDispatcherSuite) TestOtherPairSkipped() {
	a := s.admin("adm-1", 0)
	a.Pair = "ETH/USDT"

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliverySkipped, res)
	s.Equal(models.AdminPending, s.admins.status("adm-1"))
}

func (s *AdminDispatcherSuite) TestBusyWhileSignalActive() {
	busy := pendingSignal("running", t0)
	s.store.Add(busy)
	s.store.SetCurrent(busy)
	a := s.admin("adm-1", 0)

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliverySkipped, res)
	s.Equal(models.AdminPending, s.admins.status("adm-1"))
}

func (s *AdminDispatcherSuite) TestFindEligiblePicksEarliest() {
	s.admin("late", 150*time.Second)
	s.admin("early", 20*time.Second)
	s.admin("outside", 10*time.Minute)

	a, err := s.d.FindEligible(context.Background(), "BTC/USDT")
	s.Require().NoError(err)
	s.Require().NotNil(a)
	s.Equal("early", a.ID)

	none, err := s.d.FindEligible(context.Background(), "ETH/USDT")
	s.Require().NoError(err)
	s.Nil(none)
}

func (s *AdminDispatcherSuite) TestPollExpiresStale() {
	s.admin("old", -5*time.Minute)
	s.admin("edge", -60*time.Second)
	s.admin("fresh", -30*time.Second)

	s.Require().NoError(s.d.ExpireStale(context.Background()))

	s.Equal(models.AdminExpired, s.admins.status("old"))
	s.Equal(models.AdminExpired, s.admins.status("edge"))
	s.Equal(models.AdminPending, s.admins.status("fresh"))
}

func (s *AdminDispatcherSuite) TestFailedWriteReopensAdminSignal() {
	s.d.writer.attempts = 1
	s.signals.createErr = errors.New(errors.ErrCodePersistFailed, "db down")
	a := s.admin("adm-1", 30*time.Second)

	_, err := s.d.Materialize(context.Background(), a)
	s.True(errors.HasCode(err, errors.ErrCodePersistFailed))
	s.Equal(models.AdminPending, s.admins.status("adm-1"))
	s.Nil(s.store.Current())
	s.Empty(s.opened)

	s.signals.mu.Lock()
	s.signals.createErr = nil
	s.signals.mu.Unlock()

	res, err := s.d.Deliver(context.Background(), a)
	s.Require().NoError(err)
	s.Equal(DeliveryMaterialized, res)
	s.Equal(models.AdminExecuted, s.admins.status("adm-1"))
	s.Require().NotNil(s.store.Current())
	s.Equal("adm-1", s.store.Current().AdminSignalID)
}

func (s *AdminDispatcherSuite) TestClosedGateOnlyExpires() {
	open := false
	s.d.SetGate(func() bool { return open })
	now := s.admin("now", 10*time.Second)
	later := s.admin("later", 2*time.Minute)
	old := s.admin("old", -2*time.Minute)

	for _, a := range []*models.AdminSignal{now, later} {
		res, err := s.d.Deliver(context.Background(), a)
		s.Require().NoError(err)
		s.Equal(DeliverySkipped, res)
	}
	res, err := s.d.Deliver(context.Background(), old)
	s.Require().NoError(err)
	s.Equal(DeliveryExpired, res)

	_, err = s.d.Materialize(context.Background(), now)
	s.True(errors.HasCode(err, errors.ErrCodeAutomationNotRunning))
	s.d.PollOnce(context.Background())
	s.False(s.d.Scheduled("later"))
	s.Nil(s.store.Current())
	s.Equal(models.AdminPending, s.admins.status("now"))

	open = true
	s.d.PollOnce(context.Background())
	s.Require().NotNil(s.store.Current())
	s.Equal("now", s.store.Current().AdminSignalID)
}

func (s *AdminDispatcherSuite) TestMaterializeRefusedWhileSignalActive() {
	busy := pendingSignal("running", t0)
	s.store.Add(busy)
	s.store.SetCurrent(busy)
	a := s.admin("adm-1", 0)

	_, err := s.d.Materialize(context.Background(), a)
	s.True(errors.HasCode(err, errors.ErrCodeSignalConflict))
	s.Equal(models.AdminPending, s.admins.status("adm-1"))
	s.False(s.d.isConsumed("adm-1"))
}

func TestAdminDispatcherRunPolls(t *testing.T) {
	clk := newFakeClock(t0)
	store := NewSignalStore()
	signals := newFakeSignalRepo()
	admins := newFakeAdminRepo(&models.AdminSignal{
		ID:            "adm-1",
		Pair:          "BTC/USDT",
		Direction:     models.DirectionBuy,
		ScheduledTime: t0.Add(45 * time.Second),
		Timeframe:     1,
		Status:        models.AdminPending,
	})
	prices := NewPriceResolver(pricesAt(nil), DefaultPriceRetry(), 5*time.Second, clk, logger.Nop(), nil)
	resolver := NewResultResolver(store, signals, prices, nil, clk, logger.Nop())
	d := NewAdminDispatcher(admins, signals, store, resolver, nil, clk, logger.Nop())
	d.Watch("BTC/USDT")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	require.Eventually(t, func() bool { return clk.Pending() == 1 }, time.Second, time.Millisecond)
	clk.Advance(AdminPollInterval)

	require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, "adm-1", store.Current().AdminSignalID)
	assert.Equal(t, models.AdminExecuted, admins.status("adm-1"))
}
