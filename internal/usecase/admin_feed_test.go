package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu         sync.Mutex
	ch         chan *models.AdminSignal
	errs       chan error
	connected  bool
	reconnects int
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan *models.AdminSignal, 4), errs: make(chan error, 1)}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Read(context.Context) (<-chan *models.AdminSignal, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch, s.errs
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) reconnectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnects
}

func TestAdminFeedDeliversAndReconnects(t *testing.T) {
	clk := newFakeClock(t0)
	store := NewSignalStore()
	signals := newFakeSignalRepo()
	a := &models.AdminSignal{
		ID:            "adm-1",
		Pair:          "BTC/USDT",
		Direction:     models.DirectionBuy,
		ScheduledTime: t0.Add(20 * time.Second),
		Timeframe:     1,
		Status:        models.AdminPending,
	}
	admins := newFakeAdminRepo(a)
	prices := NewPriceResolver(pricesAt(nil), DefaultPriceRetry(), 5*time.Second, clk, logger.Nop(), nil)
	resolver := NewResultResolver(store, signals, prices, nil, clk, logger.Nop())
	d := NewAdminDispatcher(admins, signals, store, resolver, nil, clk, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Bind(ctx)

	stream := newFakeStream()
	feed := NewAdminFeed(stream, d, nil, logger.Nop())
	require.NoError(t, feed.Start(ctx))
	assert.True(t, feed.IsConnected())

	stream.errs <- errors.New("socket closed")
	require.Eventually(t, func() bool { return stream.reconnectCount() == 1 }, time.Second, time.Millisecond)

	stream.ch <- nil
	stream.ch <- a
	require.Eventually(t, func() bool { return store.Current() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, "adm-1", store.Current().AdminSignalID)

	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	require.NoError(t, feed.Shutdown(shutdownCtx))
	assert.False(t, feed.IsConnected())
}
