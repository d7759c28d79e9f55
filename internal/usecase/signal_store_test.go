package usecase

import (
	"testing"
	"time"

	"SignalDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingSignal(id string, entry time.Time) *models.Signal {
	return &models.Signal{
		ID:               id,
		Pair:             "BTC/USDT",
		Direction:        models.DirectionBuy,
		Timeframe:        1,
		Confidence:       80,
		EntryTime:        entry,
		EntryPrice:       50000,
		Source:           models.SourceAutomation,
		ProcessingStatus: models.ProcessingPending,
		CreatedAt:        entry.Add(-30 * time.Second),
	}
}

func TestSignalStoreCurrentLifecycle(t *testing.T) {
	s := NewSignalStore()
	sig := pendingSignal("a", t0)

	require.True(t, s.Add(sig))
	assert.False(t, s.Add(sig), "same id twice")
	s.SetCurrent(sig)
	require.NotNil(t, s.Current())
	assert.Equal(t, "a", s.Current().ID)

	var notified []*models.Signal
	unsub := s.Subscribe(func(sig *models.Signal) { notified = append(notified, sig) })
	defer unsub()

	done := sig.Clone()
	models.Outcome{EntryPrice: 50000, ExitPrice: 50125, Result: models.ResultWin, ProfitLoss: 0.25}.Apply(done)
	assert.True(t, s.Update(done))
	assert.Nil(t, s.Current())
	require.Len(t, notified, 1)
	assert.Equal(t, models.ResultWin, notified[0].Result)
}

func TestSignalStoreResultWrittenOnce(t *testing.T) {
	s := NewSignalStore()
	sig := pendingSignal("a", t0)
	s.Add(sig)

	win := sig.Clone()
	models.Outcome{EntryPrice: 1, ExitPrice: 2, Result: models.ResultWin, ProfitLoss: 100}.Apply(win)
	require.True(t, s.Update(win))

	loss := sig.Clone()
	models.Outcome{EntryPrice: 1, ExitPrice: 1, Result: models.ResultLoss}.Apply(loss)
	assert.False(t, s.Update(loss))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, models.ResultWin, got.Result)
}

func TestSignalStoreReturnsCopies(t *testing.T) {
	s := NewSignalStore()
	sig := pendingSignal("a", t0)
	sig.Factors = []string{"rsi"}
	s.Add(sig)

	got, _ := s.Get("a")
	got.Factors[0] = "changed"
	got.EntryPrice = 1

	again, _ := s.Get("a")
	assert.Equal(t, "rsi", again.Factors[0])
	assert.Equal(t, 50000.0, again.EntryPrice)
}

func TestSignalStoreListNewestFirst(t *testing.T) {
	s := NewSignalStore()
	s.Add(pendingSignal("old", t0))
	s.Add(pendingSignal("new", t0.Add(time.Minute)))
	s.Add(pendingSignal("mid", t0.Add(30*time.Second)))

	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{list[0].ID, list[1].ID, list[2].ID})

	pending := s.Pending()
	assert.Equal(t, "old", pending[0].ID)
}

func TestSignalStoreLoadPicksNewestPending(t *testing.T) {
	s := NewSignalStore()
	resolved := pendingSignal("done", t0.Add(time.Hour))
	resolved.Result = models.ResultLoss

	s.Load([]*models.Signal{
		pendingSignal("older", t0),
		pendingSignal("newer", t0.Add(time.Minute)),
		resolved,
	})

	assert.Equal(t, 3, s.Len())
	require.NotNil(t, s.Current())
	assert.Equal(t, "newer", s.Current().ID)

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Current())
}

func TestSignalStoreSetCurrentIgnoresResolved(t *testing.T) {
	s := NewSignalStore()
	sig := pendingSignal("a", t0)
	sig.Result = models.ResultWin
	s.SetCurrent(sig)
	assert.Nil(t, s.Current())
}
