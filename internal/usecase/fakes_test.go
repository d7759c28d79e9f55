package usecase

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"

	"github.com/moznion/go-optional"
)

var t0 = time.Date(2025, 3, 10, 12, 0, 30, 0, time.UTC)

// fakeClock is a manual clock. AfterFunc callbacks run synchronously inside
// Advance, including ones registered with d <= 0, which fire on the next
// Advance (Advance(0) works). In auto mode After returns immediately and
// moves time forward, so sleeps cost nothing.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	auto    bool
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	c       *fakeClock
	at      time.Time
	ch      chan time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func newAutoClock(now time.Time) *fakeClock { return &fakeClock{now: now, auto: true} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		ch <- c.now
		return ch
	}
	if c.auto {
		c.now = c.now.Add(d)
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{c: c, at: c.now.Add(d), ch: ch})
	return ch
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	w := &fakeWaiter{c: c, at: c.now.Add(d), fn: f}
	c.waiters = append(c.waiters, w)
	return w
}

func (w *fakeWaiter) Stop() bool {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	if w.fired || w.stopped {
		return false
	}
	w.stopped = true
	for i, x := range w.c.waiters {
		if x == w {
			w.c.waiters = append(w.c.waiters[:i], w.c.waiters[i+1:]...)
			break
		}
	}
	return true
}

// Advance moves time forward and fires everything due, earliest first.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var due, rest []*fakeWaiter
	for _, w := range c.waiters {
		if !w.at.After(now) {
			w.fired = true
			due = append(due, w)
		} else {
			rest = append(rest, w)
		}
	}
	c.waiters = rest
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, w := range due {
		if w.ch != nil {
			w.ch <- now
		}
		if w.fn != nil {
			w.fn()
		}
	}
}

// Pending is the number of armed waiters.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// --- repositories ---

type fakeSignalRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.Signal
	creates   int
	updates   int
	createErr error
	updateErr error
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{rows: make(map[string]*models.Signal)}
}

func (r *fakeSignalRepo) CreateSignal(_ context.Context, s *models.Signal) (*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.rows[s.ID] = s.Clone()
	return s.Clone(), nil
}

func (r *fakeSignalRepo) GetSignalByID(_ context.Context, id string) (*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "signal %s not found", id)
	}
	return s.Clone(), nil
}

func (r *fakeSignalRepo) UpdateSignalResult(_ context.Context, id string, out models.Outcome) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	if r.updateErr != nil {
		return false, r.updateErr
	}
	s, ok := r.rows[id]
	if !ok || s.IsResolved() {
		return false, nil
	}
	out.Apply(s)
	return true, nil
}

func (r *fakeSignalRepo) GetPendingSignals(_ context.Context) ([]*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Signal
	for _, s := range r.rows {
		if !s.IsResolved() {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSignalRepo) GetAllSignals(_ context.Context, _ int) ([]*models.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Signal, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (r *fakeSignalRepo) put(s *models.Signal) {
	r.mu.Lock()
	r.rows[s.ID] = s.Clone()
	r.mu.Unlock()
}

func (r *fakeSignalRepo) counts() (creates, updates int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creates, r.updates
}

type fakeAdminRepo struct {
	mu       sync.Mutex
	rows     map[string]*models.AdminSignal
	executed int
}

func newFakeAdminRepo(list ...*models.AdminSignal) *fakeAdminRepo {
	r := &fakeAdminRepo{rows: make(map[string]*models.AdminSignal)}
	for _, a := range list {
		c := *a
		r.rows[a.ID] = &c
	}
	return r
}

func (r *fakeAdminRepo) GetAdminSignals(_ context.Context, f models.AdminSignalFilter) ([]*models.AdminSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AdminSignal
	for _, a := range r.rows {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.From.IsZero() && a.ScheduledTime.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.ScheduledTime.After(f.To) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	return out, nil
}

func (r *fakeAdminRepo) GetAdminSignalByID(_ context.Context, id string) (*models.AdminSignal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeDataNotFound, "admin signal %s not found", id)
	}
	c := *a
	return &c, nil
}

func (r *fakeAdminRepo) mark(id string, to models.AdminStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.Status != models.AdminPending {
		return false, nil
	}
	a.Status = to
	if to == models.AdminExecuted {
		r.executed++
	}
	return true, nil
}

func (r *fakeAdminRepo) MarkAdminSignalExecuted(_ context.Context, id string) (bool, error) {
	return r.mark(id, models.AdminExecuted)
}

func (r *fakeAdminRepo) MarkAdminSignalExpired(_ context.Context, id string) (bool, error) {
	return r.mark(id, models.AdminExpired)
}

func (r *fakeAdminRepo) ReopenAdminSignal(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok || a.Status != models.AdminExecuted {
		return false, nil
	}
	a.Status = models.AdminPending
	r.executed--
	return true, nil
}

func (r *fakeAdminRepo) CreateAdminSignal(_ context.Context, a *models.AdminSignal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *a
	r.rows[a.ID] = &c
	return nil
}

func (r *fakeAdminRepo) DeleteAdminSignal(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *fakeAdminRepo) status(id string) models.AdminStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Status
}

type fakeSettings struct {
	mu      sync.Mutex
	enabled bool
	err     error
}

func (s *fakeSettings) GetSystemEnabled(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled, s.err
}

func (s *fakeSettings) SetSystemEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.enabled = enabled
	return nil
}

// --- prices and candles ---

type fakeGateway struct {
	calls atomic.Int32
	fn    func(pair string, at time.Time) (optional.Option[float64], error)
}

func (g *fakeGateway) PriceAt(_ context.Context, pair string, at time.Time) (optional.Option[float64], error) {
	g.calls.Add(1)
	return g.fn(pair, at)
}

// pricesAt answers from a table keyed by instant; missing instants are None.
func pricesAt(table map[time.Time]float64) *fakeGateway {
	return &fakeGateway{fn: func(_ string, at time.Time) (optional.Option[float64], error) {
		if p, ok := table[at]; ok {
			return optional.Some(p), nil
		}
		return optional.None[float64](), nil
	}}
}

type fakeCloses struct {
	price optional.Option[float64]
	err   error
	calls atomic.Int32
}

func (f *fakeCloses) LatestClose(context.Context, string, int) (optional.Option[float64], error) {
	f.calls.Add(1)
	return f.price, f.err
}

type fakeCandleSource struct {
	mu      sync.Mutex
	candles []models.Candle
	err     error
	pairs   []string
}

func (f *fakeCandleSource) GetLatestNCandles(_ context.Context, pair string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs = append(f.pairs, pair)
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.candles) {
		return append([]models.Candle(nil), f.candles[len(f.candles)-n:]...), nil
	}
	return append([]models.Candle(nil), f.candles...), nil
}

func candlesClosingAt(closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{Bucket: t0.Add(time.Duration(i-len(closes)) * time.Minute), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	pairs []string
	fn    func(call int) (*models.Verdict, error)
}

func (a *fakeAnalyzer) Analyze(_ context.Context, pair string, _ []models.Candle, _ string) (*models.Verdict, error) {
	a.mu.Lock()
	a.calls++
	a.pairs = append(a.pairs, pair)
	n := a.calls
	a.mu.Unlock()
	return a.fn(n)
}

func (a *fakeAnalyzer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// --- sinks ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) ofType(t models.EventType) []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu       sync.Mutex
	resolved []string
	failed   []string
}

func (n *recordingNotifier) SignalResolved(_ context.Context, s *models.Signal) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, s.ID)
	return nil
}

func (n *recordingNotifier) SignalFailed(_ context.Context, s *models.Signal, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, s.ID)
	return nil
}

type recordingArchive struct {
	mu  sync.Mutex
	ids []string
}

func (a *recordingArchive) Archive(_ context.Context, s *models.Signal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ids = append(a.ids, s.ID)
	return nil
}
