package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	sharedcache "SignalDesk/pkg/cache"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"

	"github.com/google/uuid"
)

// Delivery is what AdminDispatcher.Deliver did with an admin signal.
type Delivery int

const (
	DeliverySkipped Delivery = iota
	DeliveryMaterialized
	DeliveryScheduled
	DeliveryExpired
)

func (d Delivery) String() string {
	switch d {
	case DeliveryMaterialized:
		return "materialized"
	case DeliveryScheduled:
		return "scheduled"
	case DeliveryExpired:
		return "expired"
	default:
		return "skipped"
	}
}

const consumedTTL = 24 * time.Hour

// AdminDispatcher turns operator-scheduled admin signals into live signals
// inside their execution window. Admin signals arrive by push (stream or
// Kafka) and by polling; each one materializes at most once.
type AdminDispatcher struct {
	admins   domrepo.AdminSignalRepository
	writer   *signalWriter
	store    *SignalStore
	resolver *ResultResolver
	closes   CloseSource
	shared   sharedcache.Service
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	windows  Windows
	clock    Clock
	log      *logger.Logger
	poll     time.Duration

	// lifetime context for timers and resolutions
	ctx context.Context

	// openMu serializes every path that opens a signal, including the
	// automation controller's, so at most one signal is ever pending.
	openMu sync.Mutex

	mu         sync.Mutex
	gate       func() bool
	consumed   map[string]struct{}
	timers     map[string]Timer
	pair       string
	onOpened   func(*models.Signal)
	onResolved func(*models.Signal)
}

type DispatcherOption func(*AdminDispatcher)

func WithDispatcherCache(c sharedcache.Service) DispatcherOption {
	return func(d *AdminDispatcher) { d.shared = c }
}

func WithDispatcherEvents(p domrepo.EventPublisher) DispatcherOption {
	return func(d *AdminDispatcher) { d.events = p }
}

func WithDispatcherMetrics(m domrepo.Metrics) DispatcherOption {
	return func(d *AdminDispatcher) { d.metrics = m }
}

func WithWindows(w Windows) DispatcherOption {
	return func(d *AdminDispatcher) { d.windows = w }
}

func WithPollInterval(p time.Duration) DispatcherOption {
	return func(d *AdminDispatcher) {
		if p > 0 {
			d.poll = p
		}
	}
}

func NewAdminDispatcher(
	admins domrepo.AdminSignalRepository,
	signals domrepo.SignalRepository,
	store *SignalStore,
	resolver *ResultResolver,
	closes CloseSource,
	clk Clock,
	log *logger.Logger,
	opts ...DispatcherOption,
) *AdminDispatcher {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("admin_dispatcher")
	d := &AdminDispatcher{
		admins:   admins,
		writer:   newSignalWriter(signals, clk, log),
		store:    store,
		resolver: resolver,
		closes:   closes,
		windows:  DefaultWindows(),
		clock:    clk,
		log:      log,
		poll:     AdminPollInterval,
		ctx:      context.Background(),
		consumed: make(map[string]struct{}),
		timers:   make(map[string]Timer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetCallbacks wires the automation controller's lifecycle hooks.
func (d *AdminDispatcher) SetCallbacks(onOpened, onResolved func(*models.Signal)) {
	d.mu.Lock()
	d.onOpened = onOpened
	d.onResolved = onResolved
	d.mu.Unlock()
}

// SetGate installs the check consulted before an admin signal is scheduled
// or opened. Without a gate every delivery is accepted.
func (d *AdminDispatcher) SetGate(accepting func() bool) {
	d.mu.Lock()
	d.gate = accepting
	d.mu.Unlock()
}

func (d *AdminDispatcher) accepting() bool {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	return gate == nil || gate()
}

// exclusive runs open while no other signal can be opened. It fails with
// ErrCodeSignalConflict when a signal is already pending.
func (d *AdminDispatcher) exclusive(open func() error) error {
	d.openMu.Lock()
	defer d.openMu.Unlock()
	if cur := d.store.Current(); cur != nil {
		return errors.Newf(errors.ErrCodeSignalConflict, "signal %s already active", cur.ID)
	}
	return open()
}

// Watch restricts delivery to pair. An empty pair accepts any pair.
func (d *AdminDispatcher) Watch(pair string) {
	d.mu.Lock()
	d.pair = NormalizePair(pair)
	d.mu.Unlock()
}

func (d *AdminDispatcher) watched() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pair
}

// FindEligible returns the earliest pending admin signal for pair inside the
// lookahead band that has not been consumed here.
func (d *AdminDispatcher) FindEligible(ctx context.Context, pair string) (*models.AdminSignal, error) {
	from, to := d.windows.Lookahead(d.clock.Now())
	list, err := d.admins.GetAdminSignals(ctx, models.AdminSignalFilter{
		Status: models.AdminPending,
		From:   from,
		To:     to,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "pending admin signals", err)
	}

	candidates := make([]*models.AdminSignal, 0, len(list))
	for _, a := range list {
		if a == nil || !a.IsPending() || d.isConsumed(a.ID) {
			continue
		}
		if pair != "" && !SamePair(a.Pair, pair) {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ScheduledTime.Before(candidates[j].ScheduledTime)
	})
	return candidates[0], nil
}

// Deliver routes a single admin signal by its window position: executable
// ones materialize, future ones get a timer, stale ones are expired. Only
// expiry happens while the gate is closed.
func (d *AdminDispatcher) Deliver(ctx context.Context, a *models.AdminSignal) (Delivery, error) {
	if a == nil || !a.IsPending() {
		return DeliverySkipped, nil
	}
	if pair := d.watched(); pair != "" && !SamePair(a.Pair, pair) {
		return DeliverySkipped, nil
	}

	pos := d.windows.Classify(a.ScheduledTime, d.clock.Now())
	if pos == Stale {
		if _, err := d.admins.MarkAdminSignalExpired(ctx, a.ID); err != nil {
			return DeliverySkipped, errors.Wrap(errors.ErrCodePersistFailed, "expire admin signal", err)
		}
		d.cancelTimer(a.ID)
		d.log.Info("admin signal expired",
			logger.String("admin_signal_id", a.ID),
			logger.Time("scheduled_time", a.ScheduledTime))
		return DeliveryExpired, nil
	}
	if !d.accepting() {
		d.log.Debug("automation stopped, admin signal held", logger.String("admin_signal_id", a.ID))
		return DeliverySkipped, nil
	}

	if pos == Future {
		d.Schedule(a)
		return DeliveryScheduled, nil
	}

	if cur := d.store.Current(); cur != nil {
		// The poll picks it up again once the current signal resolves.
		d.log.Debug("signal already active, admin signal deferred",
			logger.String("admin_signal_id", a.ID),
			logger.String("current_signal_id", cur.ID))
		return DeliverySkipped, nil
	}
	if _, err := d.Materialize(ctx, a); err != nil {
		switch errors.GetCode(err) {
		case errors.ErrCodeAdminSignalConsumed, errors.ErrCodeSignalConflict, errors.ErrCodeAutomationNotRunning:
			return DeliverySkipped, nil
		}
		return DeliverySkipped, err
	}
	return DeliveryMaterialized, nil
}

// Materialize converts an admin signal into a live signal and starts its
// resolution. It fails with ErrCodeAdminSignalConsumed when this or another
// process already claimed the admin signal, with ErrCodeSignalConflict when
// a signal is already pending and with ErrCodeAutomationNotRunning when the
// gate is closed. A failed write leaves the admin signal pending.
func (d *AdminDispatcher) Materialize(ctx context.Context, a *models.AdminSignal) (*models.Signal, error) {
	var created *models.Signal
	err := d.exclusive(func() error {
		if !d.accepting() {
			return errors.Newf(errors.ErrCodeAutomationNotRunning, "admin signal %s held, automation stopped", a.ID)
		}
		var err error
		created, err = d.materialize(ctx, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	onResolved := d.onResolved
	d.mu.Unlock()
	go d.resolver.Resolve(d.lifetime(), created, onResolved)
	return created.Clone(), nil
}

func (d *AdminDispatcher) materialize(ctx context.Context, a *models.AdminSignal) (*models.Signal, error) {
	if !d.claim(a.ID) {
		return nil, errors.Newf(errors.ErrCodeAdminSignalConsumed, "admin signal %s already consumed", a.ID)
	}
	d.cancelTimer(a.ID)

	lockKey := sharedcache.GenerateKey("admin", a.ID)
	if d.shared != nil {
		ok, err := d.shared.TryLock(ctx, lockKey, consumedTTL)
		if err != nil {
			d.log.Warn("admin claim lock unavailable, relying on database", logger.Error(err))
		} else if !ok {
			return nil, errors.Newf(errors.ErrCodeAdminSignalConsumed, "admin signal %s claimed elsewhere", a.ID)
		}
	}
	unclaim := func() {
		d.release(a.ID)
		if d.shared != nil {
			_ = d.shared.Unlock(ctx, lockKey)
		}
	}

	moved, err := d.admins.MarkAdminSignalExecuted(ctx, a.ID)
	if err != nil {
		unclaim()
		return nil, errors.Wrap(errors.ErrCodePersistFailed, "mark admin signal executed", err)
	}
	if !moved {
		return nil, errors.Newf(errors.ErrCodeAdminSignalConsumed, "admin signal %s no longer pending", a.ID)
	}

	now := d.clock.Now()
	sig := &models.Signal{
		ID:               uuid.NewString(),
		Pair:             NormalizePair(a.Pair),
		Direction:        a.Direction,
		Timeframe:        int(domrepo.NormalizeTimeframe(a.Timeframe)),
		Confidence:       AdminConfidence,
		EntryTime:        a.ScheduledTime,
		EntryPrice:       d.referencePrice(ctx, a),
		Strategy:         AdminStrategy,
		Source:           models.SourceAdmin,
		AdminSignalID:    a.ID,
		ProcessingStatus: models.ProcessingPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := d.writer.Create(ctx, sig)
	if err != nil {
		if d.metrics != nil {
			d.metrics.RecordError("admin_materialize")
		}
		if _, rerr := d.admins.ReopenAdminSignal(ctx, a.ID); rerr != nil {
			d.log.Error("reopening admin signal failed",
				logger.String("admin_signal_id", a.ID),
				logger.Error(rerr))
			return nil, err
		}
		unclaim()
		d.log.Warn("admin signal reopened after failed write",
			logger.String("admin_signal_id", a.ID),
			logger.Error(err))
		return nil, err
	}

	d.store.Add(created)
	d.store.SetCurrent(created)
	if d.metrics != nil {
		d.metrics.SignalOpened(models.SourceAdmin)
	}
	d.log.Info("admin signal materialized",
		logger.String("admin_signal_id", a.ID),
		logger.String("signal_id", created.ID),
		logger.String("pair", created.Pair),
		logger.String("direction", string(created.Direction)),
		logger.Time("entry_time", created.EntryTime))
	emit(ctx, d.events, d.clock, models.Event{Type: models.EventSignalOpened, Signal: created})

	d.mu.Lock()
	onOpened := d.onOpened
	d.mu.Unlock()
	callback(onOpened, created)
	return created, nil
}

// referencePrice is the newest candle close, 0 when unavailable; the
// resolver verifies it against the broker at entry time.
func (d *AdminDispatcher) referencePrice(ctx context.Context, a *models.AdminSignal) float64 {
	if d.closes == nil {
		return 0
	}
	c, err := d.closes.LatestClose(ctx, a.Pair, a.Timeframe)
	if err != nil {
		d.log.Warn("reference price unavailable", logger.String("pair", a.Pair), logger.Error(err))
		return 0
	}
	if c.IsSome() {
		return c.Unwrap()
	}
	return 0
}

// Schedule arms a one-shot timer that re-reads the admin signal and
// delivers it once it enters the window. Scheduling an id twice is a no-op.
func (d *AdminDispatcher) Schedule(a *models.AdminSignal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.timers[a.ID]; ok {
		return
	}
	if _, ok := d.consumed[a.ID]; ok {
		return
	}

	wait := d.windows.EligibleAt(a.ScheduledTime).Sub(d.clock.Now())
	id := a.ID
	d.timers[id] = d.clock.AfterFunc(wait, func() { d.fire(id) })
	d.log.Info("admin signal scheduled",
		logger.String("admin_signal_id", id),
		logger.Time("scheduled_time", a.ScheduledTime),
		logger.Duration("wait_ms", wait))
}

func (d *AdminDispatcher) fire(id string) {
	d.mu.Lock()
	delete(d.timers, id)
	d.mu.Unlock()

	ctx := d.lifetime()
	a, err := d.admins.GetAdminSignalByID(ctx, id)
	if err != nil {
		d.log.Warn("scheduled admin signal lookup failed", logger.String("admin_signal_id", id), logger.Error(err))
		return
	}
	if _, err := d.Deliver(ctx, a); err != nil {
		d.log.Error("scheduled admin signal delivery failed", logger.String("admin_signal_id", id), logger.Error(err))
	}
}

func (d *AdminDispatcher) lifetime() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// Bind sets the lifetime context without starting the poll loop.
func (d *AdminDispatcher) Bind(ctx context.Context) {
	d.mu.Lock()
	d.ctx = ctx
	d.mu.Unlock()
}

// Run polls for eligible admin signals until ctx is done. Timers and
// resolutions started by the dispatcher use ctx as their lifetime.
func (d *AdminDispatcher) Run(ctx context.Context) {
	d.Bind(ctx)

	for {
		select {
		case <-ctx.Done():
			d.Stop()
			return
		case <-d.clock.After(d.poll):
			d.PollOnce(ctx)
		}
	}
}

// PollOnce delivers the earliest eligible admin signal for the watched pair
// and expires stale ones. Expiry continues while the gate is closed.
func (d *AdminDispatcher) PollOnce(ctx context.Context) {
	if pair := d.watched(); pair != "" && d.store.Current() == nil && d.accepting() {
		a, err := d.FindEligible(ctx, pair)
		if err != nil {
			d.log.Warn("admin poll failed", logger.Error(err))
		} else if a != nil {
			if _, err := d.Deliver(ctx, a); err != nil {
				d.log.Warn("admin delivery failed", logger.String("admin_signal_id", a.ID), logger.Error(err))
			}
		}
	}
	if err := d.ExpireStale(ctx); err != nil {
		d.log.Warn("expiring stale admin signals failed", logger.Error(err))
	}
}

// ExpireStale marks every pending admin signal past the window as expired.
func (d *AdminDispatcher) ExpireStale(ctx context.Context) error {
	now := d.clock.Now()
	list, err := d.admins.GetAdminSignals(ctx, models.AdminSignalFilter{
		Status: models.AdminPending,
		To:     d.windows.StaleBefore(now),
	})
	if err != nil {
		return err
	}
	for _, a := range list {
		if a == nil || d.windows.Classify(a.ScheduledTime, now) != Stale {
			continue
		}
		if _, err := d.admins.MarkAdminSignalExpired(ctx, a.ID); err != nil {
			return err
		}
		d.cancelTimer(a.ID)
	}
	return nil
}

// Stop cancels every scheduled timer.
func (d *AdminDispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}

// Scheduled reports whether a timer is armed for id.
func (d *AdminDispatcher) Scheduled(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.timers[id]
	return ok
}

func (d *AdminDispatcher) claim(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.consumed[id]; ok {
		return false
	}
	d.consumed[id] = struct{}{}
	return true
}

func (d *AdminDispatcher) release(id string) {
	d.mu.Lock()
	delete(d.consumed, id)
	d.mu.Unlock()
}

func (d *AdminDispatcher) isConsumed(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.consumed[id]
	return ok
}

func (d *AdminDispatcher) cancelTimer(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[id]; ok {
		t.Stop()
		delete(d.timers, id)
	}
}

// Forget cancels the timer armed for id, if any.
func (d *AdminDispatcher) Forget(id string) {
	d.cancelTimer(id)
}
