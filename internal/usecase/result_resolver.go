package usecase

import (
	"context"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	sharedcache "SignalDesk/pkg/cache"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"

	"github.com/moznion/go-optional"
)

// CloseSource provides the fallback exit price.
type CloseSource interface {
	LatestClose(ctx context.Context, pair string, timeframe int) (optional.Option[float64], error)
}

type ResolverConfig struct {
	ExitMargin      time.Duration
	NotReadyWait    time.Duration
	NotReadyRetries int
	EntryTTL        time.Duration
	LockTTL         time.Duration
}

func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		ExitMargin:      ExitMargin,
		NotReadyWait:    2 * time.Second,
		NotReadyRetries: 5,
		EntryTTL:        2 * time.Hour,
		LockTTL:         2 * time.Hour,
	}
}

type ResolverOption func(*ResultResolver)

// WithSharedCache enables the cross-instance entry price cache and the
// resolution lock.
func WithSharedCache(c sharedcache.Service) ResolverOption {
	return func(r *ResultResolver) { r.shared = c }
}

func WithNotifier(n domrepo.Notifier) ResolverOption {
	return func(r *ResultResolver) { r.notifier = n }
}

func WithEvents(p domrepo.EventPublisher) ResolverOption {
	return func(r *ResultResolver) { r.events = p }
}

func WithMetrics(m domrepo.Metrics) ResolverOption {
	return func(r *ResultResolver) { r.metrics = m }
}

func WithResolverConfig(cfg ResolverConfig) ResolverOption {
	return func(r *ResultResolver) { r.cfg = cfg }
}

// ResultResolver drives one signal from entry to a persisted win or loss.
// At most one resolution per signal id runs at a time in this process, and
// with a shared cache at most one across processes.
type ResultResolver struct {
	store    *SignalStore
	repo     domrepo.SignalRepository
	writer   *signalWriter
	prices   *PriceResolver
	closes   CloseSource
	shared   sharedcache.Service
	notifier domrepo.Notifier
	events   domrepo.EventPublisher
	metrics  domrepo.Metrics
	clock    Clock
	log      *logger.Logger
	cfg      ResolverConfig

	mu         sync.Mutex
	processing map[string]struct{}
}

func NewResultResolver(
	store *SignalStore,
	repo domrepo.SignalRepository,
	prices *PriceResolver,
	closes CloseSource,
	clk Clock,
	log *logger.Logger,
	opts ...ResolverOption,
) *ResultResolver {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("result_resolver")
	r := &ResultResolver{
		store:      store,
		repo:       repo,
		writer:     newSignalWriter(repo, clk, log),
		prices:     prices,
		closes:     closes,
		clock:      clk,
		log:        log,
		cfg:        DefaultResolverConfig(),
		processing: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func entryKey(id string) string { return sharedcache.GenerateKey("entry", id) }
func lockKey(id string) string  { return sharedcache.GenerateKey("resolve", id) }

// InFlight reports whether id is being resolved in this process.
func (r *ResultResolver) InFlight(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processing[id]
	return ok
}

func (r *ResultResolver) begin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.processing[id]; ok {
		return false
	}
	r.processing[id] = struct{}{}
	return true
}

func (r *ResultResolver) end(id string) {
	r.mu.Lock()
	delete(r.processing, id)
	r.mu.Unlock()
}

// Resolve waits for the signal's entry and expiry, prices both ends and
// persists the result. It blocks; callers run it on its own goroutine.
// onResolved is called once with the final signal, including when the
// signal was already resolved. Cancelling ctx abandons the attempt and
// leaves the signal pending for the next start.
func (r *ResultResolver) Resolve(ctx context.Context, sig *models.Signal, onResolved func(*models.Signal)) {
	if sig == nil || sig.ID == "" {
		return
	}
	if done := r.resolvedCopy(sig); done != nil {
		callback(onResolved, done)
		return
	}
	if !r.begin(sig.ID) {
		r.log.Debug("resolution already running", logger.String("signal_id", sig.ID))
		return
	}
	defer r.end(sig.ID)

	if r.shared != nil {
		ok, err := r.shared.TryLock(ctx, lockKey(sig.ID), r.cfg.LockTTL)
		switch {
		case err != nil:
			r.log.Warn("resolution lock unavailable, continuing locally",
				logger.String("signal_id", sig.ID), logger.Error(err))
		case !ok:
			r.log.Debug("resolution owned by another instance", logger.String("signal_id", sig.ID))
			return
		default:
			defer func() {
				_ = r.shared.Unlock(context.Background(), lockKey(sig.ID))
			}()
		}
	}

	if cur, err := r.repo.GetSignalByID(ctx, sig.ID); err == nil && cur != nil && cur.IsResolved() {
		r.store.Update(cur)
		callback(onResolved, cur)
		return
	}

	start := r.clock.Now()
	out, err := r.evaluate(ctx, sig)
	if ctx.Err() != nil {
		r.log.Info("resolution interrupted", logger.String("signal_id", sig.ID))
		return
	}
	forced := err != nil
	if forced {
		r.log.Error("resolution failed, recording loss",
			logger.String("signal_id", sig.ID),
			logger.String("pair", sig.Pair),
			logger.Error(err))
		if r.metrics != nil {
			r.metrics.RecordError("resolve")
		}
		out = forcedLoss(r.latest(sig))
	}

	final, perr := r.writer.Resolve(ctx, sig, out)
	if perr != nil {
		r.log.Error("persisting result failed",
			logger.String("signal_id", sig.ID),
			logger.Error(perr))
		final = sig.Clone()
		out.Apply(final)
		final.UpdatedAt = r.clock.Now()
	}

	r.store.Update(final)
	r.announce(ctx, final, forced, err)
	if r.metrics != nil {
		r.metrics.RecordLatency("resolve", r.clock.Now().Sub(start).Seconds())
	}
	callback(onResolved, final)
}

func (r *ResultResolver) resolvedCopy(sig *models.Signal) *models.Signal {
	if sig.IsResolved() {
		return sig.Clone()
	}
	if stored, ok := r.store.Get(sig.ID); ok && stored.IsResolved() {
		return stored
	}
	return nil
}

// latest prefers the stored copy, which carries the verified entry price.
func (r *ResultResolver) latest(sig *models.Signal) *models.Signal {
	if stored, ok := r.store.Get(sig.ID); ok {
		return stored
	}
	return sig
}

func (r *ResultResolver) evaluate(ctx context.Context, sig *models.Signal) (models.Outcome, error) {
	if err := sleepUntil(ctx, r.clock, sig.EntryTime); err != nil {
		return models.Outcome{}, err
	}

	entry, err := r.entryPrice(ctx, sig)
	if err != nil {
		return models.Outcome{}, err
	}
	if entry != sig.EntryPrice {
		upd := r.latest(sig)
		upd.EntryPrice = entry
		r.store.Update(upd)
	}

	if err := sleepUntil(ctx, r.clock, sig.ExpiresAt().Add(r.cfg.ExitMargin)); err != nil {
		return models.Outcome{}, err
	}

	exit := r.exitPrice(ctx, sig, entry)
	return ComputeOutcome(sig.Direction, entry, exit)
}

// entryPrice: shared cache, then broker, then the reference recorded at
// creation.
func (r *ResultResolver) entryPrice(ctx context.Context, sig *models.Signal) (float64, error) {
	if r.shared != nil {
		var p float64
		if err := r.shared.Get(ctx, entryKey(sig.ID), &p); err == nil && p > 0 {
			return p, nil
		}
	}

	var price float64
	if lk := r.lookup(ctx, sig.Pair, sig.EntryTime); lk.Found() {
		price = lk.Price.Unwrap()
	} else if sig.EntryPrice > 0 {
		r.fallback("entry_reference")
		price = sig.EntryPrice
	} else {
		return 0, errors.Newf(errors.ErrCodePriceUnavailable, "no entry price for signal %s", sig.ID)
	}

	if r.shared != nil {
		if err := r.shared.Set(ctx, entryKey(sig.ID), price, r.cfg.EntryTTL); err != nil {
			r.log.Warn("caching entry price failed", logger.String("signal_id", sig.ID), logger.Error(err))
		}
	}
	return price, nil
}

// exitPrice: broker, then the latest candle close, then the entry price.
func (r *ResultResolver) exitPrice(ctx context.Context, sig *models.Signal, entry float64) float64 {
	if lk := r.lookup(ctx, sig.Pair, sig.ExpiresAt()); lk.Found() {
		return lk.Price.Unwrap()
	}
	if r.closes != nil {
		c, err := r.closes.LatestClose(ctx, sig.Pair, sig.Timeframe)
		if err == nil && c.IsSome() {
			r.fallback("ohlc_close")
			return c.Unwrap()
		}
		if err != nil {
			r.log.Warn("close fallback failed", logger.String("signal_id", sig.ID), logger.Error(err))
		}
	}
	r.fallback("entry")
	return entry
}

// lookup re-asks while the broker reports the instant as not reached.
func (r *ResultResolver) lookup(ctx context.Context, pair string, at time.Time) PriceLookup {
	for i := 0; ; i++ {
		lk := r.prices.PriceAt(ctx, pair, at)
		if !lk.NotYet || i >= r.cfg.NotReadyRetries {
			return lk
		}
		if err := sleep(ctx, r.clock, r.cfg.NotReadyWait); err != nil {
			return PriceLookup{Price: optional.None[float64]()}
		}
	}
}

func (r *ResultResolver) fallback(kind string) {
	if r.metrics != nil {
		r.metrics.FallbackUsed(kind)
	}
}

func (r *ResultResolver) announce(ctx context.Context, s *models.Signal, forced bool, cause error) {
	r.log.Info("signal resolved",
		logger.String("signal_id", s.ID),
		logger.String("pair", s.Pair),
		logger.String("direction", string(s.Direction)),
		logger.String("result", string(s.Result)),
		logger.Float64("entry_price", s.EntryPrice),
		logger.Float64("exit_price", s.ExitPrice),
		logger.Float64("profit_loss", s.ProfitLoss),
		logger.Bool("forced", forced))

	if r.metrics != nil {
		r.metrics.SignalResolved(s.Result, forced)
	}
	emit(ctx, r.events, r.clock, models.Event{Type: models.EventSignalResolved, Signal: s})

	if r.notifier == nil {
		return
	}
	var err error
	if forced {
		err = r.notifier.SignalFailed(ctx, s, cause.Error())
	} else {
		err = r.notifier.SignalResolved(ctx, s)
	}
	if err != nil {
		r.log.Warn("notification failed", logger.String("signal_id", s.ID), logger.Error(err))
	}
}

func callback(fn func(*models.Signal), s *models.Signal) {
	if fn != nil {
		fn(s.Clone())
	}
}
