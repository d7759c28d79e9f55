package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/service/cache"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"
	"SignalDesk/pkg/util"

	"github.com/moznion/go-optional"
)

// PriceLookup is the outcome of PriceResolver.PriceAt. NotYet means the
// instant has not been reached; the caller should wait and ask again.
type PriceLookup struct {
	Price  optional.Option[float64]
	NotYet bool
}

func (l PriceLookup) Found() bool { return l.Price.IsSome() }

// PriceResolver fetches point prices from the broker with retry and a short
// per-minute cache.
type PriceResolver struct {
	gw      domrepo.PriceGateway
	cache   *cache.TTLCache[float64]
	ttl     time.Duration
	policy  RetryPolicy
	clock   Clock
	log     *logger.Logger
	metrics domrepo.Metrics
}

func NewPriceResolver(gw domrepo.PriceGateway, policy RetryPolicy, ttl time.Duration, clk Clock, log *logger.Logger, m domrepo.Metrics) *PriceResolver {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultPriceRetry()
	}
	return &PriceResolver{
		gw:      gw,
		cache:   cache.NewTTLCache[float64]().WithClock(clk.Now),
		ttl:     ttl,
		policy:  policy,
		clock:   clk,
		log:     log.Component("price_resolver"),
		metrics: m,
	}
}

func priceKey(pair string, at time.Time) string {
	return fmt.Sprintf("%s:%d", BrokerSymbol(pair), util.MinuteKey(at))
}

// PriceAt returns the broker price of pair at the instant at. Future
// instants return NotYet without contacting the broker. After the retry
// budget is spent the lookup returns None.
func (r *PriceResolver) PriceAt(ctx context.Context, pair string, at time.Time) PriceLookup {
	key := priceKey(pair, at)
	if p, ok := r.cache.Get(key); ok {
		r.observe("cache_hit")
		return PriceLookup{Price: optional.Some(p)}
	}
	if at.After(r.clock.Now()) {
		r.observe("not_yet")
		return PriceLookup{NotYet: true}
	}

	start := r.clock.Now()
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		price, err := r.gw.PriceAt(ctx, NormalizePair(pair), at)
		switch {
		case err == nil && price.IsSome():
			p := price.Unwrap()
			r.cache.Set(key, p, r.ttl)
			r.observe("found")
			if r.metrics != nil {
				r.metrics.RecordLatency("price_lookup", r.clock.Now().Sub(start).Seconds())
			}
			return PriceLookup{Price: optional.Some(p)}
		case errors.HasCode(err, errors.ErrCodePriceNotReady):
			r.observe("not_yet")
			return PriceLookup{NotYet: true}
		case err != nil:
			r.log.Warn("price lookup failed",
				logger.String("pair", pair),
				logger.Time("at", at),
				logger.Int("attempt", attempt),
				logger.Error(err))
		default:
			r.log.Debug("no price yet",
				logger.String("pair", pair),
				logger.Time("at", at),
				logger.Int("attempt", attempt))
		}

		if r.policy.Exhausted(attempt) {
			break
		}
		if err := sleep(ctx, r.clock, r.policy.NextDelay(attempt)); err != nil {
			break
		}
	}

	r.observe("exhausted")
	return PriceLookup{Price: optional.None[float64]()}
}

func (r *PriceResolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.PriceLookup(outcome)
	}
}
