package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/pkg/errors"
	"SignalDesk/pkg/logger"
	"SignalDesk/pkg/util"

	"github.com/google/uuid"
)

const restoreLimit = 500

type AutomationConfig struct {
	Pair             string
	Timeframe        int
	Strategy         string
	TickInterval     time.Duration
	RetryBackoff     time.Duration
	WatchdogInterval time.Duration
	WatchdogMargin   time.Duration
	MinConfidence    float64
	MaxAttempts      int
	MaxRetries       int
	CandleLimit      int
}

func DefaultAutomationConfig() AutomationConfig {
	return AutomationConfig{
		Pair:             "BTC/USDT",
		Timeframe:        1,
		Strategy:         "protocolo_v4",
		TickInterval:     TickInterval,
		RetryBackoff:     time.Second,
		WatchdogInterval: WatchdogInterval,
		WatchdogMargin:   WatchdogMargin,
		MinConfidence:    MinConfidence,
		MaxAttempts:      MaxSearchAttempts,
		MaxRetries:       MaxAnalysisRetries,
		CandleLimit:      defaultCandleLimit,
	}
}

// Hooks are the presentation-facing callbacks.
type Hooks struct {
	OnOpened   func(*models.Signal)
	OnResolved func(*models.Signal)
	OnError    func(error)
}

// AutomationStatus is a snapshot of the controller.
type AutomationStatus struct {
	State         models.AutomationState `json:"state"`
	Running       bool                   `json:"running"`
	Pair          string                 `json:"pair"`
	Timeframe     int                    `json:"timeframe"`
	Strategy      string                 `json:"strategy"`
	Attempts      int                    `json:"attempts"`
	Retries       int                    `json:"retries"`
	SystemEnabled bool                   `json:"systemEnabled"`
	Current       *models.Signal         `json:"current,omitempty"`
}

type AutomationOption func(*AutomationController)

func WithAutomationEvents(p domrepo.EventPublisher) AutomationOption {
	return func(c *AutomationController) { c.events = p }
}

func WithAutomationMetrics(m domrepo.Metrics) AutomationOption {
	return func(c *AutomationController) { c.metrics = m }
}

func WithHooks(h Hooks) AutomationOption {
	return func(c *AutomationController) { c.hooks = h }
}

// AutomationController runs the search loop: while no signal is active it
// gives admin signals precedence, otherwise analyzes candles every tick and
// opens a signal on the first qualifying verdict.
type AutomationController struct {
	cfg        AutomationConfig
	store      *SignalStore
	dispatcher *AdminDispatcher
	resolver   *ResultResolver
	candles    *CandleService
	analyzer   domsvc.Analyzer
	signals    domrepo.SignalRepository
	writer     *signalWriter
	system     domrepo.SystemSwitch
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	hooks      Hooks
	clock      Clock
	log        *logger.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	ctx       context.Context
	state     models.AutomationState
	running   bool
	pair      string
	timeframe int
	strategy  string
	attempts  int
	retries   int
	timer     Timer
	gen       uint64
	outbox    []models.Event
}

func NewAutomationController(
	cfg AutomationConfig,
	store *SignalStore,
	dispatcher *AdminDispatcher,
	resolver *ResultResolver,
	candles *CandleService,
	analyzer domsvc.Analyzer,
	signals domrepo.SignalRepository,
	system domrepo.SystemSwitch,
	clk Clock,
	log *logger.Logger,
	opts ...AutomationOption,
) *AutomationController {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	def := DefaultAutomationConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = def.WatchdogInterval
	}
	if cfg.WatchdogMargin <= 0 {
		cfg.WatchdogMargin = def.WatchdogMargin
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	log = log.Component("automation")

	c := &AutomationController{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		resolver:   resolver,
		candles:    candles,
		analyzer:   analyzer,
		signals:    signals,
		writer:     newSignalWriter(signals, clk, log),
		system:     system,
		clock:      clk,
		log:        log,
		ctx:        context.Background(),
		state:      models.StateIdle,
		pair:       NormalizePair(cfg.Pair),
		timeframe:  int(domrepo.NormalizeTimeframe(cfg.Timeframe)),
		strategy:   cfg.Strategy,
	}
	for _, opt := range opts {
		opt(c)
	}

	dispatcher.SetCallbacks(c.signalOpened, c.signalResolved)
	dispatcher.SetGate(c.isRunning)
	dispatcher.Watch(c.pair)
	store.Subscribe(c.announceResolved)
	if system != nil {
		system.Subscribe(c.systemChanged)
	}
	return c
}

// Bind sets the lifetime context for ticks and resolutions.
func (c *AutomationController) Bind(ctx context.Context) {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
}

func (c *AutomationController) lifetime() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Restore reloads persisted signals into the store and resumes resolution
// of the pending ones.
func (c *AutomationController) Restore(ctx context.Context) error {
	list, err := c.signals.GetAllSignals(ctx, restoreLimit)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "restore signals", err)
	}
	c.store.Load(list)

	pending := c.store.Pending()
	for _, s := range pending {
		go c.resolver.Resolve(c.lifetime(), s, c.signalResolved)
	}
	if c.store.Current() != nil {
		c.mu.Lock()
		c.setStateLocked(models.StateActive)
		c.unlockAndFlush()
	}
	c.log.Info("signals restored",
		logger.Int("total", len(list)),
		logger.Int("pending", len(pending)))
	return nil
}

// Start begins searching. Empty arguments keep the current market.
func (c *AutomationController) Start(pair string, timeframe int, strategy string) error {
	if timeframe != 0 && !domrepo.IsValidTimeframe(domrepo.Timeframe(timeframe)) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %d", timeframe)
	}

	c.mu.Lock()
	defer c.unlockAndFlush()
	if c.running {
		return errors.New(errors.ErrCodeAutomationRunning, "automation already running")
	}
	c.applyMarketLocked(pair, timeframe, strategy)
	c.running = true
	c.attempts, c.retries = 0, 0
	c.gen++

	if c.store.Current() != nil {
		c.setStateLocked(models.StateActive)
	} else {
		c.setStateLocked(models.StateSearching)
		c.armLocked(0)
	}
	c.log.Info("automation started",
		logger.String("pair", c.pair),
		logger.Int("timeframe", c.timeframe),
		logger.String("strategy", c.strategy))
	return nil
}

// Stop halts the search loop. An active signal keeps resolving.
func (c *AutomationController) Stop() error {
	c.mu.Lock()
	defer c.unlockAndFlush()
	if !c.running {
		return errors.New(errors.ErrCodeAutomationNotRunning, "automation not running")
	}
	c.haltLocked()
	c.log.Info("automation stopped")
	return nil
}

// SetMarket switches pair, timeframe and strategy and restarts the search.
func (c *AutomationController) SetMarket(pair string, timeframe int, strategy string) error {
	if NormalizePair(pair) == "" {
		return errors.New(errors.ErrCodeInvalidPair, "pair required")
	}
	if timeframe != 0 && !domrepo.IsValidTimeframe(domrepo.Timeframe(timeframe)) {
		return errors.Newf(errors.ErrCodeInvalidParameter, "unsupported timeframe %d", timeframe)
	}

	c.mu.Lock()
	defer c.unlockAndFlush()
	c.applyMarketLocked(pair, timeframe, strategy)
	if c.running && c.store.Current() == nil {
		c.attempts, c.retries = 0, 0
		c.gen++
		c.setStateLocked(models.StateSearching)
		c.armLocked(0)
	}
	c.log.Info("market changed",
		logger.String("pair", c.pair),
		logger.Int("timeframe", c.timeframe),
		logger.String("strategy", c.strategy))
	return nil
}

func (c *AutomationController) Status(ctx context.Context) AutomationStatus {
	enabled := true
	if c.system != nil {
		enabled = c.system.IsSystemEnabled(ctx)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return AutomationStatus{
		State:         c.state,
		Running:       c.running,
		Pair:          c.pair,
		Timeframe:     c.timeframe,
		Strategy:      c.strategy,
		Attempts:      c.attempts,
		Retries:       c.retries,
		SystemEnabled: enabled,
		Current:       c.store.Current(),
	}
}

func (c *AutomationController) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *AutomationController) State() models.AutomationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot is what a new event subscriber starts from: the current state
// and the open signal, if any.
func (c *AutomationController) Snapshot() []models.Event {
	now := c.clock.Now()
	out := []models.Event{{Type: models.EventAutomationState, State: c.State(), Time: now}}
	if cur := c.store.Current(); cur != nil {
		out = append(out, models.Event{Type: models.EventSignalOpened, Signal: cur, Time: now})
	}
	return out
}

func (c *AutomationController) applyMarketLocked(pair string, timeframe int, strategy string) {
	if p := NormalizePair(pair); p != "" {
		c.pair = p
	}
	if timeframe > 0 {
		c.timeframe = timeframe
	}
	if strategy != "" {
		c.strategy = strategy
	}
	c.dispatcher.Watch(c.pair)
}

func (c *AutomationController) armLocked(d time.Duration) {
	if c.timer != nil {
		c.timer.Stop()
	}
	gen := c.gen
	c.timer = c.clock.AfterFunc(d, func() { c.tick(gen) })
}

// haltLocked stops the search and every admin timer. Resolution of the
// current signal is not affected.
func (c *AutomationController) haltLocked() {
	c.running = false
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.dispatcher.Stop()
	if c.store.Current() != nil {
		c.setStateLocked(models.StateActive)
	} else {
		c.setStateLocked(models.StateIdle)
	}
}

func (c *AutomationController) setStateLocked(s models.AutomationState) {
	if c.state == s {
		return
	}
	c.state = s
	if c.metrics != nil {
		c.metrics.AutomationState(s)
	}
	c.outbox = append(c.outbox, models.Event{Type: models.EventAutomationState, State: s, Time: c.clock.Now()})
}

// unlockAndFlush releases mu and then publishes queued events so sinks never
// run under the lock.
func (c *AutomationController) unlockAndFlush() {
	out := c.outbox
	c.outbox = nil
	ctx := c.ctx
	c.mu.Unlock()
	for _, e := range out {
		emit(ctx, c.events, c.clock, e)
	}
}

func (c *AutomationController) tick(gen uint64) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer c.inFlight.Store(false)

	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}
	ctx, pair, tf, strategy := c.ctx, c.pair, c.timeframe, c.strategy
	c.mu.Unlock()

	next, rearm := c.step(ctx, gen, pair, tf, strategy)

	c.mu.Lock()
	defer c.unlockAndFlush()
	if !c.running || c.store.Current() != nil {
		return
	}
	switch {
	case gen != c.gen:
		// restarted while this tick ran; its timer may have been skipped
		c.armLocked(0)
	case rearm:
		c.armLocked(next)
	}
}

func (c *AutomationController) step(ctx context.Context, gen uint64, pair string, tf int, strategy string) (time.Duration, bool) {
	if c.store.Current() != nil {
		c.transition(gen, models.StateActive)
		return 0, false
	}

	a, err := c.dispatcher.FindEligible(ctx, pair)
	if err != nil {
		c.log.Warn("admin lookup failed", logger.Error(err))
	} else if a != nil {
		res, err := c.dispatcher.Deliver(ctx, a)
		if err != nil {
			c.log.Warn("admin delivery failed", logger.String("admin_signal_id", a.ID), logger.Error(err))
		}
		switch res {
		case DeliveryMaterialized:
			return 0, false
		case DeliveryScheduled:
			c.transition(gen, models.StateAdminWait)
			return c.cfg.TickInterval, true
		}
	}

	c.transition(gen, models.StateSearching)
	if c.system != nil && !c.system.IsSystemEnabled(ctx) {
		c.log.Debug("system disabled, analysis skipped")
		c.awaitAdmin(gen)
		return c.cfg.TickInterval, true
	}

	candles, err := c.candles.FetchCandles(ctx, pair, tf, c.cfg.CandleLimit)
	if err != nil {
		return c.failure(gen, err)
	}
	verdict, err := c.analyzer.Analyze(ctx, pair, candles, strategy)
	if c.store.Current() != nil {
		// an admin signal opened while the analysis ran
		return 0, false
	}
	if err != nil {
		return c.failure(gen, err)
	}

	c.mu.Lock()
	c.retries = 0
	c.mu.Unlock()

	if dir, ok := c.qualifies(verdict); ok {
		if err := c.open(ctx, gen, pair, tf, strategy, dir, verdict, candles); err != nil {
			return c.failure(gen, err)
		}
		return 0, false
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return 0, false
	}
	c.attempts++
	attempts := c.attempts
	c.mu.Unlock()

	c.log.Debug("no qualifying verdict",
		logger.String("pair", pair),
		logger.Int("attempt", attempts),
		logger.Float64("confidence", verdict.Confidence),
		logger.String("direction", string(verdict.Direction)))

	if attempts >= c.cfg.MaxAttempts {
		c.fail(gen, errors.New(errors.ErrCodeNoOpportunity, "no opportunity found"))
		return 0, false
	}
	return c.cfg.TickInterval, true
}

func (c *AutomationController) qualifies(v *models.Verdict) (models.Direction, bool) {
	if v == nil || v.Confidence < c.cfg.MinConfidence || len(v.Factors) == 0 {
		return "", false
	}
	return v.SignalDirection()
}

func (c *AutomationController) open(
	ctx context.Context,
	gen uint64,
	pair string,
	tf int,
	strategy string,
	dir models.Direction,
	v *models.Verdict,
	candles []models.Candle,
) error {
	var created *models.Signal
	err := c.dispatcher.exclusive(func() error {
		c.mu.Lock()
		live := c.running && gen == c.gen
		c.mu.Unlock()
		if !live {
			return nil
		}

		now := c.clock.Now()
		entryPrice, _ := models.LastClose(candles)
		sig := &models.Signal{
			ID:               uuid.NewString(),
			Pair:             pair,
			Direction:        dir,
			Timeframe:        tf,
			Confidence:       v.Confidence,
			EntryTime:        util.NextMinute(now),
			EntryPrice:       entryPrice,
			Strategy:         strategy,
			Source:           models.SourceAutomation,
			Factors:          append([]string(nil), v.Factors...),
			ProcessingStatus: models.ProcessingPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		var err error
		if created, err = c.writer.Create(ctx, sig); err != nil {
			return err
		}
		c.store.Add(created)
		c.store.SetCurrent(created)
		return nil
	})
	if errors.HasCode(err, errors.ErrCodeSignalConflict) {
		c.log.Info("verdict dropped, another signal opened first",
			logger.String("pair", pair),
			logger.String("direction", string(dir)))
		return nil
	}
	if err != nil || created == nil {
		return err
	}
	if c.metrics != nil {
		c.metrics.SignalOpened(models.SourceAutomation)
	}
	c.log.Info("signal opened",
		logger.String("signal_id", created.ID),
		logger.String("pair", created.Pair),
		logger.String("direction", string(created.Direction)),
		logger.Float64("confidence", created.Confidence),
		logger.Time("entry_time", created.EntryTime))
	emit(ctx, c.events, c.clock, models.Event{Type: models.EventSignalOpened, Signal: created})

	c.signalOpened(created)
	go c.resolver.Resolve(c.lifetime(), created, c.signalResolved)
	return nil
}

func (c *AutomationController) failure(gen uint64, err error) (time.Duration, bool) {
	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return 0, false
	}
	c.retries++
	retries := c.retries
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordError("analysis")
	}
	c.log.Warn("analysis step failed",
		logger.Int("retry", retries),
		logger.Error(err))

	if retries > c.cfg.MaxRetries {
		c.fail(gen, err)
		return 0, false
	}
	return linearDelay(c.cfg.RetryBackoff, retries), true
}

// fail stops the loop and reports err as terminal.
func (c *AutomationController) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.haltLocked()
	c.outbox = append(c.outbox, models.Event{
		Type:    models.EventAutomationError,
		Message: err.Error(),
		Time:    c.clock.Now(),
	})
	c.unlockAndFlush()

	c.log.Error("automation stopped", logger.Error(err))
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}

// awaitAdmin counts ticks spent with analysis switched off. Reaching the
// attempt ceiling is reported once; the loop keeps waiting for admin signals.
func (c *AutomationController) awaitAdmin(gen uint64) {
	err := errors.New(errors.ErrCodeSystemDisabled, "system in admin mode, waiting for the administrator")

	c.mu.Lock()
	if !c.running || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.attempts++
	report := c.attempts == c.cfg.MaxAttempts
	if report {
		c.outbox = append(c.outbox, models.Event{
			Type:    models.EventAutomationError,
			Message: err.Error(),
			Time:    c.clock.Now(),
		})
	}
	c.unlockAndFlush()

	if !report {
		return
	}
	c.log.Info("analysis disabled, waiting for admin signals", logger.Int("attempts", c.cfg.MaxAttempts))
	if c.hooks.OnError != nil {
		c.hooks.OnError(err)
	}
}

func (c *AutomationController) transition(gen uint64, s models.AutomationState) {
	c.mu.Lock()
	if gen == c.gen {
		c.setStateLocked(s)
	}
	c.unlockAndFlush()
}

func (c *AutomationController) signalOpened(s *models.Signal) {
	c.mu.Lock()
	c.attempts, c.retries = 0, 0
	c.setStateLocked(models.StateActive)
	c.unlockAndFlush()

	if c.hooks.OnOpened != nil {
		c.hooks.OnOpened(s)
	}
}

func (c *AutomationController) signalResolved(*models.Signal) {
	c.mu.Lock()
	switch {
	case c.store.Current() != nil:
	case !c.running:
		c.setStateLocked(models.StateIdle)
	default:
		c.attempts, c.retries = 0, 0
		c.gen++
		c.setStateLocked(models.StateSearching)
		c.armLocked(0)
	}
	c.unlockAndFlush()
}

// announceResolved receives terminal updates from the store, once per signal.
func (c *AutomationController) announceResolved(s *models.Signal) {
	c.log.Info("signal closed",
		logger.String("signal_id", s.ID),
		logger.String("source", string(s.Source)),
		logger.String("result", string(s.Result)),
		logger.Float64("profit_loss", s.ProfitLoss))
	if c.hooks.OnResolved != nil {
		c.hooks.OnResolved(s)
	}
}

func (c *AutomationController) systemChanged(enabled bool) {
	if !enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.store.Current() == nil {
		c.attempts = 0
		c.gen++
		c.armLocked(0)
	}
}
