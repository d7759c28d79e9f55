package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/logger"
)

const defaultSettingsPoll = 5 * time.Second

// SystemSettings serves the global enable flag from the settings table. The
// last value read is kept so a database outage never flips the flag; before
// the first read it is enabled.
type SystemSettings struct {
	repo     domrepo.SettingsRepository
	clock    Clock
	log      *logger.Logger
	interval time.Duration

	enabled atomic.Bool

	mu   sync.Mutex
	subs map[int]func(bool)
	next int
}

func NewSystemSettings(repo domrepo.SettingsRepository, interval time.Duration, clk Clock, log *logger.Logger) *SystemSettings {
	if clk == nil {
		clk = SystemClock()
	}
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = defaultSettingsPoll
	}
	s := &SystemSettings{
		repo:     repo,
		clock:    clk,
		log:      log.Component("system_settings"),
		interval: interval,
		subs:     make(map[int]func(bool)),
	}
	s.enabled.Store(true)
	return s
}

func (s *SystemSettings) IsSystemEnabled(ctx context.Context) bool {
	v, err := s.repo.GetSystemEnabled(ctx)
	if err != nil {
		s.log.Warn("reading system flag failed, using cached value",
			logger.Bool("cached", s.enabled.Load()),
			logger.Error(err))
		return s.enabled.Load()
	}
	s.set(v)
	return v
}

// Cached returns the last known value without touching the database.
func (s *SystemSettings) Cached() bool { return s.enabled.Load() }

// SetEnabled writes the flag and notifies subscribers on change.
func (s *SystemSettings) SetEnabled(ctx context.Context, enabled bool) error {
	if err := s.repo.SetSystemEnabled(ctx, enabled); err != nil {
		return err
	}
	s.set(enabled)
	return nil
}

func (s *SystemSettings) Subscribe(fn func(enabled bool)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Run re-reads the flag on every interval so changes made by other
// instances reach subscribers.
func (s *SystemSettings) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.interval):
			s.IsSystemEnabled(ctx)
		}
	}
}

func (s *SystemSettings) set(v bool) {
	if s.enabled.Swap(v) == v {
		return
	}
	s.log.Info("system flag changed", logger.Bool("enabled", v))

	s.mu.Lock()
	fns := make([]func(bool), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

var _ domrepo.SystemSwitch = (*SystemSettings)(nil)
