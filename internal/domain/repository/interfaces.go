package repository

import (
	"context"
	"time"

	"SignalDesk/internal/domain/models"

	"github.com/moznion/go-optional"
)

// SignalRepository persists signals. UpdateSignalResult only writes when
// the stored signal has no result yet and reports whether it did.
type SignalRepository interface {
	CreateSignal(ctx context.Context, s *models.Signal) (*models.Signal, error)
	GetSignalByID(ctx context.Context, id string) (*models.Signal, error)
	UpdateSignalResult(ctx context.Context, id string, out models.Outcome) (bool, error)
	GetPendingSignals(ctx context.Context) ([]*models.Signal, error)
	GetAllSignals(ctx context.Context, limit int) ([]*models.Signal, error)
}

// AdminSignalRepository persists operator-scheduled signals. The Mark
// methods only move a pending row and report whether this call moved it;
// ReopenAdminSignal moves an executed row back to pending.
type AdminSignalRepository interface {
	GetAdminSignals(ctx context.Context, f models.AdminSignalFilter) ([]*models.AdminSignal, error)
	GetAdminSignalByID(ctx context.Context, id string) (*models.AdminSignal, error)
	MarkAdminSignalExecuted(ctx context.Context, id string) (bool, error)
	MarkAdminSignalExpired(ctx context.Context, id string) (bool, error)
	ReopenAdminSignal(ctx context.Context, id string) (bool, error)
	CreateAdminSignal(ctx context.Context, a *models.AdminSignal) error
	DeleteAdminSignal(ctx context.Context, id string) error
}

type SettingsRepository interface {
	GetSystemEnabled(ctx context.Context) (bool, error)
	SetSystemEnabled(ctx context.Context, enabled bool) error
}

// CandleSource returns the newest n candles of a pair, oldest first.
type CandleSource interface {
	GetLatestNCandles(ctx context.Context, pair string, n int, tf Timeframe) ([]models.Candle, error)
}

// PriceGateway returns the point price of a pair at an instant. An error
// coded ErrCodePriceNotReady means the instant is still in the future; None
// means the gateway has no price for it.
type PriceGateway interface {
	PriceAt(ctx context.Context, pair string, at time.Time) (optional.Option[float64], error)
}

// AdminSignalStream is a push channel of admin signal inserts and updates.
type AdminSignalStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.AdminSignal, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type EventPublisher interface {
	Publish(ctx context.Context, e models.Event) error
}

// SignalArchive stores resolved signals for analytics.
type SignalArchive interface {
	Archive(ctx context.Context, s *models.Signal) error
}

type Notifier interface {
	SignalResolved(ctx context.Context, s *models.Signal) error
	SignalFailed(ctx context.Context, s *models.Signal, reason string) error
}

// SystemSwitch is the global enable flag.
type SystemSwitch interface {
	IsSystemEnabled(ctx context.Context) bool
	Subscribe(fn func(enabled bool)) (unsubscribe func())
}

type Metrics interface {
	SignalOpened(source models.Source)
	SignalResolved(result models.Result, forced bool)
	PriceLookup(outcome string)
	FallbackUsed(kind string)
	AutomationState(state models.AutomationState)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
