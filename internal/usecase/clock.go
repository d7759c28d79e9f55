package usecase

import (
	"context"
	"time"

	"SignalDesk/pkg/util"
)

// Timer is a pending AfterFunc callback.
type Timer interface {
	Stop() bool
}

// Clock is the time source for every wait in the lifecycle engine.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return realClock{} }

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// sleep waits for d on clk or until ctx is done.
func sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}

// sleepUntil waits until clk reaches t.
func sleepUntil(ctx context.Context, clk Clock, t time.Time) error {
	return sleep(ctx, clk, util.UntilOrZero(clk.Now(), t))
}
