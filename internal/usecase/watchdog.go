package usecase

import (
	"context"

	"SignalDesk/pkg/logger"
)

// RunWatchdog resolves the current signal when it outlives its expiry by
// more than the margin and no resolution is running for it.
func (c *AutomationController) RunWatchdog(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.cfg.WatchdogInterval):
			c.CheckOverdue(ctx)
		}
	}
}

// CheckOverdue is one watchdog pass. It reports whether it started a
// resolution.
func (c *AutomationController) CheckOverdue(ctx context.Context) bool {
	cur := c.store.Current()
	if cur == nil || cur.IsResolved() {
		return false
	}
	if !c.clock.Now().After(cur.ExpiresAt().Add(c.cfg.WatchdogMargin)) {
		return false
	}
	if c.resolver.InFlight(cur.ID) {
		return false
	}
	c.log.Warn("signal overdue, forcing resolution",
		logger.String("signal_id", cur.ID),
		logger.Time("expires_at", cur.ExpiresAt()))
	go c.resolver.Resolve(ctx, cur, c.signalResolved)
	return true
}
