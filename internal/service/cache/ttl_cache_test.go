package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTTLCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTTLCache[float64]().WithClock(func() time.Time { return now })

	c.Set("BTCUSDT:1704067200000", 50000, 5*time.Second)
	c.Set("forever", 1, 0)

	v, ok := c.Get("BTCUSDT:1704067200000")
	require.True(t, ok)
	require.Equal(t, 50000.0, v)

	now = now.Add(6 * time.Second)
	_, ok = c.Get("BTCUSDT:1704067200000")
	require.False(t, ok)
	_, ok = c.Get("forever")
	require.True(t, ok)
	require.Equal(t, 1, c.Purge())
}
