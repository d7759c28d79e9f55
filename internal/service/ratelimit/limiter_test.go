package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(2, 1)
	l.now = func() time.Time { return now }

	require.True(t, l.Allow("BTCUSDT"))
	require.True(t, l.Allow("BTCUSDT"))
	require.False(t, l.Allow("BTCUSDT"))
	require.True(t, l.Allow("ETHUSDT"))

	now = now.Add(time.Second)
	require.True(t, l.Allow("BTCUSDT"))
	require.False(t, l.Allow("BTCUSDT"))
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow("k"))
	}
}
