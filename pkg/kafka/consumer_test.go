package kafka

import (
	"context"
	"testing"
	"time"

	applogger "SignalDesk/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestBackoffWithJitterStaysInRange(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 2*time.Second)
	}
}

func TestLoggingHookExtractsTraceID(t *testing.T) {
	h := LoggingHook{Log: applogger.Nop(), Slow: time.Second}
	msg := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}

	ctx, _, data, err := h.BeforeHandle(context.Background(), "admin-signals", msg, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, "abc", TraceID(ctx))
	require.Equal(t, []byte("x"), data)
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	_, err := NewConsumer()
	require.Error(t, err)
}
