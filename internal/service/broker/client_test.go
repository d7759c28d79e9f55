package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"SignalDesk/internal/service/ratelimit"
	xerrors "SignalDesk/pkg/errors"
	applogger "SignalDesk/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", APIKey: "key", Partner: "partner", Timeout: time.Second}, nil, applogger.Nop())
}

func TestPriceAtReturnsClosePrice(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, lastPricePath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("pair"))
		assert.Equal(t, "default", r.URL.Query().Get("slot"))
		assert.Equal(t, strconv.FormatInt(at.UnixMilli(), 10), r.URL.Query().Get("limitTime"))
		assert.Equal(t, "key", r.Header.Get("api-key"))
		assert.Equal(t, "partner", r.Header.Get("x-partner"))
		assert.NotEmpty(t, r.Header.Get("x-timestamp"))
		_, _ = w.Write([]byte(`{"closePrice":50125,"openPrice":50000,"highPrice":50200,"lowPrice":49900,"volume":12}`))
	})

	p, err := c.PriceAt(context.Background(), "btc/usdt", at)
	require.NoError(t, err)
	require.True(t, p.IsSome())
	require.Equal(t, 50125.0, p.Unwrap())
}

func TestPriceAtStringBodyIsNotReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"OK"`))
	})

	p, err := c.PriceAt(context.Background(), "BTC/USDT", time.Now().Add(time.Minute))
	require.True(t, xerrors.HasCode(err, xerrors.ErrCodePriceNotReady))
	require.True(t, p.IsNone())
}

func TestPriceAtMissingDataIsNone(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusBadRequest} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(code)
		})
		p, err := c.PriceAt(context.Background(), "BTC/USDT", time.Now())
		require.NoError(t, err)
		require.True(t, p.IsNone())
	}
}

func TestPriceAtServerErrorIsTransient(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := c.PriceAt(context.Background(), "BTC/USDT", time.Now())
	require.True(t, xerrors.HasCode(err, xerrors.ErrCodeUpstreamStatus))
	require.True(t, xerrors.IsTransient(err))
}

func TestPriceAtRateLimited(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"closePrice":1}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, ratelimit.New(1, 0), applogger.Nop())
	_, err := c.PriceAt(context.Background(), "BTC/USDT", time.Now())
	require.NoError(t, err)
	_, err = c.PriceAt(context.Background(), "BTC/USDT", time.Now())
	require.True(t, xerrors.HasCode(err, xerrors.ErrCodeRateLimited))
	require.Equal(t, 1, calls)
}

func TestSymbol(t *testing.T) {
	require.Equal(t, "BTCUSDT", Symbol(" btc/usdt "))
}
