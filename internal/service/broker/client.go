package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"SignalDesk/internal/domain/repository"
	svcmetrics "SignalDesk/internal/service/metrics"
	"SignalDesk/internal/service/ratelimit"
	xerrors "SignalDesk/pkg/errors"
	xhttp "SignalDesk/pkg/http"
	applogger "SignalDesk/pkg/logger"

	"github.com/moznion/go-optional"
)

const lastPricePath = "/symbol-price/last"

type Config struct {
	BaseURL string
	APIKey  string
	Partner string
	Slot    string
	Timeout time.Duration
}

// Quote is the broker's bar for the minute ending at the requested instant.
type Quote struct {
	ClosePrice float64 `json:"closePrice"`
	OpenPrice  float64 `json:"openPrice"`
	HighPrice  float64 `json:"highPrice"`
	LowPrice   float64 `json:"lowPrice"`
	Volume     float64 `json:"volume"`
	Time       int64   `json:"time"`
}

// Client is the time-indexed price gateway.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger
	now     func() time.Time
}

func NewClient(cfg Config, limiter *ratelimit.Limiter, l *applogger.Logger) *Client {
	if cfg.Slot == "" {
		cfg.Slot = "default"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if limiter == nil {
		limiter = ratelimit.New(0, 0)
	}
	svcmetrics.Register()
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		limiter: limiter,
		log:     l.Component("broker"),
		now:     time.Now,
	}
}

// Symbol converts "BTC/USDT" to the broker's "BTCUSDT".
func Symbol(pair string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(pair)), "/", "")
}

// PriceAt returns the close price of the bar ending at the instant.
func (c *Client) PriceAt(ctx context.Context, pair string, at time.Time) (optional.Option[float64], error) {
	q, err := c.QuoteAt(ctx, pair, at)
	if err != nil {
		return optional.None[float64](), err
	}
	if q.IsNone() {
		return optional.None[float64](), nil
	}
	quote := q.Unwrap()
	if quote.ClosePrice <= 0 {
		return optional.None[float64](), nil
	}
	return optional.Some(quote.ClosePrice), nil
}

// QuoteAt fetches the full bar. A string body means the instant has not
// happened yet on the broker side; 400 and 404 mean there is no data.
func (c *Client) QuoteAt(ctx context.Context, pair string, at time.Time) (optional.Option[Quote], error) {
	symbol := Symbol(pair)
	if !c.limiter.Allow(symbol) {
		svcmetrics.UpstreamErrors.WithLabelValues("broker", "rate_limited").Inc()
		return optional.None[Quote](), xerrors.Newf(xerrors.ErrCodeRateLimited, "broker rate limit for %s", symbol)
	}

	start := time.Now()
	var raw []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + lastPricePath,
		Headers: map[string]string{
			"api-key":     c.cfg.APIKey,
			"x-partner":   c.cfg.Partner,
			"x-timestamp": strconv.FormatInt(c.now().UnixMilli(), 10),
		},
		QueryParams: map[string][]string{
			"pair":      {symbol},
			"slot":      {c.cfg.Slot},
			"limitTime": {strconv.FormatInt(at.UnixMilli(), 10)},
		},
	}, &raw)
	svcmetrics.UpstreamLatency.WithLabelValues("broker", lastPricePath).Observe(time.Since(start).Seconds())

	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusBadRequest {
				return optional.None[Quote](), nil
			}
			svcmetrics.UpstreamErrors.WithLabelValues("broker", "status").Inc()
			return optional.None[Quote](), xerrors.Wrapf(xerrors.ErrCodeUpstreamStatus, err, "broker status %d", se.StatusCode)
		}
		svcmetrics.UpstreamErrors.WithLabelValues("broker", "transport").Inc()
		return optional.None[Quote](), xerrors.Wrap(xerrors.ErrCodeUpstreamTransport, "broker request", err)
	}

	return c.decode(symbol, at, raw)
}

func (c *Client) decode(symbol string, at time.Time, raw []byte) (optional.Option[Quote], error) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return optional.None[Quote](), nil
	}
	if body[0] == '"' {
		c.log.Debug("price not ready", applogger.String("symbol", symbol), applogger.Time("at", at))
		return optional.None[Quote](), xerrors.Newf(xerrors.ErrCodePriceNotReady, "%s at %s is in the future", symbol, at.UTC().Format(time.RFC3339))
	}

	var q Quote
	if err := json.Unmarshal(body, &q); err != nil {
		svcmetrics.UpstreamErrors.WithLabelValues("broker", "decode").Inc()
		return optional.None[Quote](), xerrors.Wrap(xerrors.ErrCodeUpstreamStatus, "decode broker quote", err)
	}
	if q.Time == 0 {
		q.Time = at.UnixMilli()
	}
	return optional.Some(q), nil
}

var _ repository.PriceGateway = (*Client)(nil)
