package analytics

import (
	"context"
	"strings"

	"SignalDesk/internal/domain/models"
	domsvc "SignalDesk/internal/domain/service"
	"SignalDesk/internal/services/features"
	xerrors "SignalDesk/pkg/errors"
)

// HTTPAnalyzer delegates technical analysis to the indicator service.
type HTTPAnalyzer struct {
	base      *HTTPServiceBase
	attempts  int
	timeframe func() int
}

// NewHTTPAnalyzer builds the analyzer. timeframe reports the current
// market timeframe in minutes for the feature summary; when nil it is read
// off the candle spacing.
func NewHTTPAnalyzer(base *HTTPServiceBase, attempts int, timeframe func() int) *HTTPAnalyzer {
	return &HTTPAnalyzer{base: base, attempts: attempts, timeframe: timeframe}
}

type analyzeReq struct {
	Pair     string           `json:"pair"`
	Strategy string           `json:"strategy"`
	Candles  []models.Candle  `json:"candles"`
	Features features.Summary `json:"features"`
}

type analyzeResp struct {
	Confidence float64  `json:"confidence"`
	Direction  string   `json:"direction"`
	Factors    []string `json:"factors"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, pair string, candles []models.Candle, strategy string) (*models.Verdict, error) {
	if len(candles) == 0 {
		return nil, xerrors.Newf(xerrors.ErrCodeNoCandles, "no candles for %s", pair)
	}

	var resp analyzeResp
	req := analyzeReq{
		Pair:     pair,
		Strategy: strategy,
		Candles:  candles,
		Features: features.Summarize(candles, a.minutes(candles)),
	}
	if err := a.base.PostJSONWithRetry(ctx, "/analyze", req, &resp, a.attempts); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCodeAnalysisFailed, "analyze", err)
	}

	v := &models.Verdict{Confidence: resp.Confidence, Factors: resp.Factors}
	switch models.Trend(strings.ToLower(resp.Direction)) {
	case models.TrendUp:
		v.Direction = models.TrendUp
	case models.TrendDown:
		v.Direction = models.TrendDown
	default:
		v.Direction = models.TrendNeutral
	}
	return v, nil
}

func (a *HTTPAnalyzer) minutes(candles []models.Candle) int {
	if a.timeframe != nil {
		return a.timeframe()
	}
	if n := len(candles); n >= 2 {
		if m := int(candles[n-1].Bucket.Sub(candles[n-2].Bucket).Minutes()); m > 0 {
			return m
		}
	}
	return 1
}

var _ domsvc.Analyzer = (*HTTPAnalyzer)(nil)
