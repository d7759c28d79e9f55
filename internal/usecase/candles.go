package usecase

import (
	"context"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/pkg/errors"

	"github.com/moznion/go-optional"
)

const (
	defaultCandleLimit = 200
	maxCandleLimit     = 5000
)

// CandleService reads OHLC history for analysis and price fallbacks.
type CandleService struct {
	store domrepo.CandleSource
}

func NewCandleService(store domrepo.CandleSource) *CandleService {
	return &CandleService{store: store}
}

// FetchCandles returns the newest limit candles of pair, oldest first.
func (uc *CandleService) FetchCandles(ctx context.Context, pair string, timeframe, limit int) ([]models.Candle, error) {
	pair = NormalizePair(pair)
	if pair == "" {
		return nil, errors.New(errors.ErrCodeInvalidPair, "pair required")
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}

	candles, err := uc.store.GetLatestNCandles(ctx, pair, limit, domrepo.NormalizeTimeframe(timeframe))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "candles for %s", pair)
	}
	if len(candles) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoCandles, "no candles for %s", pair)
	}
	return candles, nil
}

// LatestClose is the close of the newest candle, None when there is none.
func (uc *CandleService) LatestClose(ctx context.Context, pair string, timeframe int) (optional.Option[float64], error) {
	candles, err := uc.store.GetLatestNCandles(ctx, NormalizePair(pair), 1, domrepo.NormalizeTimeframe(timeframe))
	if err != nil {
		return optional.None[float64](), errors.Wrapf(errors.ErrCodeQueryFailed, err, "latest close for %s", pair)
	}
	if c, ok := models.LastClose(candles); ok {
		return optional.Some(c), nil
	}
	return optional.None[float64](), nil
}
