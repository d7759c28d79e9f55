package service

import (
	"context"

	"SignalDesk/internal/domain/models"
)

// Analyzer turns a candle series into a directional verdict.
type Analyzer interface {
	Analyze(ctx context.Context, pair string, candles []models.Candle, strategy string) (*models.Verdict, error)
}
