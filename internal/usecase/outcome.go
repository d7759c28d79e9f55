package usecase

import (
	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/errors"

	"github.com/shopspring/decimal"
)

// ComputeOutcome applies the win rule: a buy wins when exit > entry, a sell
// wins when exit < entry, equality loses. ProfitLoss is |exit-entry|/entry
// in percent, rounded to 4 places.
func ComputeOutcome(dir models.Direction, entry, exit float64) (models.Outcome, error) {
	if entry <= 0 {
		return models.Outcome{}, errors.Newf(errors.ErrCodeInvalidParameter, "entry price must be positive, got %v", entry)
	}
	if exit <= 0 {
		return models.Outcome{}, errors.Newf(errors.ErrCodeInvalidParameter, "exit price must be positive, got %v", exit)
	}

	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)

	var win bool
	switch dir {
	case models.DirectionBuy:
		win = x.GreaterThan(e)
	case models.DirectionSell:
		win = x.LessThan(e)
	default:
		return models.Outcome{}, errors.Newf(errors.ErrCodeInvalidDirection, "unknown direction %q", dir)
	}

	pl, _ := x.Sub(e).Div(e).Abs().Mul(decimal.NewFromInt(100)).Round(4).Float64()

	out := models.Outcome{EntryPrice: entry, ExitPrice: exit, Result: models.ResultLoss, ProfitLoss: pl}
	if win {
		out.Result = models.ResultWin
	}
	return out, nil
}

// forcedLoss is recorded when evaluation fails for any reason.
func forcedLoss(sig *models.Signal) models.Outcome {
	return models.Outcome{
		EntryPrice: sig.EntryPrice,
		ExitPrice:  sig.EntryPrice,
		Result:     models.ResultLoss,
		ProfitLoss: 0,
	}
}
