package usecase

import (
	"testing"

	"SignalDesk/internal/domain/models"
	"SignalDesk/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOutcome(t *testing.T) {
	tests := []struct {
		name   string
		dir    models.Direction
		entry  float64
		exit   float64
		result models.Result
		pl     float64
	}{
		{"buy up wins", models.DirectionBuy, 50000, 50125, models.ResultWin, 0.25},
		{"buy down loses", models.DirectionBuy, 50000, 49875, models.ResultLoss, 0.25},
		{"sell up loses", models.DirectionSell, 100, 101, models.ResultLoss, 1.0},
		{"sell down wins", models.DirectionSell, 100, 99, models.ResultWin, 1.0},
		{"tie loses buy", models.DirectionBuy, 100, 100, models.ResultLoss, 0},
		{"tie loses sell", models.DirectionSell, 100, 100, models.ResultLoss, 0},
		{"rounded to four places", models.DirectionBuy, 3, 4, models.ResultWin, 33.3333},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ComputeOutcome(tt.dir, tt.entry, tt.exit)
			require.NoError(t, err)
			assert.Equal(t, tt.result, out.Result)
			assert.Equal(t, tt.pl, out.ProfitLoss)
			assert.Equal(t, tt.entry, out.EntryPrice)
			assert.Equal(t, tt.exit, out.ExitPrice)
		})
	}
}

func TestComputeOutcomeRejectsBadInput(t *testing.T) {
	_, err := ComputeOutcome(models.DirectionBuy, 0, 1)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = ComputeOutcome(models.Direction("hold"), 1, 1)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidDirection))
}
