package repository

import (
	"fmt"
	"time"
)

// Timeframe is a candle resolution in minutes.
type Timeframe int

const (
	TF1m  Timeframe = 1
	TF5m  Timeframe = 5
	TF15m Timeframe = 15
	TF30m Timeframe = 30
	TF1h  Timeframe = 60
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF30m, TF1h:
		return true
	default:
		return false
	}
}

func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe converts minutes to a supported timeframe, falling
// back to the default.
func NormalizeTimeframe(minutes int) Timeframe {
	tf := Timeframe(minutes)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

func (tf Timeframe) Duration() time.Duration { return time.Duration(tf) * time.Minute }

func (tf Timeframe) String() string {
	if tf == TF1h {
		return "1h"
	}
	return fmt.Sprintf("%dm", int(tf))
}
