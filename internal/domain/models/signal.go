package models

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// ParseDirection accepts buy/sell in any case.
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case DirectionBuy:
		return DirectionBuy, true
	case DirectionSell:
		return DirectionSell, true
	}
	return "", false
}

// Result is empty until the signal is resolved.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
)

func (r Result) Terminal() bool { return r == ResultWin || r == ResultLoss }

type Source string

const (
	SourceAutomation Source = "automation"
	SourceAdmin      Source = "admin"
)

type ProcessingStatus string

const (
	ProcessingPending   ProcessingStatus = "pending"
	ProcessingCompleted ProcessingStatus = "completed"
)

// Signal is one time-boxed directional call.
type Signal struct {
	ID               string           `json:"id"`
	Pair             string           `json:"pair"`
	Direction        Direction        `json:"direction"`
	Timeframe        int              `json:"timeframe"`
	Confidence       float64          `json:"confidence"`
	EntryTime        time.Time        `json:"entryTime"`
	EntryPrice       float64          `json:"entryPrice"`
	ExitPrice        float64          `json:"exitPrice,omitempty"`
	Result           Result           `json:"result,omitempty"`
	ProfitLoss       float64          `json:"profitLoss"`
	Strategy         string           `json:"strategy,omitempty"`
	Source           Source           `json:"source"`
	AdminSignalID    string           `json:"adminSignalId,omitempty"`
	Factors          []string         `json:"factors,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

func (s *Signal) IsResolved() bool { return s.Result.Terminal() }

// ExpiresAt is the instant the exit price is measured at.
func (s *Signal) ExpiresAt() time.Time {
	return s.EntryTime.Add(time.Duration(s.Timeframe) * time.Minute)
}

// Clone returns a deep copy so callers never share the factors slice.
func (s *Signal) Clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	if s.Factors != nil {
		c.Factors = append([]string(nil), s.Factors...)
	}
	return &c
}

// Outcome is what the result resolver persists for a signal.
type Outcome struct {
	EntryPrice float64
	ExitPrice  float64
	Result     Result
	ProfitLoss float64
}

// Apply copies the outcome onto s and marks it completed.
func (o Outcome) Apply(s *Signal) {
	s.EntryPrice = o.EntryPrice
	s.ExitPrice = o.ExitPrice
	s.Result = o.Result
	s.ProfitLoss = o.ProfitLoss
	s.ProcessingStatus = ProcessingCompleted
}
