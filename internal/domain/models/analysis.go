package models

type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Verdict is the technical analysis outcome for a candle series.
type Verdict struct {
	Confidence float64  `json:"confidence"`
	Direction  Trend    `json:"direction"`
	Factors    []string `json:"factors"`
}

// SignalDirection maps a trend to a trade direction; neutral has none.
func (v *Verdict) SignalDirection() (Direction, bool) {
	switch v.Direction {
	case TrendUp:
		return DirectionBuy, true
	case TrendDown:
		return DirectionSell, true
	}
	return "", false
}
