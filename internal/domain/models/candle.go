package models

import "time"

// Candle is one OHLCV bar.
type Candle struct {
	Bucket time.Time `json:"time"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// LastClose returns the close of the newest candle; candles are ordered
// oldest first.
func LastClose(candles []Candle) (float64, bool) {
	if len(candles) == 0 {
		return 0, false
	}
	c := candles[len(candles)-1].Close
	return c, c > 0
}
