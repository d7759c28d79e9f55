package features

import (
	"math"

	"SignalDesk/internal/domain/models"
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(candles)-1, or nil if insufficient data.
func ComputeLogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		cur := candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility is the annualized standard deviation of the last
// window returns.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear for a timeframe in minutes.
func BarsPerYear(minutes int) float64 {
	if minutes <= 0 {
		minutes = 1
	}
	return 365 * 24 * 60 / float64(minutes)
}

// Summary is a compact description of a candle series sent along with the
// raw candles so the analyzer does not recompute basics.
type Summary struct {
	LastClose   float64 `json:"last_close"`
	Return1     float64 `json:"return_1"`
	Return5     float64 `json:"return_5"`
	RealizedVol float64 `json:"realized_vol_20"`
	RangePct    float64 `json:"range_pct_20"`
	Bars        int     `json:"bars"`
}

// Summarize builds a Summary from candles ordered oldest first.
func Summarize(candles []models.Candle, minutes int) Summary {
	s := Summary{Bars: len(candles)}
	if len(candles) == 0 {
		return s
	}
	s.LastClose = candles[len(candles)-1].Close

	rets := ComputeLogReturns(candles)
	if n := len(rets); n > 0 {
		s.Return1 = rets[n-1]
		for i := n - 1; i >= 0 && i >= n-5; i-- {
			s.Return5 += rets[i]
		}
	}
	s.RealizedVol = RealizedVolatility(rets, 20, BarsPerYear(minutes))

	window := candles
	if len(window) > 20 {
		window = window[len(window)-20:]
	}
	hi, lo := window[0].High, window[0].Low
	for _, c := range window[1:] {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	if s.LastClose > 0 {
		s.RangePct = (hi - lo) / s.LastClose * 100
	}
	return s
}
