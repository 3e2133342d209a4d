package indicator

import (
	"math"

	"BandSentinel/internal/calculator"
)

// moneyFlow splits raw money flow (typical price x volume) by the direction
// of the typical price against the previous bar. Bar 0 and unchanged bars
// count on neither side.
func moneyFlow(high, low, close, volume []float64) (pos, neg []float64) {
	n := len(close)
	pos = make([]float64, n)
	neg = make([]float64, n)
	var prev float64
	for i := 0; i < n; i++ {
		tp := (low[i] + close[i] + high[i]) / 3
		if i > 0 {
			switch mf := tp * volume[i]; {
			case tp > prev:
				pos[i] = mf
			case tp < prev:
				neg[i] = mf
			}
		}
		prev = tp
	}
	return pos, neg
}

// moneyFlowIndex always uses partial windows. When the negative sum is zero
// the index saturates to 100, or to 50 if the positive sum is zero as well.
func moneyFlowIndex(high, low, close, volume []float64, window int) []float64 {
	pos, neg := moneyFlow(high, low, close, volume)
	r := calculator.MustRolling(window, calculator.Partial)
	posSum, negSum := r.Sum(pos), r.Sum(neg)

	out := make([]float64, len(close))
	for i := range out {
		p, n := posSum[i], negSum[i]
		switch {
		case math.IsNaN(p) || math.IsNaN(n):
			out[i] = math.NaN()
		case n == 0 && p == 0:
			out[i] = 50
		case n == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+p/n)
		}
	}
	return out
}
