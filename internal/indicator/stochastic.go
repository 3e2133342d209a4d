package indicator

import (
	"math"

	"BandSentinel/internal/calculator"
)

// stochasticK places close within the highest high and lowest low of the
// window, which always uses partial windows. A flat range gives 50.
func stochasticK(high, low, close []float64, window int) []float64 {
	r := calculator.MustRolling(window, calculator.Partial)
	highest, lowest := r.Max(high), r.Min(low)
	out := make([]float64, len(close))
	for i := range out {
		rng := highest[i] - lowest[i]
		switch {
		case math.IsNaN(rng):
			out[i] = math.NaN()
		case rng == 0:
			out[i] = 50
		default:
			out[i] = (close[i] - lowest[i]) / rng * 100
		}
	}
	return out
}
