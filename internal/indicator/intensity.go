package indicator

import (
	"math"

	"BandSentinel/internal/calculator"
)

// intradayIntensity is zero for bars with no range.
func intradayIntensity(high, low, close, volume []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		rng := high[i] - low[i]
		if rng == 0 {
			continue
		}
		out[i] = (2*close[i] - high[i] - low[i]) / rng * volume[i]
	}
	return out
}

// intradayIntensityPct is the rolling intensity sum as a percentage of the
// rolling volume. Windows are partial, as for MFI, so the result is NaN only
// where the volume sum is zero.
func intradayIntensityPct(high, low, close, volume []float64, window int) []float64 {
	r := calculator.MustRolling(window, calculator.Partial)
	ii := r.Sum(intradayIntensity(high, low, close, volume))
	vol := r.Sum(volume)
	out := make([]float64, len(close))
	for i := range out {
		if math.IsNaN(ii[i]) || math.IsNaN(vol[i]) || vol[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = ii[i] / vol[i] * 100
	}
	return out
}
