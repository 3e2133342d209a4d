package calculator

import "math"

// Max computes the rolling maximum.
func (r Rolling) Max(x []float64) []float64 {
	return r.apply(x, func(win []float64) float64 {
		high := math.Inf(-1)
		for _, v := range win {
			if v > high {
				high = v
			}
		}
		return high
	})
}

// Min computes the rolling minimum.
func (r Rolling) Min(x []float64) []float64 {
	return r.apply(x, func(win []float64) float64 {
		low := math.Inf(1)
		for _, v := range win {
			if v < low {
				low = v
			}
		}
		return low
	})
}
