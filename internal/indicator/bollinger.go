package indicator

import "math"

// bollinger returns ma + k*std.
func bollinger(ma, std []float64, k float64) []float64 {
	out := make([]float64, len(ma))
	for i := range ma {
		out[i] = ma[i] + k*std[i]
	}
	return out
}

// percentB locates close within the bands. It is NaN where the band width is
// zero or either band is undefined, and is not clamped to [0, 1].
func percentB(close, upper, lower []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		width := upper[i] - lower[i]
		if math.IsNaN(width) || width == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (close[i] - lower[i]) / width
	}
	return out
}
