package calculator

// EMA computes the exponential moving average with alpha = 2/(span+1),
// seeded by the first value and defined from the first point onward.
func EMA(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = alpha*x[i] + (1-alpha)*out[i-1]
	}
	return out
}
