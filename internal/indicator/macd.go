package indicator

// subtract returns a - b element-wise. MACD is ema60 - ema130 and the
// histogram is macd - signal.
func subtract(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
