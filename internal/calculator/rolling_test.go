package calculator

import (
	"math"
	"testing"

	"github.com/markcheno/go-talib"
)

func seq(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRolling_MinPeriodsPolicy(t *testing.T) {
	x := seq(30, func(i int) float64 { return 100 + float64(i%7) })
	for _, w := range []int{1, 2, 5, 20} {
		full := MustRolling(w, Full)
		mean := full.Mean(x)
		std := full.Std(x)
		for i := range x {
			if i < w-1 {
				if !math.IsNaN(mean[i]) {
					t.Errorf("w=%d full mean[%d] = %v, want NaN", w, i, mean[i])
				}
				continue
			}
			if math.IsNaN(mean[i]) {
				t.Errorf("w=%d full mean[%d] undefined", w, i)
			}
			if w > 1 && math.IsNaN(std[i]) {
				t.Errorf("w=%d full std[%d] undefined", w, i)
			}
		}

		partial := MustRolling(w, Partial)
		pm := partial.Mean(x)
		for i := range x {
			if math.IsNaN(pm[i]) {
				t.Errorf("w=%d partial mean[%d] undefined", w, i)
			}
		}
	}
}

func TestRolling_StdSinglePointUndefined(t *testing.T) {
	x := []float64{10, 12, 14}
	std := MustRolling(3, Partial).Std(x)
	if !math.IsNaN(std[0]) {
		t.Errorf("std[0] = %v, want NaN for a single point", std[0])
	}
	if !almostEqual(std[1], math.Sqrt(2)) {
		t.Errorf("std[1] = %v, want %v", std[1], math.Sqrt(2))
	}
	if !almostEqual(std[2], 2) {
		t.Errorf("std[2] = %v, want 2", std[2])
	}

	if got := MustRolling(1, Full).Std(x); !math.IsNaN(got[2]) {
		t.Errorf("window 1 std = %v, want NaN", got[2])
	}
}

func TestRolling_SumMinMax(t *testing.T) {
	x := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	r := MustRolling(3, Partial)

	tests := []struct {
		name string
		got  []float64
		want []float64
	}{
		{"sum", r.Sum(x), []float64{3, 4, 8, 6, 10, 15, 16, 17}},
		{"min", r.Min(x), []float64{3, 1, 1, 1, 1, 1, 2, 2}},
		{"max", r.Max(x), []float64{3, 3, 4, 4, 5, 9, 9, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.want {
				if !almostEqual(tt.got[i], tt.want[i]) {
					t.Errorf("%s[%d] = %v, want %v", tt.name, i, tt.got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRolling_NaNPropagates(t *testing.T) {
	x := []float64{math.NaN(), 1, 2, 3, 4}
	got := MustRolling(2, Partial).Mean(x)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Errorf("windows touching NaN should be NaN, got %v", got[:2])
	}
	if !almostEqual(got[2], 1.5) {
		t.Errorf("mean[2] = %v, want 1.5", got[2])
	}
}

func TestRolling_MeanMatchesTalib(t *testing.T) {
	x := seq(60, func(i int) float64 { return 50 + 10*math.Sin(float64(i)/5) })
	w := 20
	ours := MustRolling(w, Full).Mean(x)
	ref := talib.Sma(x, w)
	for i := w - 1; i < len(x); i++ {
		if math.Abs(ours[i]-ref[i]) > 1e-6 {
			t.Fatalf("mean[%d] = %v, talib = %v", i, ours[i], ref[i])
		}
	}
}

func TestNewRolling_Invalid(t *testing.T) {
	if _, err := NewRolling(0, Full); err == nil {
		t.Error("expected error for zero window")
	}
	if _, err := NewRolling(5, Policy("sometimes")); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestEMA(t *testing.T) {
	x := []float64{10, 20, 30}
	got := EMA(x, 3) // alpha = 0.5
	want := []float64{10, 15, 22.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("ema[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if len(EMA(nil, 5)) != 0 {
		t.Error("expected empty output for empty input")
	}
}

func TestFirstDefined(t *testing.T) {
	nan := math.NaN()
	if got := FirstDefined([]float64{nan, nan, 3}); got != 2 {
		t.Errorf("FirstDefined = %d, want 2", got)
	}
	if got := FirstDefined([]float64{nan}); got != 1 {
		t.Errorf("FirstDefined = %d, want 1", got)
	}
}
