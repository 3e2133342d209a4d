// Package calculator provides windowed statistics over numeric sequences.
//
// All functions return a new slice of the same length as the input. A position
// whose window holds fewer than MinPeriods points, or any NaN, is NaN.
package calculator

import (
	"errors"
	"math"
)

// Policy selects how many points a window needs before it yields a value.
type Policy string

const (
	// Full requires a complete window (min periods = window).
	Full Policy = "full"
	// Partial yields a value from the first point onward (min periods = 1).
	Partial Policy = "partial"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool { return p == Full || p == Partial }

// Rolling describes a trailing window over a sequence.
type Rolling struct {
	Window     int
	MinPeriods int
}

// NewRolling creates a Rolling for window w under policy p.
func NewRolling(w int, p Policy) (Rolling, error) {
	if w < 1 {
		return Rolling{}, errors.New("window must be positive")
	}
	switch p {
	case Full:
		return Rolling{Window: w, MinPeriods: w}, nil
	case Partial:
		return Rolling{Window: w, MinPeriods: 1}, nil
	default:
		return Rolling{}, errors.New("unknown min periods policy: " + string(p))
	}
}

// MustRolling is NewRolling for windows known to be valid.
func MustRolling(w int, p Policy) Rolling {
	r, err := NewRolling(w, p)
	if err != nil {
		panic(err)
	}
	return r
}

// Mean computes the rolling arithmetic mean.
func (r Rolling) Mean(x []float64) []float64 {
	return r.apply(x, func(win []float64) float64 {
		return sum(win) / float64(len(win))
	})
}

// Std computes the rolling sample standard deviation (n-1 denominator).
// A window with a single point is undefined.
func (r Rolling) Std(x []float64) []float64 {
	return r.apply(x, func(win []float64) float64 {
		n := len(win)
		if n < 2 {
			return math.NaN()
		}
		mean := sum(win) / float64(n)
		variance := 0.0
		for _, v := range win {
			d := v - mean
			variance += d * d
		}
		return math.Sqrt(variance / float64(n-1))
	})
}

// Sum computes the rolling sum.
func (r Rolling) Sum(x []float64) []float64 {
	return r.apply(x, sum)
}

func (r Rolling) apply(x []float64, stat func([]float64) float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		start := i - r.Window + 1
		if start < 0 {
			start = 0
		}
		win := x[start : i+1]
		if len(win) < r.MinPeriods || hasNaN(win) {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat(win)
	}
	return out
}

func sum(win []float64) float64 {
	s := 0.0
	for _, v := range win {
		s += v
	}
	return s
}

func hasNaN(win []float64) bool {
	for _, v := range win {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

// FirstDefined returns the index of the first non-NaN value, or len(x) if none.
func FirstDefined(x []float64) int {
	for i, v := range x {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(x)
}
