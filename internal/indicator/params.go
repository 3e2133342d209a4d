package indicator

import (
	"fmt"
	"sort"

	"BandSentinel/internal/calculator"
	"BandSentinel/internal/model"
)

// Params holds the window sizes used by the indicator computations.
type Params struct {
	BBWindow    int     `yaml:"bb_window"`
	BBK         float64 `yaml:"bb_k"`
	MFIWindow   int     `yaml:"mfi_window"`
	IIWindow    int     `yaml:"ii_window"`
	EMAFast     int     `yaml:"ema_fast"`
	EMASlow     int     `yaml:"ema_slow"`
	SignalSpan  int     `yaml:"signal_span"`
	StochWindow int     `yaml:"stoch_window"`
	StochSmooth int     `yaml:"stoch_smooth"`
}

// DefaultParams returns the conventional windows: 20-day bands at 2 sigma,
// 10-day MFI, 21-day II%, 60/130/45 MACD and a 14/3 stochastic.
func DefaultParams() Params {
	return Params{
		BBWindow:    20,
		BBK:         2,
		MFIWindow:   10,
		IIWindow:    21,
		EMAFast:     60,
		EMASlow:     130,
		SignalSpan:  45,
		StochWindow: 14,
		StochSmooth: 3,
	}
}

// WithDefaults fills zero fields from DefaultParams.
func (p Params) WithDefaults() Params {
	d := DefaultParams()
	if p.BBWindow == 0 {
		p.BBWindow = d.BBWindow
	}
	if p.BBK == 0 {
		p.BBK = d.BBK
	}
	if p.MFIWindow == 0 {
		p.MFIWindow = d.MFIWindow
	}
	if p.IIWindow == 0 {
		p.IIWindow = d.IIWindow
	}
	if p.EMAFast == 0 {
		p.EMAFast = d.EMAFast
	}
	if p.EMASlow == 0 {
		p.EMASlow = d.EMASlow
	}
	if p.SignalSpan == 0 {
		p.SignalSpan = d.SignalSpan
	}
	if p.StochWindow == 0 {
		p.StochWindow = d.StochWindow
	}
	if p.StochSmooth == 0 {
		p.StochSmooth = d.StochSmooth
	}
	return p
}

// Validate checks that every window is usable.
func (p Params) Validate() error {
	windows := []struct {
		name string
		v    int
	}{
		{"bb_window", p.BBWindow},
		{"mfi_window", p.MFIWindow},
		{"ii_window", p.IIWindow},
		{"ema_fast", p.EMAFast},
		{"ema_slow", p.EMASlow},
		{"signal_span", p.SignalSpan},
		{"stoch_window", p.StochWindow},
		{"stoch_smooth", p.StochSmooth},
	}
	for _, w := range windows {
		if w.v < 1 {
			return fmt.Errorf("%s must be positive, got %d", w.name, w.v)
		}
	}
	if p.BBK <= 0 {
		return fmt.Errorf("bb_k must be positive, got %v", p.BBK)
	}
	return nil
}

// Request names the series to compute and how to compute them.
type Request struct {
	Indicators []string
	MinPeriods calculator.Policy
	Params     Params
}

// dependencies lists the series each indicator is derived from.
var dependencies = map[string][]string{
	model.MA:       nil,
	model.StdDev:   nil,
	model.UpperBB:  {model.MA, model.StdDev},
	model.LowerBB:  {model.MA, model.StdDev},
	model.PercentB: {model.UpperBB, model.LowerBB},
	model.MFI:      nil,
	model.IIP:      nil,
	model.EMAFast:  nil,
	model.EMASlow:  nil,
	model.MACD:     {model.EMAFast, model.EMASlow},
	model.MACDSig:  {model.MACD},
	model.MACDHist: {model.MACD, model.MACDSig},
	model.StochK:   nil,
	model.StochD:   {model.StochK},
}

// Known reports whether name is a computable indicator.
func Known(name string) bool {
	_, ok := dependencies[name]
	return ok
}

// Names returns every computable indicator, sorted.
func Names() []string {
	out := make([]string, 0, len(dependencies))
	for n := range dependencies {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Closure expands names with everything they depend on. The result is sorted.
func Closure(names []string) ([]string, error) {
	seen := make(map[string]bool)
	var visit func(string) error
	visit = func(n string) error {
		if seen[n] {
			return nil
		}
		deps, ok := dependencies[n]
		if !ok {
			return fmt.Errorf("unknown indicator %q", n)
		}
		seen[n] = true
		for _, d := range deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// RequiredBars returns the minimum series length for which the request can
// produce at least one aligned row.
func (r Request) RequiredBars() int {
	names, err := Closure(r.Indicators)
	if err != nil {
		return 1
	}
	has := make(map[string]bool, len(names))
	for _, n := range names {
		has[n] = true
	}

	need := 1
	if has[model.StdDev] {
		need = 2 // sample std needs two points
	}
	if r.MinPeriods != calculator.Full {
		return need
	}
	p := r.Params
	if has[model.MA] || has[model.StdDev] {
		need = max(need, p.BBWindow)
	}
	if has[model.StochD] {
		need = max(need, p.StochSmooth)
	}
	return need
}
