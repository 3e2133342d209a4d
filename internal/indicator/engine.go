// Package indicator derives Bollinger, money-flow, intensity, MACD and
// stochastic series from a daily price series and aligns them for signal
// detection.
//
// Undefined positions are NaN while computing. Compute trims them away so a
// returned IndicatorSeries never holds NaN.
package indicator

import (
	"fmt"
	"math"

	"BandSentinel/internal/calculator"
	"BandSentinel/internal/model"
)

// calc memoizes series for one computation.
type calc struct {
	req    Request
	close  []float64
	high   []float64
	low    []float64
	volume []float64
	values map[string][]float64
}

func newCalc(series *model.PriceSeries, req Request) *calc {
	return &calc{
		req:    req,
		close:  series.Closes(),
		high:   series.Highs(),
		low:    series.Lows(),
		volume: series.Volumes(),
		values: make(map[string][]float64),
	}
}

func (c *calc) get(name string) []float64 {
	if v, ok := c.values[name]; ok {
		return v
	}
	var v []float64
	p := c.req.Params
	switch name {
	case model.MA:
		v = c.rolling(p.BBWindow).Mean(c.close)
	case model.StdDev:
		v = c.rolling(p.BBWindow).Std(c.close)
	case model.UpperBB:
		v = bollinger(c.get(model.MA), c.get(model.StdDev), p.BBK)
	case model.LowerBB:
		v = bollinger(c.get(model.MA), c.get(model.StdDev), -p.BBK)
	case model.PercentB:
		v = percentB(c.close, c.get(model.UpperBB), c.get(model.LowerBB))
	case model.MFI:
		v = moneyFlowIndex(c.high, c.low, c.close, c.volume, p.MFIWindow)
	case model.IIP:
		v = intradayIntensityPct(c.high, c.low, c.close, c.volume, p.IIWindow)
	case model.EMAFast:
		v = calculator.EMA(c.close, p.EMAFast)
	case model.EMASlow:
		v = calculator.EMA(c.close, p.EMASlow)
	case model.MACD:
		v = subtract(c.get(model.EMAFast), c.get(model.EMASlow))
	case model.MACDSig:
		v = calculator.EMA(c.get(model.MACD), p.SignalSpan)
	case model.MACDHist:
		v = subtract(c.get(model.MACD), c.get(model.MACDSig))
	case model.StochK:
		v = stochasticK(c.high, c.low, c.close, p.StochWindow)
	case model.StochD:
		v = c.rolling(p.StochSmooth).Mean(c.get(model.StochK))
	default:
		panic("indicator: no builder for " + name)
	}
	c.values[name] = v
	return v
}

func (c *calc) rolling(w int) calculator.Rolling {
	return calculator.MustRolling(w, c.req.MinPeriods)
}

func normalize(req Request) (Request, []string, error) {
	if !req.MinPeriods.Valid() {
		return req, nil, fmt.Errorf("unknown min periods policy %q", req.MinPeriods)
	}
	req.Params = req.Params.WithDefaults()
	if err := req.Params.Validate(); err != nil {
		return req, nil, err
	}
	if len(req.Indicators) == 0 {
		return req, nil, fmt.Errorf("no indicators requested")
	}
	names, err := Closure(req.Indicators)
	if err != nil {
		return req, nil, err
	}
	return req, names, nil
}

// Raw computes the requested series and their dependencies without trimming.
// Undefined positions are NaN.
func Raw(series *model.PriceSeries, req Request) (map[string][]float64, error) {
	req, names, err := normalize(req)
	if err != nil {
		return nil, err
	}
	c := newCalc(series, req)
	out := make(map[string][]float64, len(names))
	for _, n := range names {
		out[n] = c.get(n)
	}
	return out, nil
}

// Compute derives the requested series and aligns them with the price bars.
// Leading rows where any series is undefined are dropped, and so is any later
// row with an undefined value, together with its bar.
func Compute(series *model.PriceSeries, req Request) (*model.IndicatorSeries, error) {
	req, names, err := normalize(req)
	if err != nil {
		return nil, err
	}
	if need := req.RequiredBars(); series.Len() < need {
		return nil, &InsufficientDataError{Code: series.Code, Bars: series.Len(), Required: need}
	}

	c := newCalc(series, req)
	raw := make(map[string][]float64, len(names))
	for _, n := range names {
		raw[n] = c.get(n)
	}

	keep := alignedRows(raw, series.Len())
	if len(keep) == 0 {
		return nil, &InsufficientDataError{
			Code:   series.Code,
			Bars:   series.Len(),
			Reason: "no row with every indicator defined",
		}
	}

	out := &model.IndicatorSeries{
		Code:   series.Code,
		Name:   series.Name,
		Bars:   make([]model.Bar, len(keep)),
		Values: make(map[string][]float64, len(names)),
	}
	for j, i := range keep {
		out.Bars[j] = series.Bars[i]
	}
	for _, n := range names {
		v := make([]float64, len(keep))
		for j, i := range keep {
			v[j] = raw[n][i]
		}
		out.Values[n] = v
	}
	return out, nil
}

// alignedRows returns the row indexes at which every series is defined,
// starting from the common warm-up offset.
func alignedRows(raw map[string][]float64, n int) []int {
	start := 0
	for _, v := range raw {
		start = max(start, calculator.FirstDefined(v))
	}
	keep := make([]int, 0, n-min(start, n))
rows:
	for i := start; i < n; i++ {
		for _, v := range raw {
			if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
				continue rows
			}
		}
		keep = append(keep, i)
	}
	return keep
}
