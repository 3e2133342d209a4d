package model

// Indicator series names.
const (
	MA       = "ma20"
	StdDev   = "stdev"
	UpperBB  = "upperbb"
	LowerBB  = "lowerbb"
	PercentB = "pb"
	MFI      = "mfi"
	IIP      = "iip"
	EMAFast  = "ema60"
	EMASlow  = "ema130"
	MACD     = "macd"
	MACDSig  = "signal"
	MACDHist = "macd_hist"
	StochK   = "pk"
	StochD   = "pd"
)

// IndicatorSeries holds indicator values aligned index-for-index with Bars.
// Every entry in Values has len(Bars) elements and none of them is NaN.
type IndicatorSeries struct {
	Code    string
	Name    string
	Profile string
	Bars    []Bar
	Values  map[string][]float64
}

// Len returns the number of aligned rows.
func (s *IndicatorSeries) Len() int { return len(s.Bars) }

// Series returns the named series and whether it exists.
func (s *IndicatorSeries) Series(name string) ([]float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}

// At returns the value of the named series at row i, or false if absent.
func (s *IndicatorSeries) At(name string, i int) (float64, bool) {
	v, ok := s.Values[name]
	if !ok || i < 0 || i >= len(v) {
		return 0, false
	}
	return v[i], true
}

// Last returns the latest value of the named series, or false if absent or empty.
func (s *IndicatorSeries) Last(name string) (float64, bool) {
	return s.At(name, len(s.Bars)-1)
}
