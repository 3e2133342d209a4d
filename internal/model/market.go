package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidBar is returned when a bar or a bar sequence breaks the price series invariants.
var ErrInvalidBar = errors.New("invalid bar")

// DateLayout is the calendar-day layout used for bars in storage and logs.
const DateLayout = "2006-01-02"

// Bar represents one trading day of an instrument.
type Bar struct {
	Date      time.Time // calendar day, UTC midnight
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	ChangePct float64 // close vs previous close, percent; informational only
}

// Company is one listed instrument.
type Company struct {
	Code       string
	Name       string
	LastUpdate time.Time
}

// PriceSeries holds the daily bars of one instrument, strictly ascending by date.
// It is treated as read-only once constructed.
type PriceSeries struct {
	Code string
	Name string
	Bars []Bar
}

// NewPriceSeries validates bars and wraps them in a PriceSeries.
func NewPriceSeries(code, name string, bars []Bar) (*PriceSeries, error) {
	if err := ValidateBars(bars); err != nil {
		return nil, fmt.Errorf("%s: %w", code, err)
	}
	return &PriceSeries{Code: code, Name: name, Bars: bars}, nil
}

// Len returns the number of bars.
func (p *PriceSeries) Len() int { return len(p.Bars) }

// Slice returns a new PriceSeries over bars[from:]. The bars are copied.
func (p *PriceSeries) Slice(from int) *PriceSeries {
	bars := make([]Bar, len(p.Bars)-from)
	copy(bars, p.Bars[from:])
	return &PriceSeries{Code: p.Code, Name: p.Name, Bars: bars}
}

// Closes extracts the close column.
func (p *PriceSeries) Closes() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs extracts the high column.
func (p *PriceSeries) Highs() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column.
func (p *PriceSeries) Lows() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = b.Low
	}
	return out
}

// Volumes extracts the volume column as float64.
func (p *PriceSeries) Volumes() []float64 {
	out := make([]float64, len(p.Bars))
	for i, b := range p.Bars {
		out[i] = float64(b.Volume)
	}
	return out
}

// ValidateBars checks ordering and per-bar sanity: strictly increasing dates,
// positive prices, high >= low and non-negative volume.
func ValidateBars(bars []Bar) error {
	for i, b := range bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%w: non-positive price on %s", ErrInvalidBar, b.Date.Format(DateLayout))
		}
		if b.High < b.Low {
			return fmt.Errorf("%w: high %.2f < low %.2f on %s", ErrInvalidBar, b.High, b.Low, b.Date.Format(DateLayout))
		}
		if b.Volume < 0 {
			return fmt.Errorf("%w: negative volume on %s", ErrInvalidBar, b.Date.Format(DateLayout))
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("%w: date %s does not follow %s", ErrInvalidBar,
				b.Date.Format(DateLayout), bars[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
