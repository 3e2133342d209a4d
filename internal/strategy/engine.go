// Package strategy turns aligned indicator series into buy and sell signals.
package strategy

import (
	"fmt"

	"BandSentinel/internal/indicator"
	"BandSentinel/internal/model"
)

// Detect applies the profile's rule to ind. Signals are in ascending date
// order with at most one per date.
func Detect(ind *model.IndicatorSeries, p Profile) ([]model.Signal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for _, name := range p.Request().Indicators {
		if _, ok := ind.Series(name); !ok {
			return nil, fmt.Errorf("%s: series %q not computed", p.Name, name)
		}
	}
	switch p.Rule {
	case RuleCrossover:
		return detectCrossover(ind, p), nil
	default:
		return detectThreshold(ind, p), nil
	}
}

// Evaluate computes the profile's indicators over series and detects signals.
func Evaluate(series *model.PriceSeries, p Profile) (*model.IndicatorSeries, []model.Signal, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	ind, err := indicator.Compute(series, p.Request())
	if err != nil {
		return nil, nil, fmt.Errorf("compute %s for %s: %w", p.Name, series.Code, err)
	}
	ind.Profile = p.Name
	signals, err := Detect(ind, p)
	if err != nil {
		return nil, nil, err
	}
	return ind, signals, nil
}
