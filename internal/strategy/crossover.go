package strategy

import "BandSentinel/internal/model"

// detectCrossover compares each row with the one before it, so row 0 never
// signals. Buy: trend rising and the oscillator drops below Lower.
// Sell: trend falling and the oscillator rises above Upper.
func detectCrossover(ind *model.IndicatorSeries, p Profile) []model.Signal {
	x := p.Crossover
	trend, _ := ind.Series(x.Trend)
	osc, _ := ind.Series(x.Oscillator)
	if len(trend) != ind.Len() || len(osc) != ind.Len() {
		return nil
	}

	var out []model.Signal
	for i := 1; i < ind.Len(); i++ {
		var dir model.Direction
		switch {
		case trend[i] > trend[i-1] && osc[i-1] >= x.Lower && osc[i] < x.Lower:
			dir = model.Buy
		case trend[i] < trend[i-1] && osc[i-1] <= x.Upper && osc[i] > x.Upper:
			dir = model.Sell
		default:
			continue
		}
		bar := ind.Bars[i]
		out = append(out, model.Signal{Date: bar.Date, Direction: dir, Strategy: p.Name, Close: bar.Close})
	}
	return out
}
