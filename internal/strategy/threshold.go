package strategy

import "BandSentinel/internal/model"

func (o Op) valid() bool {
	switch o {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

func (o Op) holds(v, ref float64) bool {
	switch o {
	case OpGT:
		return v > ref
	case OpGTE:
		return v >= ref
	case OpLT:
		return v < ref
	case OpLTE:
		return v <= ref
	}
	return false
}

// allHold reports whether every condition is met at row i. An empty set never holds.
func allHold(ind *model.IndicatorSeries, conds []Condition, i int) bool {
	if len(conds) == 0 {
		return false
	}
	for _, c := range conds {
		v, ok := ind.At(c.Indicator, i)
		if !ok || !c.Op.holds(v, c.Value) {
			return false
		}
	}
	return true
}

// detectThreshold emits a signal on every row where one side's conditions
// all hold. Buy is checked first, so a row never yields both.
func detectThreshold(ind *model.IndicatorSeries, p Profile) []model.Signal {
	var out []model.Signal
	for i, bar := range ind.Bars {
		var dir model.Direction
		switch {
		case allHold(ind, p.Buy, i):
			dir = model.Buy
		case allHold(ind, p.Sell, i):
			dir = model.Sell
		default:
			continue
		}
		out = append(out, model.Signal{Date: bar.Date, Direction: dir, Strategy: p.Name, Close: bar.Close})
	}
	return out
}
