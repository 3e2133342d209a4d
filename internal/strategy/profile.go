package strategy

import (
	"errors"
	"fmt"
	"strings"

	"BandSentinel/internal/calculator"
	"BandSentinel/internal/indicator"
	"BandSentinel/internal/model"
)

// ErrInvalidProfile is returned when a profile cannot be evaluated.
var ErrInvalidProfile = errors.New("invalid strategy profile")

// Rule selects the signal rule family of a profile.
type Rule string

const (
	RuleThreshold Rule = "threshold"
	RuleCrossover Rule = "crossover"
)

// Built-in profile names.
const (
	Trend        = "trend"
	Reversal     = "reversal"
	TripleScreen = "triple-screen"
)

// Op is a comparison operator of a Condition.
type Op string

const (
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpLT  Op = "lt"
	OpLTE Op = "lte"
)

// Condition compares one indicator against a constant.
type Condition struct {
	Indicator string  `yaml:"indicator"`
	Op        Op      `yaml:"op"`
	Value     float64 `yaml:"value"`
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %g", c.Indicator, c.Op, c.Value)
}

// Crossover configures the crossover rule: a trend series gates an
// oscillator leaving the [Lower, Upper] band.
type Crossover struct {
	Trend      string  `yaml:"trend"`
	Oscillator string  `yaml:"oscillator"`
	Lower      float64 `yaml:"lower"`
	Upper      float64 `yaml:"upper"`
}

// Profile bundles what one strategy needs: indicators, rule and parameters.
type Profile struct {
	Name       string            `yaml:"name"`
	Indicators []string          `yaml:"indicators"`
	Rule       Rule              `yaml:"rule"`
	MinPeriods calculator.Policy `yaml:"min_periods"`
	Params     indicator.Params  `yaml:"params"`
	Buy        []Condition       `yaml:"buy,omitempty"`
	Sell       []Condition       `yaml:"sell,omitempty"`
	Crossover  Crossover         `yaml:"crossover,omitempty"`
}

// TrendProfile buys strength confirmed by money flow: %B above 0.8 with MFI above 80.
func TrendProfile() Profile {
	return Profile{
		Name:       Trend,
		Indicators: []string{model.MA, model.UpperBB, model.LowerBB, model.PercentB, model.MFI},
		Rule:       RuleThreshold,
		MinPeriods: calculator.Full,
		Params:     indicator.DefaultParams(),
		Buy: []Condition{
			{Indicator: model.PercentB, Op: OpGT, Value: 0.8},
			{Indicator: model.MFI, Op: OpGT, Value: 80},
		},
		Sell: []Condition{
			{Indicator: model.PercentB, Op: OpLT, Value: 0.2},
			{Indicator: model.MFI, Op: OpLT, Value: 20},
		},
	}
}

// ReversalProfile buys a lower-band touch backed by positive intraday intensity.
func ReversalProfile() Profile {
	return Profile{
		Name:       Reversal,
		Indicators: []string{model.MA, model.UpperBB, model.LowerBB, model.PercentB, model.IIP},
		Rule:       RuleThreshold,
		MinPeriods: calculator.Full,
		Params:     indicator.DefaultParams(),
		Buy: []Condition{
			{Indicator: model.PercentB, Op: OpLT, Value: 0.05},
			{Indicator: model.IIP, Op: OpGT, Value: 0},
		},
		Sell: []Condition{
			{Indicator: model.PercentB, Op: OpGT, Value: 0.95},
			{Indicator: model.IIP, Op: OpLT, Value: 0},
		},
	}
}

// TripleScreenProfile trades %D leaving 20/80 in the direction of the 130-day EMA.
func TripleScreenProfile() Profile {
	return Profile{
		Name: TripleScreen,
		Indicators: []string{
			model.EMAFast, model.EMASlow, model.MACD, model.MACDSig, model.MACDHist,
			model.StochK, model.StochD,
		},
		Rule:       RuleCrossover,
		MinPeriods: calculator.Partial,
		Params:     indicator.DefaultParams(),
		Crossover: Crossover{
			Trend:      model.EMASlow,
			Oscillator: model.StochD,
			Lower:      20,
			Upper:      80,
		},
	}
}

// Builtins returns the built-in profiles keyed by name.
func Builtins() map[string]Profile {
	return map[string]Profile{
		Trend:        TrendProfile(),
		Reversal:     ReversalProfile(),
		TripleScreen: TripleScreenProfile(),
	}
}

// Request returns the indicator request for the profile. Series the rule
// reads are added to the requested indicators.
func (p Profile) Request() indicator.Request {
	names := append([]string(nil), p.Indicators...)
	switch p.Rule {
	case RuleThreshold:
		for _, c := range append(append([]Condition(nil), p.Buy...), p.Sell...) {
			names = append(names, c.Indicator)
		}
	case RuleCrossover:
		names = append(names, p.Crossover.Trend, p.Crossover.Oscillator)
	}
	return indicator.Request{
		Indicators: names,
		MinPeriods: p.MinPeriods,
		Params:     p.Params.WithDefaults(),
	}
}

// Validate checks that the profile can be evaluated.
func (p Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is empty")
	}
	if len(p.Indicators) == 0 {
		problems = append(problems, "no indicators")
	}
	for _, n := range p.Indicators {
		if !indicator.Known(n) {
			problems = append(problems, fmt.Sprintf("unknown indicator %q", n))
		}
	}
	if !p.MinPeriods.Valid() {
		problems = append(problems, fmt.Sprintf("unknown min_periods %q", p.MinPeriods))
	}
	if err := p.Params.WithDefaults().Validate(); err != nil {
		problems = append(problems, err.Error())
	}

	switch p.Rule {
	case RuleThreshold:
		if len(p.Buy) == 0 && len(p.Sell) == 0 {
			problems = append(problems, "threshold rule without conditions")
		}
		for _, c := range append(append([]Condition(nil), p.Buy...), p.Sell...) {
			if !indicator.Known(c.Indicator) {
				problems = append(problems, fmt.Sprintf("condition on unknown indicator %q", c.Indicator))
			}
			if !c.Op.valid() {
				problems = append(problems, fmt.Sprintf("unknown operator %q", c.Op))
			}
		}
	case RuleCrossover:
		x := p.Crossover
		if !indicator.Known(x.Trend) || !indicator.Known(x.Oscillator) {
			problems = append(problems, fmt.Sprintf("crossover needs known trend and oscillator, got %q and %q", x.Trend, x.Oscillator))
		}
		if x.Lower >= x.Upper {
			problems = append(problems, fmt.Sprintf("crossover lower %g must be below upper %g", x.Lower, x.Upper))
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown rule %q", p.Rule))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidProfile, p.Name, strings.Join(problems, "; "))
	}
	return nil
}
