package types

import (
	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// StrategyType identifies one of the supported strategy variants.
type StrategyType string

const (
	// StrategyTypeMACDCrossover trades on MACD line / signal line crossovers.
	StrategyTypeMACDCrossover StrategyType = "macd_crossover"
	// StrategyTypeMACrossover trades on short / long simple moving average crossovers.
	StrategyTypeMACrossover StrategyType = "ma_crossover"
)

// IsValid reports whether the strategy type is one of the supported variants.
func (s StrategyType) IsValid() bool {
	return s == StrategyTypeMACDCrossover || s == StrategyTypeMACrossover
}

var validate = validator.New()

// MACDParams configures the MACD crossover strategy.
type MACDParams struct {
	FastPeriod   int `json:"fast_period" yaml:"fast_period" jsonschema:"title=Fast Period,description=Span of the fast EMA" validate:"required,gt=0"`
	SlowPeriod   int `json:"slow_period" yaml:"slow_period" jsonschema:"title=Slow Period,description=Span of the slow EMA" validate:"required,gt=0,gtfield=FastPeriod"`
	SignalPeriod int `json:"signal_period" yaml:"signal_period" jsonschema:"title=Signal Period,description=Span of the signal-line EMA" validate:"required,gt=0"`
}

// MAParams configures the moving-average crossover strategy.
type MAParams struct {
	ShortPeriod int `json:"short_period" yaml:"short_period" jsonschema:"title=Short Period,description=Window of the short SMA" validate:"required,gt=0"`
	LongPeriod  int `json:"long_period" yaml:"long_period" jsonschema:"title=Long Period,description=Window of the long SMA" validate:"required,gt=0,gtfield=ShortPeriod"`
}

// StrategyParams is a tagged union of per-variant parameter payloads.
// Exactly one payload must be set, matching the strategy type it is used with.
type StrategyParams struct {
	MACD *MACDParams `json:"macd,omitempty" yaml:"macd,omitempty"`
	MA   *MAParams   `json:"ma,omitempty" yaml:"ma,omitempty"`
}

// Validate checks that the params carry exactly the payload required by the
// given strategy type and that the payload passes field validation.
func (p StrategyParams) Validate(strategyType StrategyType) error {
	switch strategyType {
	case StrategyTypeMACDCrossover:
		if p.MACD == nil {
			return errors.New(errors.ErrCodeMissingParameter, "macd parameters are required for the MACD crossover strategy")
		}

		if p.MA != nil {
			return errors.New(errors.ErrCodeInvalidParameter, "ma parameters are not valid for the MACD crossover strategy")
		}

		if err := validate.Struct(p.MACD); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPeriod, "invalid MACD parameters", err)
		}
	case StrategyTypeMACrossover:
		if p.MA == nil {
			return errors.New(errors.ErrCodeMissingParameter, "ma parameters are required for the moving-average crossover strategy")
		}

		if p.MACD != nil {
			return errors.New(errors.ErrCodeInvalidParameter, "macd parameters are not valid for the moving-average crossover strategy")
		}

		if err := validate.Struct(p.MA); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPeriod, "invalid moving-average parameters", err)
		}
	default:
		return errors.Newf(errors.ErrCodeInvalidStrategy, "unsupported strategy type: %s", strategyType)
	}

	return nil
}

// RequiredLookback returns the minimum number of bars the strategy needs
// before it can produce a non-HOLD signal: the slow EMA span for MACD, the
// long SMA window for the moving-average crossover.
func (p StrategyParams) RequiredLookback(strategyType StrategyType) int {
	switch strategyType {
	case StrategyTypeMACDCrossover:
		if p.MACD != nil {
			return p.MACD.SlowPeriod
		}
	case StrategyTypeMACrossover:
		if p.MA != nil {
			return p.MA.LongPeriod
		}
	}

	return 0
}

// Default parameter sets per interval. Shorter intervals use tighter spans so
// the strategy reacts within a comparable wall-clock horizon. Unknown
// intervals fall back to the daily defaults.
var defaultMACDParams = map[Interval]MACDParams{
	Interval1m:  {FastPeriod: 6, SlowPeriod: 13, SignalPeriod: 5},
	Interval5m:  {FastPeriod: 6, SlowPeriod: 13, SignalPeriod: 5},
	Interval15m: {FastPeriod: 8, SlowPeriod: 17, SignalPeriod: 9},
	Interval1h:  {FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	Interval4h:  {FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	Interval1d:  {FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9},
	Interval1w:  {FastPeriod: 9, SlowPeriod: 21, SignalPeriod: 7},
}

var defaultMAParams = map[Interval]MAParams{
	Interval1m:  {ShortPeriod: 5, LongPeriod: 20},
	Interval5m:  {ShortPeriod: 8, LongPeriod: 21},
	Interval15m: {ShortPeriod: 10, LongPeriod: 30},
	Interval1h:  {ShortPeriod: 20, LongPeriod: 50},
	Interval4h:  {ShortPeriod: 20, LongPeriod: 50},
	Interval1d:  {ShortPeriod: 50, LongPeriod: 200},
	Interval1w:  {ShortPeriod: 10, LongPeriod: 40},
}

// DefaultParams returns the default parameter set for the given strategy type
// at the given interval. Unknown intervals use the 1d defaults.
func DefaultParams(strategyType StrategyType, interval Interval) (StrategyParams, error) {
	switch strategyType {
	case StrategyTypeMACDCrossover:
		params, ok := defaultMACDParams[interval]
		if !ok {
			params = defaultMACDParams[Interval1d]
		}

		return StrategyParams{MACD: &params, MA: nil}, nil
	case StrategyTypeMACrossover:
		params, ok := defaultMAParams[interval]
		if !ok {
			params = defaultMAParams[Interval1d]
		}

		return StrategyParams{MACD: nil, MA: &params}, nil
	default:
		return StrategyParams{}, errors.Newf(errors.ErrCodeInvalidStrategy, "unsupported strategy type: %s", strategyType)
	}
}

// positionMultipliers maps each interval to the fraction of capital committed
// on BUY (or fraction of the position liquidated on SELL). Finer intervals
// trade smaller fractions.
var positionMultipliers = map[Interval]float64{
	Interval1m:  0.1,
	Interval5m:  0.2,
	Interval15m: 0.3,
	Interval1h:  0.5,
	Interval4h:  0.7,
	Interval1d:  1.0,
	Interval1w:  1.0,
}

// DefaultPositionMultiplier is used for intervals without an explicit mapping.
const DefaultPositionMultiplier = 0.5

// PositionMultiplier returns the partial position sizing fraction for the interval.
func PositionMultiplier(interval Interval) float64 {
	if m, ok := positionMultipliers[interval]; ok {
		return m
	}

	return DefaultPositionMultiplier
}
