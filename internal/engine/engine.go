// Package engine implements the signal engine: a pure evaluation of a price
// series against a strategy configuration, producing BUY/SELL/HOLD signals.
// Both the backtest simulator and the live orchestrator run their signal
// checks through this package.
package engine

import (
	"fmt"

	"github.com/rxtech-lab/argo-signal/internal/indicator"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// EvaluateSeries computes one signal per bar of the series. Only the
// transition between two consecutive bars is considered: a crossover from
// at-or-below to above is a BUY, the reverse is a SELL, anything else is a
// HOLD. Bars for which the indicators are not yet defined (the first bar for
// MACD, the long SMA window for the moving-average variant) produce HOLD.
func EvaluateSeries(bars []types.MarketData, strategyType types.StrategyType, params types.StrategyParams) ([]types.Signal, error) {
	if err := params.Validate(strategyType); err != nil {
		return nil, err
	}

	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeDataUnavailable, "cannot evaluate an empty price series")
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	switch strategyType {
	case types.StrategyTypeMACDCrossover:
		return evaluateMACDSeries(bars, closes, *params.MACD)
	case types.StrategyTypeMACrossover:
		return evaluateMASeries(bars, closes, *params.MA), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidStrategy, "unsupported strategy type: %s", strategyType)
	}
}

// Evaluate computes the signal for the latest bar only. This is the live
// monitoring contract: a series shorter than the strategy's required
// lookback plus the preceding bar produces a HOLD with zero position delta
// instead of an unreliable early signal.
func Evaluate(bars []types.MarketData, strategyType types.StrategyType, params types.StrategyParams) (types.Signal, error) {
	if err := params.Validate(strategyType); err != nil {
		return types.Signal{}, err
	}

	if len(bars) == 0 {
		return types.Signal{}, errors.New(errors.ErrCodeDataUnavailable, "cannot evaluate an empty price series")
	}

	last := bars[len(bars)-1]
	lookback := params.RequiredLookback(strategyType)

	// Crossover detection needs the previous bar on top of the lookback.
	if len(bars) < lookback+1 {
		return holdSignal(last, fmt.Sprintf("insufficient history: %d of %d bars", len(bars), lookback+1)), nil
	}

	signals, err := EvaluateSeries(bars, strategyType, params)
	if err != nil {
		return types.Signal{}, err
	}

	return signals[len(signals)-1], nil
}

func evaluateMACDSeries(bars []types.MarketData, closes []float64, params types.MACDParams) ([]types.Signal, error) {
	macdLine, signalLine, err := indicator.MACDSeries(closes, params.FastPeriod, params.SlowPeriod, params.SignalPeriod)
	if err != nil {
		return nil, err
	}

	signals := make([]types.Signal, len(bars))
	signals[0] = holdSignal(bars[0], "no preceding bar")

	for i := 1; i < len(bars); i++ {
		switch {
		case macdLine[i] > signalLine[i] && macdLine[i-1] <= signalLine[i-1]:
			signals[i] = actionSignal(bars[i], types.TradeActionBuy, 1.0,
				fmt.Sprintf("MACD crossed above signal line (%.4f > %.4f)", macdLine[i], signalLine[i]))
		case macdLine[i] < signalLine[i] && macdLine[i-1] >= signalLine[i-1]:
			signals[i] = actionSignal(bars[i], types.TradeActionSell, -1.0,
				fmt.Sprintf("MACD crossed below signal line (%.4f < %.4f)", macdLine[i], signalLine[i]))
		default:
			signals[i] = holdSignal(bars[i], "no MACD crossover")
		}
	}

	return signals, nil
}

func evaluateMASeries(bars []types.MarketData, closes []float64, params types.MAParams) []types.Signal {
	signals := make([]types.Signal, len(bars))

	for i := range bars {
		curShort, okCurShort := indicator.SMAAt(closes, i, params.ShortPeriod)
		curLong, okCurLong := indicator.SMAAt(closes, i, params.LongPeriod)
		prevShort, okPrevShort := indicator.SMAAt(closes, i-1, params.ShortPeriod)
		prevLong, okPrevLong := indicator.SMAAt(closes, i-1, params.LongPeriod)

		if !okCurShort || !okCurLong || !okPrevShort || !okPrevLong {
			signals[i] = holdSignal(bars[i], "warming up: long SMA window not filled")

			continue
		}

		switch {
		case curShort > curLong && prevShort <= prevLong:
			signals[i] = actionSignal(bars[i], types.TradeActionBuy, 1.0,
				fmt.Sprintf("short SMA crossed above long SMA (%.4f > %.4f)", curShort, curLong))
		case curShort < curLong && prevShort >= prevLong:
			signals[i] = actionSignal(bars[i], types.TradeActionSell, -1.0,
				fmt.Sprintf("short SMA crossed below long SMA (%.4f < %.4f)", curShort, curLong))
		default:
			signals[i] = holdSignal(bars[i], "no moving-average crossover")
		}
	}

	return signals
}

func holdSignal(bar types.MarketData, reason string) types.Signal {
	return types.Signal{
		Time:          bar.Time,
		Action:        types.TradeActionHold,
		Symbol:        bar.Symbol,
		Price:         bar.Close,
		PositionDelta: 0,
		Reason:        reason,
	}
}

func actionSignal(bar types.MarketData, action types.TradeAction, delta float64, reason string) types.Signal {
	return types.Signal{
		Time:          bar.Time,
		Action:        action,
		Symbol:        bar.Symbol,
		Price:         bar.Close,
		PositionDelta: delta,
		Reason:        reason,
	}
}
