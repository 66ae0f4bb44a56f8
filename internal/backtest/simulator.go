// Package backtest replays a strategy over a historical price series and
// produces the trade-by-trade record plus summary metrics for the run.
package backtest

import (
	"math"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/engine"
	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// annualizationFactor scales per-bar returns to a yearly Sharpe ratio,
// assuming 252 trading days.
const annualizationFactor = 252

type Simulator struct {
	logger *logger.Logger
}

func NewSimulator(l *logger.Logger) *Simulator {
	return &Simulator{logger: l}
}

// Run simulates the configured strategy over the given bars. Every bar
// produces exactly one trade record; bars inside the strategy's required
// lookback and signals that cannot be executed (a BUY with no free capital, a
// SELL with no position) are recorded as HOLD.
// Position sizing is partial: each BUY invests a fraction of free capital and
// each SELL liquidates the same fraction of the position, scaled by the
// interval's position multiplier.
func (s *Simulator) Run(cfg types.StrategyConfig, bars []types.MarketData) (*types.BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(bars) < 2 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable,
			"not enough price data to run a backtest: got %d bars", len(bars))
	}

	signals, err := engine.EvaluateSeries(bars, cfg.StrategyType, cfg.Params)
	if err != nil {
		return nil, err
	}

	multiplier := types.PositionMultiplier(cfg.Interval)
	lookback := cfg.Params.RequiredLookback(cfg.StrategyType)

	capital := cfg.InitialCapital
	position := 0.0
	trades := make([]types.Trade, 0, len(bars))

	for i, bar := range bars {
		price := bar.Close
		action := types.TradeActionHold

		signalAction := signals[i].Action
		// Indicators computed inside the warm-up window are still settling;
		// no trade executes before the lookback is filled.
		if i < lookback {
			signalAction = types.TradeActionHold
		}

		switch signalAction {
		case types.TradeActionBuy:
			if capital > 0 {
				invest := capital * multiplier
				position += invest / price
				capital -= invest
				action = types.TradeActionBuy
			}
		case types.TradeActionSell:
			if position > 0 {
				units := position * multiplier
				capital += units * price
				position -= units
				action = types.TradeActionSell
			}
		}

		assetValue := position * price
		trades = append(trades, types.Trade{
			Timestamp:      bar.Time,
			Price:          price,
			Position:       position,
			Capital:        capital,
			AssetValue:     assetValue,
			PortfolioValue: capital + assetValue,
			Action:         action,
		})
	}

	final := trades[len(trades)-1].PortfolioValue
	result := &types.BacktestResult{
		Trades:                trades,
		FinalPortfolioValue:   final,
		TotalReturnPercentage: types.TotalReturnPercentage(final, cfg.InitialCapital),
		SharpeRatio:           sharpeRatio(bars),
		Interval:              cfg.Interval,
		InitialCapital:        cfg.InitialCapital,
	}

	s.logger.Info("backtest completed",
		zap.String("symbol", cfg.Symbol),
		zap.String("interval", string(cfg.Interval)),
		zap.String("strategy", string(cfg.StrategyType)),
		zap.Int("bars", len(bars)),
		zap.Float64("final_portfolio_value", result.FinalPortfolioValue),
		zap.Float64("total_return_pct", result.TotalReturnPercentage),
		zap.Float64("sharpe_ratio", result.SharpeRatio))

	return result, nil
}

// sharpeRatio computes the annualized Sharpe ratio of the price series'
// simple per-bar returns. Fewer than two return observations or a flat return
// series give 0 rather than a division by zero.
func sharpeRatio(bars []types.MarketData) float64 {
	returns := make([]float64, 0, len(bars)-1)

	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		if prev == 0 {
			continue
		}

		returns = append(returns, (bars[i].Close-prev)/prev)
	}

	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance) * math.Sqrt(annualizationFactor)
}
