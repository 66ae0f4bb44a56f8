package types

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Trade is one point-in-time snapshot of the simulated ledger. One Trade is
// recorded per price bar, so the sequence forms a complete portfolio time
// series for charting.
type Trade struct {
	// Timestamp is the time of the bar.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Price is the closing price of the bar.
	Price float64 `json:"price" yaml:"price"`
	// Position is the asset units held after the bar's action.
	Position float64 `json:"position" yaml:"position"`
	// Capital is the cash available after the bar's action.
	Capital float64 `json:"capital" yaml:"capital"`
	// AssetValue is Position * Price.
	AssetValue float64 `json:"asset_value" yaml:"asset_value"`
	// PortfolioValue is Capital + AssetValue.
	PortfolioValue float64 `json:"portfolio_value" yaml:"portfolio_value"`
	// Action taken at this bar.
	Action TradeAction `json:"action" yaml:"action"`
}

// BacktestResult holds the full trade ledger and aggregate performance
// metrics of one simulation run. Trades are in chronological order, one per
// input bar.
type BacktestResult struct {
	Trades []Trade `json:"trades" yaml:"trades"`
	// FinalPortfolioValue is capital plus position valued at the last close.
	FinalPortfolioValue float64 `json:"final_portfolio_value" yaml:"final_portfolio_value"`
	// TotalReturnPercentage is (final / initial - 1) * 100.
	TotalReturnPercentage float64 `json:"total_return_percentage" yaml:"total_return_percentage"`
	// SharpeRatio is the annualized Sharpe ratio of the price series' simple
	// returns. Zero when the series has fewer than 2 returns or no variance.
	SharpeRatio float64 `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	// Interval echoes the bar spacing the simulation ran on.
	Interval Interval `json:"interval" yaml:"interval"`
	// InitialCapital echoes the starting cash.
	InitialCapital float64 `json:"initial_capital" yaml:"initial_capital"`
}

// TotalReturnPercentage computes (final/initial - 1) * 100 using decimal
// arithmetic to avoid compounding float64 drift in the headline metric.
func TotalReturnPercentage(finalValue, initialCapital float64) float64 {
	if initialCapital == 0 {
		return 0
	}

	finalDec := decimal.NewFromFloat(finalValue)
	initialDec := decimal.NewFromFloat(initialCapital)
	returnPct, _ := finalDec.Div(initialDec).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).Float64()

	return returnPct
}

// WriteBacktestResult writes the result to a YAML file.
func WriteBacktestResult(path string, result *BacktestResult) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write backtest result to file: %w", err)
	}

	return nil
}
