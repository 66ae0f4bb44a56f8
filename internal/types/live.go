package types

import (
	"time"

	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// StrategyConfig is the immutable configuration a backtest or live strategy
// is created from.
type StrategyConfig struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Symbol         string         `json:"symbol"`
	Interval       Interval       `json:"interval"`
	StrategyType   StrategyType   `json:"strategy_type"`
	Params         StrategyParams `json:"params"`
	InitialCapital float64        `json:"initial_capital"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Validate checks the config's interval, strategy type, parameters and
// initial capital.
func (c StrategyConfig) Validate() error {
	if _, err := ParseInterval(string(c.Interval)); err != nil {
		return err
	}

	if c.InitialCapital <= 0 {
		return errors.Newf(errors.ErrCodeInvalidCapital,
			"initial capital must be positive, got %v", c.InitialCapital)
	}

	return c.Params.Validate(c.StrategyType)
}

// BacktestRecord is a persisted backtest: its configuration plus the result
// of the simulation run.
type BacktestRecord struct {
	StrategyConfig

	Result *BacktestResult `json:"result,omitempty"`
}

// LiveStrategy is a strategy promoted to periodic live monitoring. The
// configuration fields are immutable; the monitoring fields are mutated only
// by the status tracker and the live orchestrator.
type LiveStrategy struct {
	StrategyConfig

	// BacktestID is the backtest this live strategy was promoted from.
	BacktestID string `json:"backtest_id"`
	// IsActive is false once the user stops the strategy or the error
	// threshold disables it.
	IsActive bool `json:"is_active"`
	// LastCheckTime is the time of the most recent signal check. Zero when
	// no check has run yet.
	LastCheckTime time.Time `json:"last_check_time"`
	// LastSignalTime is the time of the most recent BUY/SELL signal. Zero
	// when no signal has fired yet.
	LastSignalTime time.Time `json:"last_signal_time"`
	// ErrorCount is the number of consecutive failed checks.
	ErrorCount int `json:"error_count"`
}
