// Package store persists backtest results and live strategies.
package store

import (
	"context"
	"time"

	"github.com/rxtech-lab/argo-signal/internal/types"
)

// StrategyStore is the persistence boundary for backtests and live
// strategies. Reads that take a userID enforce ownership.
type StrategyStore interface {
	// SaveBacktest persists a completed backtest run.
	SaveBacktest(ctx context.Context, record types.BacktestRecord) error
	// GetBacktest returns the user's backtest with the given id.
	GetBacktest(ctx context.Context, userID, id string) (types.BacktestRecord, error)
	// ListBacktests returns the user's backtests, newest first.
	ListBacktests(ctx context.Context, userID string) ([]types.BacktestRecord, error)
	// GreatestReturn returns the user's backtest with the highest total
	// return percentage. Percentage rather than absolute profit, so runs
	// with different initial capitals compare on equal footing.
	GreatestReturn(ctx context.Context, userID string) (types.BacktestRecord, error)

	// CreateLiveStrategy persists a newly promoted live strategy.
	CreateLiveStrategy(ctx context.Context, ls types.LiveStrategy) error
	// GetLiveStrategy returns the user's live strategy with the given id.
	GetLiveStrategy(ctx context.Context, userID, id string) (types.LiveStrategy, error)
	// ListLiveStrategies returns all of the user's live strategies, newest
	// first, active or not.
	ListLiveStrategies(ctx context.Context, userID string) ([]types.LiveStrategy, error)
	// ListAllActive returns every active live strategy across all users,
	// used to resume monitoring after a restart.
	ListAllActive(ctx context.Context) ([]types.LiveStrategy, error)

	// UpdateLiveStatus records the latest check time and consecutive error
	// count.
	UpdateLiveStatus(ctx context.Context, id string, lastCheck time.Time, errorCount int) error
	// RecordSignalTime records when the strategy last produced a BUY or
	// SELL.
	RecordSignalTime(ctx context.Context, id string, signalTime time.Time) error
	// SetActive flips the strategy's active flag.
	SetActive(ctx context.Context, id string, active bool) error
	// CountActive returns how many of the user's live strategies are
	// active.
	CountActive(ctx context.Context, userID string) (int, error)

	Close() error
}
