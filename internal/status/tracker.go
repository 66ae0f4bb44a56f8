// Package status tracks the health of live strategies: check times, signal
// times and consecutive failures, with automatic disabling once a strategy
// keeps failing.
package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
)

// ErrorThreshold is the number of consecutive failed checks after which a
// live strategy is disabled.
const ErrorThreshold = 5

// Store is the slice of the strategy store the tracker writes through to.
type Store interface {
	UpdateLiveStatus(ctx context.Context, id string, lastCheck time.Time, errorCount int) error
	RecordSignalTime(ctx context.Context, id string, signalTime time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Tracker keeps the authoritative consecutive-error count in memory and
// writes status changes through to the store. A failed store write is logged
// but never rolls the in-memory count back, so a flapping store cannot reset
// a strategy's failure streak.
type Tracker struct {
	mu          sync.Mutex
	errorCounts map[string]int

	store  Store
	logger *logger.Logger

	// onDisable runs after a strategy crosses the error threshold, outside
	// the tracker's lock. The live orchestrator uses it to remove the
	// strategy's scheduled job.
	onDisable func(strategyID string)
}

func NewTracker(store Store, l *logger.Logger) *Tracker {
	return &Tracker{
		errorCounts: make(map[string]int),
		store:       store,
		logger:      l,
	}
}

// SetDisableHook registers the callback invoked when a strategy is disabled
// by the error threshold.
func (t *Tracker) SetDisableHook(fn func(strategyID string)) {
	t.onDisable = fn
}

// RecordSuccess resets the strategy's failure streak and persists the check
// time. When the check produced a BUY or SELL, signalTime is persisted too.
func (t *Tracker) RecordSuccess(ctx context.Context, id string, checkTime time.Time, signalFired bool) {
	t.mu.Lock()
	t.errorCounts[id] = 0
	t.mu.Unlock()

	if err := t.store.UpdateLiveStatus(ctx, id, checkTime, 0); err != nil {
		t.logger.Error("failed to persist check status",
			zap.String("strategy_id", id),
			zap.Error(err))
	}

	if signalFired {
		if err := t.store.RecordSignalTime(ctx, id, checkTime); err != nil {
			t.logger.Error("failed to persist signal time",
				zap.String("strategy_id", id),
				zap.Error(err))
		}
	}
}

// RecordFailure increments the strategy's failure streak and persists it.
// Crossing the error threshold deactivates the strategy in the store and
// fires the disable hook; the returned bool reports whether that happened.
func (t *Tracker) RecordFailure(ctx context.Context, id string, checkTime time.Time, cause error) bool {
	t.mu.Lock()
	t.errorCounts[id]++
	count := t.errorCounts[id]
	t.mu.Unlock()

	t.logger.Warn("live check failed",
		zap.String("strategy_id", id),
		zap.Int("consecutive_errors", count),
		zap.Error(cause))

	if err := t.store.UpdateLiveStatus(ctx, id, checkTime, count); err != nil {
		t.logger.Error("failed to persist check status",
			zap.String("strategy_id", id),
			zap.Error(err))
	}

	if count < ErrorThreshold {
		return false
	}

	t.logger.Error("disabling strategy after repeated failures",
		zap.String("strategy_id", id),
		zap.Int("consecutive_errors", count),
		zap.Int("threshold", ErrorThreshold))

	if err := t.store.SetActive(ctx, id, false); err != nil {
		t.logger.Error("failed to deactivate strategy",
			zap.String("strategy_id", id),
			zap.Error(err))
	}

	if t.onDisable != nil {
		t.onDisable(id)
	}

	return true
}

// ErrorCount returns the strategy's current consecutive-failure count.
func (t *Tracker) ErrorCount(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.errorCounts[id]
}

// Forget drops the in-memory state for a strategy that is no longer
// monitored.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.errorCounts, id)
}

// Seed primes the in-memory count from persisted state, used when resuming
// monitoring after a restart.
func (t *Tracker) Seed(id string, errorCount int) {
	if errorCount < 0 {
		errorCount = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.errorCounts[id] = errorCount
}
