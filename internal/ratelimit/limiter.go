// Package ratelimit enforces the two per-user limits: a sliding-window cap
// on market data calls and a quota on concurrently active live strategies.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

const (
	// MaxCallsPerMinute caps market data calls per user within the window.
	MaxCallsPerMinute = 30
	// MaxStrategiesPerUser caps concurrently active live strategies.
	MaxStrategiesPerUser = 5

	window = time.Minute
)

// ActiveCounter reports how many live strategies a user currently has
// active. The store implements it.
type ActiveCounter interface {
	CountActive(ctx context.Context, userID string) (int, error)
}

// UsageMetrics is a point-in-time snapshot of a user's limit consumption.
type UsageMetrics struct {
	CallsUsed          int `json:"calls_used"`
	CallsRemaining     int `json:"calls_remaining"`
	MaxCallsPerMinute  int `json:"max_calls_per_minute"`
	WindowResetSeconds int `json:"window_reset_seconds"`
	ActiveStrategies   int `json:"active_strategies"`
	MaxStrategies      int `json:"max_strategies"`
}

// Limiter tracks per-user call timestamps in memory and consults the store
// for the strategy quota. Safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	calls   map[string][]time.Time
	counter ActiveCounter
	logger  *logger.Logger

	maxCalls      int
	maxStrategies int

	// now is swapped out in tests.
	now func() time.Time
}

func NewLimiter(counter ActiveCounter, l *logger.Logger) *Limiter {
	return &Limiter{
		calls:         make(map[string][]time.Time),
		counter:       counter,
		logger:        l,
		maxCalls:      MaxCallsPerMinute,
		maxStrategies: MaxStrategiesPerUser,
		now:           time.Now,
	}
}

// CheckRateLimit records one market data call for the user if the sliding
// window has room. When the window is full it returns a RateLimitError whose
// RetryAfter counts the seconds until the oldest surviving call expires.
func (l *Limiter) CheckRateLimit(userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(userID, now)

	if len(recent) >= l.maxCalls {
		retryAfter := int(window.Seconds()) - int(now.Sub(recent[0]).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}

		l.logger.Warn("rate limit exceeded",
			zap.String("user_id", userID),
			zap.Int("calls_in_window", len(recent)),
			zap.Int("retry_after_seconds", retryAfter))

		return errors.NewRateLimitError(retryAfter, l.maxCalls)
	}

	l.calls[userID] = append(recent, now)

	return nil
}

// CanAddStrategy checks the active-strategy quota. A store failure denies
// the request: creating a strategy past the quota is worse than rejecting
// one below it.
func (l *Limiter) CanAddStrategy(ctx context.Context, userID string) error {
	count, err := l.counter.CountActive(ctx, userID)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to count active strategies", err)
	}

	if count >= l.maxStrategies {
		return errors.Newf(errors.ErrCodeQuotaExceeded,
			"active strategy limit reached: %d of %d", count, l.maxStrategies)
	}

	return nil
}

// Reset drops every recorded call for the user, freeing their whole window.
func (l *Limiter) Reset(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.calls, userID)

	l.logger.Info("rate limit window reset", zap.String("user_id", userID))
}

// Remaining returns how many calls the user has left in the current window.
func (l *Limiter) Remaining(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.prune(userID, l.now())

	return l.maxCalls - len(recent)
}

// Usage returns the user's current limit consumption for the limits
// endpoint.
func (l *Limiter) Usage(ctx context.Context, userID string) (UsageMetrics, error) {
	active, err := l.counter.CountActive(ctx, userID)
	if err != nil {
		return UsageMetrics{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count active strategies", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(userID, now)

	reset := 0
	if len(recent) > 0 {
		reset = int(window.Seconds()) - int(now.Sub(recent[0]).Seconds())
		if reset < 0 {
			reset = 0
		}
	}

	return UsageMetrics{
		CallsUsed:          len(recent),
		CallsRemaining:     l.maxCalls - len(recent),
		MaxCallsPerMinute:  l.maxCalls,
		WindowResetSeconds: reset,
		ActiveStrategies:   active,
		MaxStrategies:      l.maxStrategies,
	}, nil
}

// prune drops timestamps older than the window and returns the survivors.
// Callers must hold l.mu.
func (l *Limiter) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	recent := l.calls[userID][:0:len(l.calls[userID])]

	for _, t := range l.calls[userID] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	l.calls[userID] = recent

	return recent
}
