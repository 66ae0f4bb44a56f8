// Package notifier delivers live trading signals to users. Signals fan out
// to every configured channel; a failing channel never blocks the others.
package notifier

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// Notification is one trading signal addressed to a user.
type Notification struct {
	StrategyID string         `json:"strategy_id"`
	UserID     string         `json:"user_id"`
	Symbol     string         `json:"symbol"`
	Interval   types.Interval `json:"interval"`
	Signal     types.Signal   `json:"signal"`
	SentAt     time.Time      `json:"sent_at"`
}

// Notifier delivers a notification to a user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes signals to the structured log. It is always configured,
// so every signal leaves at least one trace.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info("trading signal",
		zap.String("strategy_id", notification.StrategyID),
		zap.String("user_id", notification.UserID),
		zap.String("symbol", notification.Symbol),
		zap.String("interval", string(notification.Interval)),
		zap.String("action", string(notification.Signal.Action)),
		zap.Float64("price", notification.Signal.Price),
		zap.String("reason", notification.Signal.Reason))

	return nil
}

// Multi fans a notification out to all children. Failures are collected
// into one error, but every child is attempted.
type Multi struct {
	notifiers []Notifier
}

func NewMulti(notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Notify(ctx context.Context, n Notification) error {
	var firstErr error

	failed := 0

	for _, child := range m.notifiers {
		if err := child.Notify(ctx, n); err != nil {
			failed++

			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if firstErr != nil {
		return errors.Wrapf(errors.ErrCodeNotifierFailed, firstErr,
			"%d of %d notifiers failed", failed, len(m.notifiers))
	}

	return nil
}
