// Package trading wires the signal engine, market data, persistence, rate
// limiting, scheduling and notification together into the service the API
// and CLI are built on.
package trading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/backtest"
	"github.com/rxtech-lab/argo-signal/internal/engine"
	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/notifier"
	"github.com/rxtech-lab/argo-signal/internal/ratelimit"
	"github.com/rxtech-lab/argo-signal/internal/scheduler"
	"github.com/rxtech-lab/argo-signal/internal/status"
	"github.com/rxtech-lab/argo-signal/internal/store"
	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
	"github.com/rxtech-lab/argo-signal/pkg/marketdata"
)

const (
	// DefaultInitialCapital is used when a backtest request omits capital.
	DefaultInitialCapital = 10000.0

	// backtestBars is how many bars a backtest fetches, capped by what a
	// single provider page returns.
	backtestBars = 500

	// checkTimeout bounds one scheduled signal check end to end.
	checkTimeout = 30 * time.Second
)

// BacktestRequest is a user's request to simulate a strategy.
type BacktestRequest struct {
	Symbol         string                   `json:"symbol"`
	Interval       string                   `json:"interval"`
	StrategyType   types.StrategyType       `json:"strategy_type"`
	Params         *types.StrategyParams    `json:"params,omitempty"`
	InitialCapital optional.Option[float64] `json:"initial_capital,omitempty"`
}

// LiveStatus is a live strategy enriched with its schedule state.
type LiveStatus struct {
	types.LiveStrategy

	NextCheckTime time.Time `json:"next_check_time,omitempty"`
	Paused        bool      `json:"paused"`
}

// Service is the application core. One instance serves all users.
type Service struct {
	store     store.StrategyStore
	provider  marketdata.Provider
	limiter   *ratelimit.Limiter
	tracker   *status.Tracker
	scheduler *scheduler.Scheduler
	notifier  notifier.Notifier
	simulator *backtest.Simulator
	logger    *logger.Logger
}

func NewService(
	st store.StrategyStore,
	provider marketdata.Provider,
	limiter *ratelimit.Limiter,
	tracker *status.Tracker,
	sched *scheduler.Scheduler,
	n notifier.Notifier,
	l *logger.Logger,
) *Service {
	s := &Service{
		store:     st,
		provider:  provider,
		limiter:   limiter,
		tracker:   tracker,
		scheduler: sched,
		notifier:  n,
		simulator: backtest.NewSimulator(l),
		logger:    l,
	}

	// A strategy disabled by the error threshold must also stop being
	// scheduled.
	tracker.SetDisableHook(func(strategyID string) {
		sched.RemoveJob(strategyID)
	})

	return s
}

// RunBacktest fetches recent bars, simulates the strategy and persists the
// result. Omitted parameters fall back to the interval's defaults, omitted
// capital to DefaultInitialCapital.
func (s *Service) RunBacktest(ctx context.Context, userID string, req BacktestRequest) (types.BacktestRecord, error) {
	interval, err := types.ParseInterval(req.Interval)
	if err != nil {
		return types.BacktestRecord{}, err
	}

	if req.Symbol == "" {
		return types.BacktestRecord{}, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	params, err := s.resolveParams(req.StrategyType, interval, req.Params)
	if err != nil {
		return types.BacktestRecord{}, err
	}

	cfg := types.StrategyConfig{
		ID:             uuid.New().String(),
		UserID:         userID,
		Symbol:         req.Symbol,
		Interval:       interval,
		StrategyType:   req.StrategyType,
		Params:         params,
		InitialCapital: req.InitialCapital.TakeOr(DefaultInitialCapital),
		CreatedAt:      time.Now().UTC(),
	}

	if err := cfg.Validate(); err != nil {
		return types.BacktestRecord{}, err
	}

	if err := s.limiter.CheckRateLimit(userID); err != nil {
		return types.BacktestRecord{}, err
	}

	bars, err := s.provider.GetRecentBars(ctx, cfg.Symbol, cfg.Interval, backtestBars)
	if err != nil {
		return types.BacktestRecord{}, err
	}

	result, err := s.simulator.Run(cfg, bars)
	if err != nil {
		return types.BacktestRecord{}, err
	}

	record := types.BacktestRecord{StrategyConfig: cfg, Result: result}

	if err := s.store.SaveBacktest(ctx, record); err != nil {
		return types.BacktestRecord{}, err
	}

	return record, nil
}

// GetBacktest returns one of the user's backtests.
func (s *Service) GetBacktest(ctx context.Context, userID, id string) (types.BacktestRecord, error) {
	return s.store.GetBacktest(ctx, userID, id)
}

// ListBacktests returns the user's backtests, newest first.
func (s *Service) ListBacktests(ctx context.Context, userID string) ([]types.BacktestRecord, error) {
	return s.store.ListBacktests(ctx, userID)
}

// GreatestReturn returns the user's best-performing backtest.
func (s *Service) GreatestReturn(ctx context.Context, userID string) (types.BacktestRecord, error) {
	return s.store.GreatestReturn(ctx, userID)
}

// StartLive promotes a completed backtest to live monitoring: it persists
// the live strategy and schedules a periodic signal check at the strategy's
// interval. The active-strategy quota is enforced before anything is
// created.
func (s *Service) StartLive(ctx context.Context, userID, backtestID string) (types.LiveStrategy, error) {
	record, err := s.store.GetBacktest(ctx, userID, backtestID)
	if err != nil {
		return types.LiveStrategy{}, err
	}

	if err := s.limiter.CheckRateLimit(userID); err != nil {
		return types.LiveStrategy{}, err
	}

	if err := s.limiter.CanAddStrategy(ctx, userID); err != nil {
		return types.LiveStrategy{}, err
	}

	cfg := record.StrategyConfig
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = time.Now().UTC()

	ls := types.LiveStrategy{
		StrategyConfig: cfg,
		BacktestID:     backtestID,
		IsActive:       true,
	}

	if err := s.store.CreateLiveStrategy(ctx, ls); err != nil {
		return types.LiveStrategy{}, err
	}

	if err := s.scheduleChecks(ls); err != nil {
		return types.LiveStrategy{}, err
	}

	s.logger.Info("live strategy started",
		zap.String("strategy_id", ls.ID),
		zap.String("user_id", userID),
		zap.String("symbol", ls.Symbol),
		zap.String("interval", string(ls.Interval)))

	return ls, nil
}

// StopLive deactivates the strategy and removes its scheduled check.
// Stopping an already stopped strategy is a no-op.
func (s *Service) StopLive(ctx context.Context, userID, id string) error {
	ls, err := s.store.GetLiveStrategy(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.SetActive(ctx, ls.ID, false); err != nil {
		return err
	}

	s.scheduler.RemoveJob(ls.ID)
	s.tracker.Forget(ls.ID)

	s.logger.Info("live strategy stopped",
		zap.String("strategy_id", ls.ID),
		zap.String("user_id", userID))

	return nil
}

// PauseLive suspends the strategy's scheduled checks without deactivating
// it.
func (s *Service) PauseLive(ctx context.Context, userID, id string) error {
	ls, err := s.store.GetLiveStrategy(ctx, userID, id)
	if err != nil {
		return err
	}

	if !s.scheduler.Pause(ls.ID) {
		return errors.Newf(errors.ErrCodeJobNotFound, "no scheduled check for strategy %s", id)
	}

	return nil
}

// ResumeLive resumes a paused strategy's checks.
func (s *Service) ResumeLive(ctx context.Context, userID, id string) error {
	ls, err := s.store.GetLiveStrategy(ctx, userID, id)
	if err != nil {
		return err
	}

	if !s.scheduler.Resume(ls.ID) {
		return errors.Newf(errors.ErrCodeJobNotFound, "no scheduled check for strategy %s", id)
	}

	return nil
}

// GetLiveStatus returns the strategy with its current schedule state.
func (s *Service) GetLiveStatus(ctx context.Context, userID, id string) (LiveStatus, error) {
	ls, err := s.store.GetLiveStrategy(ctx, userID, id)
	if err != nil {
		return LiveStatus{}, err
	}

	return s.liveStatus(ls), nil
}

// ListLive returns all of the user's live strategies with schedule state.
func (s *Service) ListLive(ctx context.Context, userID string) ([]LiveStatus, error) {
	strategies, err := s.store.ListLiveStrategies(ctx, userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]LiveStatus, 0, len(strategies))
	for _, ls := range strategies {
		statuses = append(statuses, s.liveStatus(ls))
	}

	return statuses, nil
}

// Usage returns the user's rate limit and quota consumption.
func (s *Service) Usage(ctx context.Context, userID string) (ratelimit.UsageMetrics, error) {
	return s.limiter.Usage(ctx, userID)
}

// ResetLimits clears the user's call window, restoring their full per-minute
// allowance. The active-strategy quota is derived from the store and is not
// affected.
func (s *Service) ResetLimits(userID string) {
	s.limiter.Reset(userID)
}

// Resume reschedules checks for every strategy that was active when the
// process last stopped and seeds their persisted error counts.
func (s *Service) Resume(ctx context.Context) error {
	strategies, err := s.store.ListAllActive(ctx)
	if err != nil {
		return err
	}

	for _, ls := range strategies {
		s.tracker.Seed(ls.ID, ls.ErrorCount)

		if err := s.scheduleChecks(ls); err != nil {
			return err
		}
	}

	s.logger.Info("resumed live monitoring", zap.Int("strategies", len(strategies)))

	return nil
}

// Shutdown stops all scheduled checks and waits for in-flight ones.
func (s *Service) Shutdown() {
	s.scheduler.Shutdown()
}

// CheckSignals runs one signal check for the strategy: reload its state,
// fetch the lookback window, evaluate the latest bar and notify on BUY or
// SELL. A strategy that was stopped or deleted since the check was scheduled
// is skipped silently; a denied rate limit skips the check without counting
// it as a failure; any other fault feeds the error threshold.
func (s *Service) CheckSignals(ctx context.Context, userID, strategyID string) {
	now := time.Now().UTC()

	// The schedule can race a stop: always act on the stored state, not on
	// the snapshot captured when the job was registered.
	ls, err := s.store.GetLiveStrategy(ctx, userID, strategyID)
	if err != nil || !ls.IsActive {
		return
	}

	if err := s.limiter.CheckRateLimit(ls.UserID); err != nil {
		// The user's own traffic can starve scheduled checks; skipping is
		// recoverable, so it does not feed the error threshold.
		s.logger.Warn("signal check skipped by rate limit",
			zap.String("strategy_id", ls.ID),
			zap.String("user_id", ls.UserID))

		return
	}

	lookback := ls.Params.RequiredLookback(ls.StrategyType)

	bars, err := s.provider.GetRecentBars(ctx, ls.Symbol, ls.Interval, lookback+1)
	if err != nil {
		s.tracker.RecordFailure(ctx, ls.ID, now, err)

		return
	}

	signal, err := engine.Evaluate(bars, ls.StrategyType, ls.Params)
	if err != nil {
		s.tracker.RecordFailure(ctx, ls.ID, now,
			errors.Wrap(errors.ErrCodeSignalCheck, "signal evaluation failed", err))

		return
	}

	fired := signal.Action != types.TradeActionHold
	s.tracker.RecordSuccess(ctx, ls.ID, now, fired)

	if !fired {
		return
	}

	notification := notifier.Notification{
		StrategyID: ls.ID,
		UserID:     ls.UserID,
		Symbol:     ls.Symbol,
		Interval:   ls.Interval,
		Signal:     signal,
		SentAt:     now,
	}

	if err := s.notifier.Notify(ctx, notification); err != nil {
		// The signal is already persisted; delivery is best effort.
		s.logger.Error("failed to deliver signal notification",
			zap.String("strategy_id", ls.ID),
			zap.Error(err))
	}
}

func (s *Service) scheduleChecks(ls types.LiveStrategy) error {
	userID, strategyID := ls.UserID, ls.ID

	return s.scheduler.AddJob(strategyID, ls.Interval.Duration(), func(ctx context.Context) {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		s.CheckSignals(checkCtx, userID, strategyID)
	})
}

func (s *Service) liveStatus(ls types.LiveStrategy) LiveStatus {
	st := LiveStatus{LiveStrategy: ls}

	if next, ok := s.scheduler.NextRun(ls.ID); ok {
		st.NextCheckTime = next
	}

	for _, job := range s.scheduler.Jobs() {
		if job.ID == ls.ID {
			st.Paused = job.Paused

			break
		}
	}

	return st
}

func (s *Service) resolveParams(strategyType types.StrategyType, interval types.Interval, params *types.StrategyParams) (types.StrategyParams, error) {
	if params != nil {
		return *params, params.Validate(strategyType)
	}

	return types.DefaultParams(strategyType, interval)
}
