package trading

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

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

type fakeProvider struct {
	bars []types.MarketData
	err  error
}

func (f *fakeProvider) GetRecentBars(_ context.Context, symbol string, _ types.Interval, limit int) ([]types.MarketData, error) {
	if f.err != nil {
		return nil, f.err
	}

	bars := f.bars
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	out := make([]types.MarketData, len(bars))
	for i, b := range bars {
		b.Symbol = symbol
		out[i] = b
	}

	return out, nil
}

func (f *fakeProvider) Name() marketdata.ProviderType {
	return marketdata.ProviderType("fake")
}

type capturingNotifier struct {
	notifications []notifier.Notification
}

func (c *capturingNotifier) Notify(_ context.Context, n notifier.Notification) error {
	c.notifications = append(c.notifications, n)

	return nil
}

func barsFromCloses(closes []float64) []types.MarketData {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.MarketData, len(closes))

	for i, c := range closes {
		bars[i] = types.MarketData{
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 100,
		}
	}

	return bars
}

type ServiceTestSuite struct {
	suite.Suite

	store    *store.DuckDBStore
	provider *fakeProvider
	notifier *capturingNotifier
	tracker  *status.Tracker
	sched    *scheduler.Scheduler
	service  *Service
	ctx      context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}

func (suite *ServiceTestSuite) SetupTest() {
	log := logger.NewNopLogger()

	var err error

	suite.store, err = store.NewDuckDBStore(":memory:", log)
	suite.Require().NoError(err)

	suite.provider = &fakeProvider{bars: barsFromCloses([]float64{10, 9, 8, 9, 12})}
	suite.notifier = &capturingNotifier{}
	suite.tracker = status.NewTracker(suite.store, log)
	suite.sched = scheduler.NewScheduler(log)
	limiter := ratelimit.NewLimiter(suite.store, log)

	suite.service = NewService(suite.store, suite.provider, limiter, suite.tracker, suite.sched, suite.notifier, log)
	suite.ctx = context.Background()
}

func (suite *ServiceTestSuite) TearDownTest() {
	suite.service.Shutdown()
	suite.NoError(suite.store.Close())
}

func (suite *ServiceTestSuite) maRequest() BacktestRequest {
	return BacktestRequest{
		Symbol:       "BTCUSDT",
		Interval:     "1h",
		StrategyType: types.StrategyTypeMACrossover,
		Params:       &types.StrategyParams{MA: &types.MAParams{ShortPeriod: 2, LongPeriod: 3}},
	}
}

func (suite *ServiceTestSuite) runBacktest() types.BacktestRecord {
	record, err := suite.service.RunBacktest(suite.ctx, "alice", suite.maRequest())
	suite.Require().NoError(err)

	return record
}

func (suite *ServiceTestSuite) TestRunBacktestPersistsResult() {
	record := suite.runBacktest()

	suite.NotEmpty(record.ID)
	suite.Equal("alice", record.UserID)
	suite.Require().NotNil(record.Result)
	suite.Len(record.Result.Trades, 5)
	suite.InDelta(DefaultInitialCapital, record.InitialCapital, 1e-9)

	stored, err := suite.service.GetBacktest(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)
	suite.Equal(record.ID, stored.ID)
}

func (suite *ServiceTestSuite) TestRunBacktestCustomCapital() {
	req := suite.maRequest()
	req.InitialCapital = optional.Some(2500.0)

	record, err := suite.service.RunBacktest(suite.ctx, "alice", req)
	suite.Require().NoError(err)
	suite.InDelta(2500.0, record.InitialCapital, 1e-9)
}

func (suite *ServiceTestSuite) TestRunBacktestDefaultParams() {
	req := suite.maRequest()
	req.Params = nil
	// Longer history so the default 20/50 hourly windows have data.
	closes := make([]float64, 120)
	for i := range closes {
		closes[i] = 100 + float64(i%7)
	}

	suite.provider.bars = barsFromCloses(closes)

	record, err := suite.service.RunBacktest(suite.ctx, "alice", req)
	suite.Require().NoError(err)
	suite.Require().NotNil(record.Params.MA)
	suite.Equal(20, record.Params.MA.ShortPeriod)
	suite.Equal(50, record.Params.MA.LongPeriod)
}

func (suite *ServiceTestSuite) TestRunBacktestValidation() {
	req := suite.maRequest()
	req.Interval = "2h"
	_, err := suite.service.RunBacktest(suite.ctx, "alice", req)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))

	req = suite.maRequest()
	req.Symbol = ""
	_, err = suite.service.RunBacktest(suite.ctx, "alice", req)
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *ServiceTestSuite) TestRunBacktestRateLimited() {
	for i := 0; i < ratelimit.MaxCallsPerMinute; i++ {
		suite.runBacktest()
	}

	_, err := suite.service.RunBacktest(suite.ctx, "alice", suite.maRequest())
	suite.Error(err)
	suite.True(errors.IsRateLimitError(err))
}

func (suite *ServiceTestSuite) TestStartLiveSchedulesChecks() {
	record := suite.runBacktest()

	ls, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)
	suite.True(ls.IsActive)
	suite.Equal(record.ID, ls.BacktestID)

	st, err := suite.service.GetLiveStatus(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(st.NextCheckTime.IsZero())
	suite.False(st.Paused)
}

func (suite *ServiceTestSuite) TestStartLiveUnknownBacktest() {
	_, err := suite.service.StartLive(suite.ctx, "alice", "missing")
	suite.True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (suite *ServiceTestSuite) TestStartLiveRateLimited() {
	record := suite.runBacktest()

	for i := 1; i < ratelimit.MaxCallsPerMinute; i++ {
		suite.runBacktest()
	}

	_, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Error(err)
	suite.True(errors.IsRateLimitError(err))

	// The denied request must not have created anything.
	count, err := suite.store.CountActive(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *ServiceTestSuite) TestStartLiveQuota() {
	record := suite.runBacktest()

	for i := 0; i < ratelimit.MaxStrategiesPerUser; i++ {
		_, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
		suite.Require().NoError(err)
	}

	_, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeQuotaExceeded))
}

func (suite *ServiceTestSuite) TestStopLiveFreesQuota() {
	record := suite.runBacktest()

	ls, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.StopLive(suite.ctx, "alice", ls.ID))

	st, err := suite.service.GetLiveStatus(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(st.IsActive)
	suite.True(st.NextCheckTime.IsZero())

	count, err := suite.store.CountActive(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Zero(count)
}

func (suite *ServiceTestSuite) TestStopLiveOwnership() {
	record := suite.runBacktest()

	ls, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)

	err = suite.service.StopLive(suite.ctx, "bob", ls.ID)
	suite.True(errors.HasCode(err, errors.ErrCodeNotOwned))
}

func (suite *ServiceTestSuite) TestPauseAndResume() {
	record := suite.runBacktest()

	ls, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)

	suite.NoError(suite.service.PauseLive(suite.ctx, "alice", ls.ID))

	st, err := suite.service.GetLiveStatus(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.True(st.Paused)

	suite.NoError(suite.service.ResumeLive(suite.ctx, "alice", ls.ID))

	st, err = suite.service.GetLiveStatus(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(st.Paused)
}

func (suite *ServiceTestSuite) startLive() types.LiveStrategy {
	record := suite.runBacktest()

	ls, err := suite.service.StartLive(suite.ctx, "alice", record.ID)
	suite.Require().NoError(err)

	return ls
}

func (suite *ServiceTestSuite) TestCheckSignalsNotifiesOnCrossover() {
	ls := suite.startLive()

	// The fake series ends in a short-over-long crossover.
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)

	suite.Require().Len(suite.notifier.notifications, 1)
	notification := suite.notifier.notifications[0]
	suite.Equal(ls.ID, notification.StrategyID)
	suite.Equal(types.TradeActionBuy, notification.Signal.Action)

	stored, err := suite.store.GetLiveStrategy(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(stored.LastCheckTime.IsZero())
	suite.False(stored.LastSignalTime.IsZero())
	suite.Zero(stored.ErrorCount)
}

func (suite *ServiceTestSuite) TestCheckSignalsHoldDoesNotNotify() {
	ls := suite.startLive()

	suite.provider.bars = barsFromCloses([]float64{5, 5, 5, 5, 5})
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)

	suite.Empty(suite.notifier.notifications)

	stored, err := suite.store.GetLiveStrategy(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(stored.LastCheckTime.IsZero())
	suite.True(stored.LastSignalTime.IsZero())
}

func (suite *ServiceTestSuite) TestRepeatedFailuresDisableStrategy() {
	ls := suite.startLive()

	suite.provider.err = errors.New(errors.ErrCodeMarketDataFetchFailed, "feed down")

	for i := 0; i < status.ErrorThreshold; i++ {
		suite.service.CheckSignals(suite.ctx, "alice", ls.ID)
	}

	stored, err := suite.store.GetLiveStrategy(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.False(stored.IsActive)
	suite.Equal(status.ErrorThreshold, stored.ErrorCount)

	// The scheduled check is gone too.
	_, ok := suite.sched.NextRun(ls.ID)
	suite.False(ok)
}

func (suite *ServiceTestSuite) TestFailureStreakResetsOnSuccess() {
	ls := suite.startLive()

	suite.provider.err = errors.New(errors.ErrCodeMarketDataFetchFailed, "feed down")
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)
	suite.Equal(2, suite.tracker.ErrorCount(ls.ID))

	suite.provider.err = nil
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)
	suite.Zero(suite.tracker.ErrorCount(ls.ID))
}

func (suite *ServiceTestSuite) TestRateLimitedCheckIsNotAFailure() {
	ls := suite.startLive()

	// The backtest and StartLive consumed two calls; exhaust the rest of the
	// window.
	for i := 2; i < ratelimit.MaxCallsPerMinute; i++ {
		suite.runBacktest()
	}

	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)
	suite.Zero(suite.tracker.ErrorCount(ls.ID))
	suite.Empty(suite.notifier.notifications)
}

func (suite *ServiceTestSuite) TestCheckAfterStopIsSilent() {
	ls := suite.startLive()

	suite.Require().NoError(suite.service.StopLive(suite.ctx, "alice", ls.ID))

	// A tick that was already in flight when the strategy was stopped must
	// act on the stored state: no fetch, no notification, no status writes.
	suite.service.CheckSignals(suite.ctx, "alice", ls.ID)

	suite.Empty(suite.notifier.notifications)
	suite.Zero(suite.tracker.ErrorCount(ls.ID))

	stored, err := suite.store.GetLiveStrategy(suite.ctx, "alice", ls.ID)
	suite.Require().NoError(err)
	suite.True(stored.LastCheckTime.IsZero())

	// An id that never existed is skipped the same way.
	suite.NotPanics(func() {
		suite.service.CheckSignals(suite.ctx, "alice", "ghost")
	})
}

func (suite *ServiceTestSuite) TestResumeReschedulesActiveStrategies() {
	ls := suite.startLive()

	// Simulate a restart: a fresh scheduler with nothing registered.
	suite.sched.RemoveJob(ls.ID)
	_, ok := suite.sched.NextRun(ls.ID)
	suite.Require().False(ok)

	suite.Require().NoError(suite.service.Resume(suite.ctx))

	_, ok = suite.sched.NextRun(ls.ID)
	suite.True(ok)
}

func (suite *ServiceTestSuite) TestUsageReflectsActivity() {
	suite.runBacktest()
	suite.startLive()

	usage, err := suite.service.Usage(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Equal(3, usage.CallsUsed)
	suite.Equal(1, usage.ActiveStrategies)

	suite.service.ResetLimits("alice")

	usage, err = suite.service.Usage(suite.ctx, "alice")
	suite.Require().NoError(err)
	suite.Zero(usage.CallsUsed)
	suite.Equal(1, usage.ActiveStrategies)
}
