package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signal/internal/logger"
)

type SchedulerTestSuite struct {
	suite.Suite

	scheduler *Scheduler
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (suite *SchedulerTestSuite) SetupTest() {
	suite.scheduler = NewScheduler(logger.NewNopLogger())
}

func (suite *SchedulerTestSuite) TearDownTest() {
	suite.scheduler.Shutdown()
}

func (suite *SchedulerTestSuite) TestJobRunsPeriodically() {
	var runs atomic.Int64

	err := suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	})
	suite.Require().NoError(err)

	suite.Eventually(func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func (suite *SchedulerTestSuite) TestAddJobRejectsNonPositiveInterval() {
	err := suite.scheduler.AddJob("job-1", 0, func(context.Context) {})
	suite.Error(err)
}

func (suite *SchedulerTestSuite) TestDuplicateIDReplacesJob() {
	var oldRuns, newRuns atomic.Int64

	suite.Require().NoError(suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {
		oldRuns.Add(1)
	}))
	suite.Require().NoError(suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {
		newRuns.Add(1)
	}))

	suite.Eventually(func() bool { return newRuns.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	// The replaced job's goroutine was cancelled before it ever fired.
	suite.Zero(oldRuns.Load())
	suite.Len(suite.scheduler.Jobs(), 1)
}

func (suite *SchedulerTestSuite) TestRemoveUnknownJobIsNoOp() {
	suite.False(suite.scheduler.RemoveJob("missing"))
}

func (suite *SchedulerTestSuite) TestRemoveStopsJob() {
	var runs atomic.Int64

	suite.Require().NoError(suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}))

	suite.Eventually(func() bool { return runs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)
	suite.True(suite.scheduler.RemoveJob("job-1"))

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	// One in-flight fire may land right at removal time; nothing beyond.
	suite.LessOrEqual(runs.Load(), after+1)
	suite.Empty(suite.scheduler.Jobs())
}

func (suite *SchedulerTestSuite) TestPauseAndResume() {
	var runs atomic.Int64

	suite.Require().NoError(suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {
		runs.Add(1)
	}))

	suite.Eventually(func() bool { return runs.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	suite.True(suite.scheduler.Pause("job-1"))
	time.Sleep(30 * time.Millisecond)
	paused := runs.Load()
	time.Sleep(50 * time.Millisecond)
	suite.LessOrEqual(runs.Load(), paused+1)

	suite.True(suite.scheduler.Resume("job-1"))
	suite.Eventually(func() bool { return runs.Load() > paused+1 }, 2*time.Second, 5*time.Millisecond)

	suite.False(suite.scheduler.Pause("missing"))
	suite.False(suite.scheduler.Resume("missing"))
}

func (suite *SchedulerTestSuite) TestRunsNeverOverlap() {
	var concurrent, peak atomic.Int64

	suite.Require().NoError(suite.scheduler.AddJob("job-1", 5*time.Millisecond, func(context.Context) {
		cur := concurrent.Add(1)
		if cur > peak.Load() {
			peak.Store(cur)
		}

		time.Sleep(20 * time.Millisecond)
		concurrent.Add(-1)
	}))

	time.Sleep(150 * time.Millisecond)
	suite.Equal(int64(1), peak.Load())
}

func (suite *SchedulerTestSuite) TestRemoveDoesNotCancelInFlightRun() {
	started := make(chan struct{})
	release := make(chan struct{})

	var interrupted atomic.Bool

	suite.Require().NoError(suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(ctx context.Context) {
		close(started)

		select {
		case <-ctx.Done():
			interrupted.Store(true)
		case <-release:
		}
	}))

	<-started
	suite.True(suite.scheduler.RemoveJob("job-1"))
	close(release)

	time.Sleep(20 * time.Millisecond)
	suite.False(interrupted.Load())
}

func (suite *SchedulerTestSuite) TestMisfiredRunIsSkipped() {
	const interval = 50 * time.Millisecond

	var mu sync.Mutex

	var starts []time.Time

	suite.Require().NoError(suite.scheduler.AddJob("laggard", interval, func(context.Context) {
		mu.Lock()
		starts = append(starts, time.Now())
		first := len(starts) == 1
		mu.Unlock()

		if first {
			// Overrun the next fire by more than one interval.
			time.Sleep(3 * interval)
		}
	}))

	suite.Require().Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(starts) >= 2
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	gap := starts[1].Sub(starts[0])
	mu.Unlock()

	// The fire missed during the overrun is skipped, so the second run waits
	// for the next aligned slot instead of firing the moment the first run
	// returns.
	suite.GreaterOrEqual(gap, 3*interval+interval/2)
}

func (suite *SchedulerTestSuite) TestNextRunIsInTheFuture() {
	suite.Require().NoError(suite.scheduler.AddJob("job-1", time.Hour, func(context.Context) {}))

	next, ok := suite.scheduler.NextRun("job-1")
	suite.True(ok)
	suite.True(next.After(time.Now()))

	_, ok = suite.scheduler.NextRun("missing")
	suite.False(ok)
}

func (suite *SchedulerTestSuite) TestShutdownRejectsNewJobs() {
	suite.scheduler.Shutdown()

	err := suite.scheduler.AddJob("job-1", 10*time.Millisecond, func(context.Context) {})
	suite.Error(err)
}
