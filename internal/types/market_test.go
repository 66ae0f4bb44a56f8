package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestParseIntervalValid() {
	for _, s := range []string{"1m", "5m", "15m", "1h", "4h", "1d", "1w"} {
		interval, err := ParseInterval(s)
		suite.NoError(err)
		suite.Equal(Interval(s), interval)
		suite.True(interval.IsValid())
	}
}

func (suite *MarketTestSuite) TestParseIntervalInvalid() {
	for _, s := range []string{"", "2h", "1M", "daily"} {
		_, err := ParseInterval(s)
		suite.Error(err, "interval %q should be rejected", s)
	}
}

func (suite *MarketTestSuite) TestIntervalSeconds() {
	suite.Equal(60, Interval1m.Seconds())
	suite.Equal(3600, Interval1h.Seconds())
	suite.Equal(86400, Interval1d.Seconds())
	suite.Equal(0, Interval("2h").Seconds())
}

func (suite *MarketTestSuite) TestIntervalDuration() {
	suite.Equal(5*time.Minute, Interval5m.Duration())
	suite.Equal(7*24*time.Hour, Interval1w.Duration())
}
