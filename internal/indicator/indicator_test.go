package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

type IndicatorTestSuite struct {
	suite.Suite
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) TestSMA() {
	values := []float64{1, 2, 3, 4, 5}

	sma, err := SMA(values, 5)
	suite.NoError(err)
	suite.InDelta(3.0, sma, 1e-9)

	sma, err = SMA(values, 2)
	suite.NoError(err)
	suite.InDelta(4.5, sma, 1e-9)
}

func (suite *IndicatorTestSuite) TestSMAInvalidPeriod() {
	_, err := SMA([]float64{1, 2, 3}, 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestSMAInsufficientData() {
	_, err := SMA([]float64{1, 2, 3}, 4)
	suite.Error(err)
	suite.True(errors.IsInsufficientDataError(err))
}

func (suite *IndicatorTestSuite) TestSMAAt() {
	values := []float64{1, 2, 3, 4, 5}

	sma, ok := SMAAt(values, 4, 3)
	suite.True(ok)
	suite.InDelta(4.0, sma, 1e-9)

	sma, ok = SMAAt(values, 2, 3)
	suite.True(ok)
	suite.InDelta(2.0, sma, 1e-9)

	// Not enough preceding values.
	_, ok = SMAAt(values, 1, 3)
	suite.False(ok)

	// Index out of range.
	_, ok = SMAAt(values, 5, 3)
	suite.False(ok)
}

func (suite *IndicatorTestSuite) TestEMASeriesSeededWithFirstValue() {
	values := []float64{10, 10, 10, 10}

	ema, err := EMASeries(values, 3)
	suite.NoError(err)
	suite.Len(ema, 4)

	// A constant series has a constant EMA.
	for _, v := range ema {
		suite.InDelta(10.0, v, 1e-9)
	}
}

func (suite *IndicatorTestSuite) TestEMASeriesRecursion() {
	values := []float64{1, 2, 3}

	// span=1 gives alpha=1: the EMA tracks the series exactly.
	ema, err := EMASeries(values, 1)
	suite.NoError(err)
	suite.Equal(values, ema)

	// span=3 gives alpha=0.5.
	ema, err = EMASeries(values, 3)
	suite.NoError(err)
	suite.InDelta(1.0, ema[0], 1e-9)
	suite.InDelta(1.5, ema[1], 1e-9)
	suite.InDelta(2.25, ema[2], 1e-9)
}

func (suite *IndicatorTestSuite) TestEMASeriesEmpty() {
	_, err := EMASeries(nil, 3)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInsufficientData))
}

func (suite *IndicatorTestSuite) TestEMASeriesInvalidSpan() {
	_, err := EMASeries([]float64{1, 2}, -1)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestMACDSeries() {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8}

	macdLine, signalLine, err := MACDSeries(values, 2, 4, 3)
	suite.NoError(err)
	suite.Len(macdLine, len(values))
	suite.Len(signalLine, len(values))

	// First element: both EMAs are seeded with values[0], so MACD starts at 0.
	suite.InDelta(0.0, macdLine[0], 1e-9)
	suite.InDelta(0.0, signalLine[0], 1e-9)

	// On a steadily rising series the fast EMA stays above the slow EMA.
	for i := 1; i < len(values); i++ {
		suite.Greater(macdLine[i], 0.0)
	}
}

func (suite *IndicatorTestSuite) TestMACDSeriesInvalidPeriods() {
	_, _, err := MACDSeries([]float64{1, 2, 3}, 0, 4, 3)
	suite.Error(err)

	_, _, err = MACDSeries([]float64{1, 2, 3}, 2, 4, 0)
	suite.Error(err)
}
