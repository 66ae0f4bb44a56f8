// Package indicator implements the moving-average math the signal engine is
// built on: simple moving averages, exponential moving averages and the MACD
// line / signal line pair derived from them.
package indicator

import (
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// SMA returns the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	if len(values) < period {
		return 0, errors.NewInsufficientDataErrorf(period, len(values), "",
			"insufficient data for SMA calculation: required %d, got %d", period, len(values))
	}

	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}

	return sum / float64(period), nil
}

// SMAAt returns the simple moving average of the period values ending at
// index idx (inclusive). The second return value is false when fewer than
// period values precede idx.
func SMAAt(values []float64, idx, period int) (float64, bool) {
	if period <= 0 || idx < period-1 || idx >= len(values) {
		return 0, false
	}

	sum := 0.0
	for i := idx - period + 1; i <= idx; i++ {
		sum += values[i]
	}

	return sum / float64(period), true
}

// EMASeries returns the exponential moving average of the whole series with
// smoothing factor alpha = 2/(span+1). The recursion is seeded with the first
// observation, so ema[0] == values[0] and every later entry is
// alpha*value + (1-alpha)*previous.
func EMASeries(values []float64, span int) ([]float64, error) {
	if span <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "span must be a positive integer, got %d", span)
	}

	if len(values) == 0 {
		return nil, errors.New(errors.ErrCodeInsufficientData, "cannot compute EMA of an empty series")
	}

	alpha := 2.0 / float64(span+1)
	ema := make([]float64, len(values))
	ema[0] = values[0]

	for i := 1; i < len(values); i++ {
		ema[i] = alpha*values[i] + (1-alpha)*ema[i-1]
	}

	return ema, nil
}

// MACDSeries returns the MACD line (fast EMA minus slow EMA) and its signal
// line (EMA of the MACD line over signalPeriod), element-aligned with the
// input series.
func MACDSeries(values []float64, fastPeriod, slowPeriod, signalPeriod int) (macdLine, signalLine []float64, err error) {
	fastEMA, err := EMASeries(values, fastPeriod)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPeriod, "failed to compute fast EMA", err)
	}

	slowEMA, err := EMASeries(values, slowPeriod)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPeriod, "failed to compute slow EMA", err)
	}

	macdLine = make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine, err = EMASeries(macdLine, signalPeriod)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInvalidPeriod, "failed to compute signal line", err)
	}

	return macdLine, signalLine, nil
}
