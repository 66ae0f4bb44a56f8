package types

import (
	"time"

	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// MarketData represents a single OHLCV price bar.
type MarketData struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Time   time.Time `json:"time" yaml:"time"`
	Open   float64   `json:"open" yaml:"open"`
	High   float64   `json:"high" yaml:"high"`
	Low    float64   `json:"low" yaml:"low"`
	Close  float64   `json:"close" yaml:"close"`
	Volume float64   `json:"volume" yaml:"volume"`
}

// Interval is the bar spacing of a price series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
	Interval1w  Interval = "1w"
)

// intervalSeconds maps each supported interval to its length in seconds.
var intervalSeconds = map[Interval]int{
	Interval1m:  60,
	Interval5m:  300,
	Interval15m: 900,
	Interval1h:  3600,
	Interval4h:  14400,
	Interval1d:  86400,
	Interval1w:  604800,
}

// ParseInterval validates the given string and returns it as an Interval.
func ParseInterval(s string) (Interval, error) {
	interval := Interval(s)
	if _, ok := intervalSeconds[interval]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", s)
	}

	return interval, nil
}

// Seconds returns the interval length in seconds, or 0 for an unknown interval.
func (i Interval) Seconds() int {
	return intervalSeconds[i]
}

// Duration returns the interval length as a time.Duration.
func (i Interval) Duration() time.Duration {
	return time.Duration(intervalSeconds[i]) * time.Second
}

// IsValid reports whether the interval is one of the supported set.
func (i Interval) IsValid() bool {
	_, ok := intervalSeconds[i]

	return ok
}

// TradeAction is the action taken at a bar.
type TradeAction string

const (
	// TradeActionBuy commits a fraction of available capital to the asset.
	TradeActionBuy TradeAction = "BUY"
	// TradeActionSell liquidates a fraction of the current position.
	TradeActionSell TradeAction = "SELL"
	// TradeActionHold leaves capital and position unchanged.
	TradeActionHold TradeAction = "HOLD"
)

// Signal is the signal engine's verdict for the latest bar of a series.
type Signal struct {
	// Time is the time of the bar the signal was computed on.
	Time time.Time `json:"time"`
	// Action is the action the strategy calls for.
	Action TradeAction `json:"action"`
	// Symbol is the asset the signal applies to.
	Symbol string `json:"symbol"`
	// Price is the closing price of the latest bar.
	Price float64 `json:"price"`
	// PositionDelta is the suggested position fraction: positive for BUY,
	// negative for SELL, zero for HOLD.
	PositionDelta float64 `json:"position_delta"`
	// Reason is a human-readable explanation of the signal.
	Reason string `json:"reason"`
}
