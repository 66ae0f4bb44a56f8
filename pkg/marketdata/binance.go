package marketdata

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// BinanceProvider fetches klines from the public Binance spot API. No
// credentials are needed for market data.
type BinanceProvider struct {
	client *binance.Client
}

func NewBinanceProvider() *BinanceProvider {
	return &BinanceProvider{client: binance.NewClient("", "")}
}

func (p *BinanceProvider) Name() ProviderType {
	return ProviderBinance
}

// GetRecentBars fetches the most recent limit klines for the symbol. The
// supported intervals map one-to-one onto Binance interval strings.
func (p *BinanceProvider) GetRecentBars(ctx context.Context, symbol string, interval types.Interval, limit int) ([]types.MarketData, error) {
	if !interval.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", interval)
	}

	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(string(interval)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch klines for %s", symbol)
	}

	if len(klines) == 0 {
		return nil, errors.Newf(errors.ErrCodeDataUnavailable, "no price data returned for %s", symbol)
	}

	bars := make([]types.MarketData, 0, len(klines))

	for _, k := range klines {
		bar, err := parseKline(symbol, k)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

// parseKline converts a Binance kline to a MarketData bar. Binance returns
// prices as strings; the bar timestamp is the kline's open time.
func parseKline(symbol string, k *binance.Kline) (types.MarketData, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad open price %q", k.Open)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad high price %q", k.High)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad low price %q", k.Low)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad close price %q", k.Close)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "bad volume %q", k.Volume)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
