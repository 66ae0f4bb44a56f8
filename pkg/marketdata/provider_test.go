package marketdata

import (
	"testing"

	"github.com/adshao/go-binance/v2"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

type ProviderTestSuite struct {
	suite.Suite
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) TestSupportedProviders() {
	providers := SupportedProviders()
	suite.Contains(providers, "binance")
	suite.Contains(providers, "polygon")
}

func (suite *ProviderTestSuite) TestGetProviderInfo() {
	info, err := GetProviderInfo("binance")
	suite.NoError(err)
	suite.False(info.RequiresAuth)

	info, err = GetProviderInfo("polygon")
	suite.NoError(err)
	suite.True(info.RequiresAuth)

	_, err = GetProviderInfo("yahoo")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}

func (suite *ProviderTestSuite) TestNewProvider() {
	provider, err := NewProvider(ProviderBinance, "")
	suite.NoError(err)
	suite.Equal(ProviderBinance, provider.Name())

	provider, err = NewProvider(ProviderPolygon, "test-key")
	suite.NoError(err)
	suite.Equal(ProviderPolygon, provider.Name())

	_, err = NewProvider(ProviderPolygon, "")
	suite.Error(err)

	_, err = NewProvider(ProviderType("yahoo"), "")
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
}

func (suite *ProviderTestSuite) TestParseKline() {
	kline := &binance.Kline{
		OpenTime: 1700000000000,
		Open:     "100.5",
		High:     "105.25",
		Low:      "99.75",
		Close:    "104.0",
		Volume:   "1234.5",
	}

	bar, err := parseKline("BTCUSDT", kline)
	suite.Require().NoError(err)
	suite.Equal("BTCUSDT", bar.Symbol)
	suite.InDelta(100.5, bar.Open, 1e-9)
	suite.InDelta(105.25, bar.High, 1e-9)
	suite.InDelta(99.75, bar.Low, 1e-9)
	suite.InDelta(104.0, bar.Close, 1e-9)
	suite.InDelta(1234.5, bar.Volume, 1e-9)
	suite.Equal(int64(1700000000000), bar.Time.UnixMilli())
}

func (suite *ProviderTestSuite) TestParseKlineBadPrice() {
	kline := &binance.Kline{
		Open:   "not-a-number",
		High:   "1",
		Low:    "1",
		Close:  "1",
		Volume: "1",
	}

	_, err := parseKline("BTCUSDT", kline)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func (suite *ProviderTestSuite) TestPolygonTimespan() {
	cases := []struct {
		interval   types.Interval
		multiplier int
		timespan   models.Timespan
	}{
		{types.Interval1m, 1, models.Minute},
		{types.Interval5m, 5, models.Minute},
		{types.Interval15m, 15, models.Minute},
		{types.Interval1h, 1, models.Hour},
		{types.Interval4h, 4, models.Hour},
		{types.Interval1d, 1, models.Day},
		{types.Interval1w, 1, models.Week},
	}

	for _, tc := range cases {
		multiplier, timespan, err := polygonTimespan(tc.interval)
		suite.NoError(err, "interval %s", tc.interval)
		suite.Equal(tc.multiplier, multiplier)
		suite.Equal(tc.timespan, timespan)
	}

	_, _, err := polygonTimespan(types.Interval("2h"))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidInterval))
}
