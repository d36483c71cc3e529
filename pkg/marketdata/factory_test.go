package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-history/internal/cache"
	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/writer"
)

type FactoryTestSuite struct {
	suite.Suite
}

func TestFactorySuite(t *testing.T) {
	suite.Run(t, new(FactoryTestSuite))
}

func (suite *FactoryTestSuite) TestNewWriterFactory() {
	csvFactory, err := NewWriterFactory(WriterCSV)
	suite.Require().NoError(err)
	suite.IsType(&writer.CSVWriter{}, csvFactory("x.csv"))

	parquetFactory, err := NewWriterFactory(WriterParquet)
	suite.Require().NoError(err)
	suite.IsType(&writer.DuckDBWriter{}, parquetFactory("x.parquet"))

	_, err = NewWriterFactory("xlsx")
	suite.True(errors.IsConfigurationError(err))

	suite.Equal("csv", WriterCSV.Extension())
	suite.Equal("parquet", WriterParquet.Extension())
}

func (suite *FactoryTestSuite) TestNewFetcherProviders() {
	tests := []struct {
		name     string
		config   FetcherConfig
		wantType any
	}{
		{name: "yahoo", config: FetcherConfig{Provider: provider.ProviderYahoo}, wantType: &provider.YahooClient{}},
		{name: "polygon", config: FetcherConfig{Provider: provider.ProviderPolygon, PolygonApiKey: "key"}, wantType: &provider.PolygonClient{}},
		{name: "binance", config: FetcherConfig{Provider: provider.ProviderBinance, BinanceBaseURL: "http://localhost:9000"}, wantType: &provider.BinanceClient{}},
		{name: "rate limited", config: FetcherConfig{Provider: provider.ProviderYahoo, RequestsPerMinute: 30}, wantType: &provider.RateLimitedFetcher{}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			fetcher, err := NewFetcher(tc.config, nil, logger.NewNopLogger())
			suite.Require().NoError(err)
			suite.IsType(tc.wantType, fetcher)
		})
	}
}

func (suite *FactoryTestSuite) TestNewFetcherWithCache() {
	store, err := cache.OpenSQLite(":memory:")
	suite.Require().NoError(err)
	defer store.Close()

	fetcher, err := NewFetcher(FetcherConfig{Provider: provider.ProviderYahoo, RequestsPerMinute: 5, CacheTTL: time.Hour}, store, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.IsType(&provider.CachedFetcher{}, fetcher)
}

func (suite *FactoryTestSuite) TestNewFetcherInvalid() {
	tests := []struct {
		name   string
		config FetcherConfig
	}{
		{name: "unknown provider", config: FetcherConfig{Provider: "alphavantage"}},
		{name: "missing provider", config: FetcherConfig{}},
		{name: "polygon without key", config: FetcherConfig{Provider: provider.ProviderPolygon}},
		{name: "negative rate", config: FetcherConfig{Provider: provider.ProviderYahoo, RequestsPerMinute: -1}},
		{name: "bad endpoint", config: FetcherConfig{Provider: provider.ProviderYahoo, YahooChartEndpoint: "not a url"}},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			fetcher, err := NewFetcher(tc.config, nil, logger.NewNopLogger())
			suite.Nil(fetcher)
			suite.True(errors.IsConfigurationError(err))
		})
	}
}
