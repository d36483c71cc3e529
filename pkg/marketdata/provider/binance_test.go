package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-history/pkg/errors"
)

type klinesRequest struct {
	symbol   string
	interval string
	start    int64
	end      int64
	limit    int
}

// mockBinanceAPIClient implements BinanceAPIClient for testing.
type mockBinanceAPIClient struct {
	callCount     int
	klinesPerCall [][]*binance.Kline
	errorsPerCall []error
	requests      []klinesRequest
}

func (m *mockBinanceAPIClient) NewKlinesService() BinanceKlinesService {
	return &mockBinanceKlinesService{client: m}
}

type mockBinanceKlinesService struct {
	client *mockBinanceAPIClient
	req    klinesRequest
}

func (m *mockBinanceKlinesService) Symbol(symbol string) BinanceKlinesService {
	m.req.symbol = symbol

	return m
}

func (m *mockBinanceKlinesService) Interval(interval string) BinanceKlinesService {
	m.req.interval = interval

	return m
}

func (m *mockBinanceKlinesService) StartTime(startTime int64) BinanceKlinesService {
	m.req.start = startTime

	return m
}

func (m *mockBinanceKlinesService) EndTime(endTime int64) BinanceKlinesService {
	m.req.end = endTime

	return m
}

func (m *mockBinanceKlinesService) Limit(limit int) BinanceKlinesService {
	m.req.limit = limit

	return m
}

func (m *mockBinanceKlinesService) Do(_ context.Context) ([]*binance.Kline, error) {
	m.client.requests = append(m.client.requests, m.req)

	idx := m.client.callCount
	m.client.callCount++

	var err error
	if idx < len(m.client.errorsPerCall) {
		err = m.client.errorsPerCall[idx]
	}

	if idx < len(m.client.klinesPerCall) {
		return m.client.klinesPerCall[idx], err
	}

	return nil, err
}

// dailyKlines returns n consecutive daily klines starting at start.
func dailyKlines(start time.Time, n int) []*binance.Kline {
	return klinesEvery(start, 24*time.Hour, n)
}

func klinesEvery(start time.Time, step time.Duration, n int) []*binance.Kline {
	klines := make([]*binance.Kline, 0, n)

	for i := 0; i < n; i++ {
		open := start.Add(time.Duration(i) * step)
		klines = append(klines, &binance.Kline{
			OpenTime:  open.UnixMilli(),
			Open:      "100.5",
			High:      "110.25",
			Low:       "99.75",
			Close:     fmt.Sprintf("%d.5", 100+i),
			Volume:    "1234.5678",
			CloseTime: open.Add(step).UnixMilli() - 1,
		})
	}

	return klines
}

type BinanceClientTestSuite struct {
	suite.Suite
}

func TestBinanceClientSuite(t *testing.T) {
	suite.Run(t, new(BinanceClientTestSuite))
}

func (suite *BinanceClientTestSuite) TestNewBinanceClient() {
	client := NewBinanceClient("")
	suite.NotNil(client)
	suite.NotNil(client.apiClient)
}

func (suite *BinanceClientTestSuite) TestNewBinanceClientBaseURL() {
	client := NewBinanceClient("http://localhost:1234")

	adapter, ok := client.apiClient.(*binanceAPIAdapter)
	suite.Require().True(ok)
	suite.Equal("http://localhost:1234", adapter.client.BaseURL)
}

func (suite *BinanceClientTestSuite) TestFetchSinglePage() {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	mockAPI := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{dailyKlines(start, 3)}}

	rows, err := NewBinanceClientWithAPI(mockAPI).Fetch(context.Background(), "BTCUSDT", 2021)
	suite.Require().NoError(err)
	suite.Require().Len(rows, 3)
	suite.Equal("2021-01-01", rows[0].Day())
	suite.Equal("102.5", rows[2].Close.String())
	suite.Equal("1234.5678", rows[0].Volume.String())
	suite.True(rows[0].AdjClose.Equal(rows[0].Close))

	suite.Require().Len(mockAPI.requests, 1)
	req := mockAPI.requests[0]
	suite.Equal("BTCUSDT", req.symbol)
	suite.Equal("1d", req.interval)
	suite.Equal(binancePageSize, req.limit)
	suite.Equal(start.UnixMilli(), req.start)
	suite.Equal(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()-1, req.end)
}

func (suite *BinanceClientTestSuite) TestFetchPaginates() {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	// four bars a day fill a page in 250 days, repeated days collapse to one row
	full := klinesEvery(start, 6*time.Hour, binancePageSize)
	next := dailyKlines(start.AddDate(0, 0, 250), 2)
	mockAPI := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{full, next}}

	rows, err := NewBinanceClientWithAPI(mockAPI).Fetch(context.Background(), "BTCUSDT", 2020)
	suite.Require().NoError(err)
	suite.Len(rows, 252)
	suite.Equal("2020-09-08", rows[len(rows)-1].Day())

	suite.Require().Len(mockAPI.requests, 2)
	suite.Equal(full[len(full)-1].CloseTime+1, mockAPI.requests[1].start)
}

func (suite *BinanceClientTestSuite) TestFetchError() {
	mockAPI := &mockBinanceAPIClient{errorsPerCall: []error{fmt.Errorf("<APIError> code=-1121, msg=Invalid symbol.")}}

	rows, err := NewBinanceClientWithAPI(mockAPI).Fetch(context.Background(), "NOPE", 2021)
	suite.Nil(rows)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataFetchFailed))
	suite.Contains(err.Error(), "Invalid symbol")
}

func (suite *BinanceClientTestSuite) TestFetchInvalidValue() {
	klines := dailyKlines(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	klines[0].Close = "abc"
	mockAPI := &mockBinanceAPIClient{klinesPerCall: [][]*binance.Kline{klines}}

	_, err := NewBinanceClientWithAPI(mockAPI).Fetch(context.Background(), "BTCUSDT", 2021)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataParseFailed))
}

func (suite *BinanceClientTestSuite) TestFetchNoData() {
	mockAPI := &mockBinanceAPIClient{}

	_, err := NewBinanceClientWithAPI(mockAPI).Fetch(context.Background(), "BTCUSDT", 2016)
	suite.True(errors.HasCode(err, errors.ErrCodeNoDataFound))
}
