package provider

import (
	"context"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// binancePageSize is the maximum number of klines Binance returns per request.
const binancePageSize = 1000

// BinanceKlinesService is the fluent kline request builder.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Limit(limit int) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// BinanceAPIClient abstracts the binance client for testing.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

type binanceAPIAdapter struct {
	client *binance.Client
}

func (a *binanceAPIAdapter) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesAdapter{service: a.client.NewKlinesService()}
}

type binanceKlinesAdapter struct {
	service *binance.KlinesService
}

func (k *binanceKlinesAdapter) Symbol(symbol string) BinanceKlinesService {
	k.service.Symbol(symbol)

	return k
}

func (k *binanceKlinesAdapter) Interval(interval string) BinanceKlinesService {
	k.service.Interval(interval)

	return k
}

func (k *binanceKlinesAdapter) StartTime(startTime int64) BinanceKlinesService {
	k.service.StartTime(startTime)

	return k
}

func (k *binanceKlinesAdapter) EndTime(endTime int64) BinanceKlinesService {
	k.service.EndTime(endTime)

	return k
}

func (k *binanceKlinesAdapter) Limit(limit int) BinanceKlinesService {
	k.service.Limit(limit)

	return k
}

func (k *binanceKlinesAdapter) Do(ctx context.Context) ([]*binance.Kline, error) {
	return k.service.Do(ctx)
}

// BinanceClient fetches daily klines from the Binance spot API.
type BinanceClient struct {
	apiClient BinanceAPIClient
}

// NewBinanceClient creates a BinanceClient for the public market data API.
// A non-empty baseURL replaces the default API host.
func NewBinanceClient(baseURL string) *BinanceClient {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}

	return NewBinanceClientWithAPI(&binanceAPIAdapter{client: client})
}

// NewBinanceClientWithAPI creates a BinanceClient around an existing API client.
func NewBinanceClientWithAPI(apiClient BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient: apiClient,
	}
}

// Fetch implements Fetcher. Klines are requested page by page; AdjClose equals Close.
func (c *BinanceClient) Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMarketDataFetchFailed, "symbol cannot be empty")
	}

	start, end := YearRange(year)
	endMillis := end.UnixMilli() - 1
	currentStart := start.UnixMilli()

	var rows []types.PriceRow

	for currentStart <= endMillis {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(binancePageSize).
			Do(ctx)
		if err != nil {
			return nil, fetchFailed(err, symbol, year)
		}

		page, err := convertKlines(klines)
		if err != nil {
			return nil, fetchFailed(err, symbol, year)
		}

		rows = append(rows, page...)

		if len(klines) < binancePageSize {
			break
		}

		// close time of the last kline + 1ms avoids duplicates
		currentStart = klines[len(klines)-1].CloseTime + 1
	}

	return finalizeRows(symbol, year, rows)
}

// convertKlines converts Binance kline data into price rows.
func convertKlines(klines []*binance.Kline) ([]types.PriceRow, error) {
	rows := make([]types.PriceRow, 0, len(klines))

	for _, k := range klines {
		values := make([]decimal.Decimal, 5)

		for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := decimal.NewFromString(raw)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid kline value %q", raw)
			}

			values[i] = v
		}

		rows = append(rows, types.PriceRow{
			Date:     time.UnixMilli(k.OpenTime),
			Open:     values[0],
			High:     values[1],
			Low:      values[2],
			Close:    values[3],
			AdjClose: values[3],
			Volume:   values[4],
		})
	}

	return rows, nil
}
