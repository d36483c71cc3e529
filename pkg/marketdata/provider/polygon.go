package provider

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// PolygonAggsIterator is the subset of the polygon iterator used to walk aggregates.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// PolygonAPIClient abstracts the polygon REST client for testing.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator
}

type polygonAPIAdapter struct {
	client *polygon.Client
}

func (a *polygonAPIAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, opts ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, opts...)
}

// PolygonClient fetches adjusted daily aggregates from polygon.io.
type PolygonClient struct {
	apiClient PolygonAPIClient
}

// NewPolygonClient creates a PolygonClient using the given API key.
func NewPolygonClient(apiKey string) (*PolygonClient, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon apiKey is required")
	}

	return NewPolygonClientWithAPI(&polygonAPIAdapter{client: polygon.New(apiKey)}), nil
}

// NewPolygonClientWithAPI creates a PolygonClient around an existing API client.
func NewPolygonClientWithAPI(apiClient PolygonAPIClient) *PolygonClient {
	return &PolygonClient{
		apiClient: apiClient,
	}
}

// Fetch implements Fetcher. Polygon prices are already split adjusted, so AdjClose equals Close.
func (c *PolygonClient) Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMarketDataFetchFailed, "symbol cannot be empty")
	}

	start, end := YearRange(year)

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(start),
		To:         models.Millis(end.Add(-time.Millisecond)),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(50000)

	iter := c.apiClient.ListAggs(ctx, params)

	var rows []types.PriceRow

	for iter.Next() {
		agg := iter.Item()
		closePrice := decimal.NewFromFloat(agg.Close)

		rows = append(rows, types.PriceRow{
			Date:     time.Time(agg.Timestamp),
			Open:     decimal.NewFromFloat(agg.Open),
			High:     decimal.NewFromFloat(agg.High),
			Low:      decimal.NewFromFloat(agg.Low),
			Close:    closePrice,
			AdjClose: closePrice,
			Volume:   decimal.NewFromFloat(agg.Volume),
		})
	}

	if err := iter.Err(); err != nil {
		return nil, fetchFailed(err, symbol, year)
	}

	return finalizeRows(symbol, year, rows)
}
