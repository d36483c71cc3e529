package provider

import (
	"context"
	"sort"
	"time"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// ProviderType defines the type of market data provider.
type ProviderType string

const (
	ProviderYahoo   ProviderType = "yahoo"
	ProviderPolygon ProviderType = "polygon"
	ProviderBinance ProviderType = "binance"
)

// Fetcher retrieves the daily history of one symbol for one calendar year.
//
// Fetch makes a single attempt. Any failure, including an empty result, is returned as a
// fetch error. Returned rows fall inside the year, are sorted by date and hold one row per day.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error)
}

// YearRange returns the half-open UTC range [Jan 1 of year, Jan 1 of year+1).
func YearRange(year int) (start time.Time, end time.Time) {
	start = time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)

	return start, start.AddDate(1, 0, 0)
}

// dayOf truncates t to its UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// finalizeRows keeps the rows of year, sorts them and drops repeated days (last one wins).
func finalizeRows(symbol string, year int, rows []types.PriceRow) ([]types.PriceRow, error) {
	start, end := YearRange(year)

	inYear := make([]types.PriceRow, 0, len(rows))
	for _, row := range rows {
		row.Date = dayOf(row.Date)
		if row.Date.Before(start) || !row.Date.Before(end) {
			continue
		}

		inYear = append(inYear, row)
	}

	sort.SliceStable(inYear, func(i, j int) bool {
		return inYear[i].Date.Before(inYear[j].Date)
	})

	result := make([]types.PriceRow, 0, len(inYear))
	for _, row := range inYear {
		if n := len(result); n > 0 && result[n-1].Date.Equal(row.Date) {
			result[n-1] = row

			continue
		}

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no data found for %s in %d", symbol, year)
	}

	return result, nil
}

func fetchFailed(err error, symbol string, year int) error {
	// keep more specific fetch codes (rate limits, empty results)
	if errors.IsFetchError(err) {
		return err
	}

	return errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to fetch %s for %d", symbol, year)
}
