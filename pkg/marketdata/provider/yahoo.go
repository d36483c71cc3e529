package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

const (
	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// YahooClient fetches daily bars from the Yahoo Finance v8 chart API.
// It authenticates with a session cookie and crumb token, fetched once and reused.
type YahooClient struct {
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string

	mu    sync.Mutex
	crumb string
}

// YahooOption configures a YahooClient.
type YahooOption func(*YahooClient)

// WithHTTPClient sets the HTTP client. The client should have a cookie jar.
func WithHTTPClient(c *http.Client) YahooOption {
	return func(y *YahooClient) { y.client = c }
}

// WithChartEndpoint overrides the default chart API endpoint.
func WithChartEndpoint(ep string) YahooOption {
	return func(y *YahooClient) { y.chartEndpoint = strings.TrimRight(ep, "/") }
}

// WithCookieURL overrides the URL used to obtain the session cookie.
func WithCookieURL(u string) YahooOption {
	return func(y *YahooClient) { y.cookieURL = u }
}

// WithCrumbURL overrides the URL used to obtain the crumb token.
func WithCrumbURL(u string) YahooOption {
	return func(y *YahooClient) { y.crumbURL = u }
}

// NewYahooClient creates a YahooClient with the given options applied.
func NewYahooClient(opts ...YahooOption) *YahooClient {
	// the session cookie is set on .yahoo.com and must reach the query hosts
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	y := &YahooClient{
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
	}

	for _, o := range opts {
		o(y)
	}

	return y
}

// chartResponse represents the Yahoo Finance v8 chart API response.
// Nil entries are days Yahoo reports as null.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch implements Fetcher.
func (y *YahooClient) Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error) {
	if symbol == "" {
		return nil, errors.New(errors.ErrCodeMarketDataFetchFailed, "symbol cannot be empty")
	}

	if err := y.ensureCrumb(ctx); err != nil {
		return nil, fetchFailed(err, symbol, year)
	}

	start, end := YearRange(year)

	rows, err := y.fetchChart(ctx, symbol, start, end)
	if err != nil {
		return nil, fetchFailed(err, symbol, year)
	}

	return finalizeRows(symbol, year, rows)
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (y *YahooClient) ensureCrumb(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.crumb != "" {
		return nil
	}

	cookieReq, err := http.NewRequestWithContext(ctx, http.MethodGet, y.cookieURL, nil)
	if err != nil {
		return fmt.Errorf("build cookie request: %w", err)
	}

	cookieReq.Header.Set("User-Agent", userAgent)

	cookieRes, err := y.client.Do(cookieReq)
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}

	_ = cookieRes.Body.Close()

	crumbReq, err := http.NewRequestWithContext(ctx, http.MethodGet, y.crumbURL, nil)
	if err != nil {
		return fmt.Errorf("build crumb request: %w", err)
	}

	crumbReq.Header.Set("User-Agent", userAgent)

	crumbRes, err := y.client.Do(crumbReq)
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode == http.StatusTooManyRequests {
		return errors.New(errors.ErrCodeRateLimited, "crumb endpoint rejected the request: HTTP 429")
	}

	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	y.crumb = crumb

	return nil
}

func (y *YahooClient) resetCrumb() {
	y.mu.Lock()
	y.crumb = ""
	y.mu.Unlock()
}

func (y *YahooClient) fetchChart(ctx context.Context, symbol string, from, to time.Time) ([]types.PriceRow, error) {
	y.mu.Lock()
	crumb := y.crumb
	y.mu.Unlock()

	query := url.Values{}
	query.Set("period1", strconv.FormatInt(from.Unix(), 10))
	query.Set("period2", strconv.FormatInt(to.Unix(), 10))
	query.Set("interval", "1d")
	query.Set("events", "div,splits")
	query.Set("includeAdjustedClose", "true")
	query.Set("crumb", crumb)

	reqURL := fmt.Sprintf("%s/%s?%s", y.chartEndpoint, url.PathEscape(symbol), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)

	res, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	decodeErr := json.Unmarshal(body, &resp)

	if res.StatusCode != http.StatusOK {
		switch res.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			y.resetCrumb()
		case http.StatusTooManyRequests:
			return nil, errors.Newf(errors.ErrCodeRateLimited, "yahoo rate limited the request for %s", symbol)
		}

		// unknown symbols come back as 404 with a chart error body
		if decodeErr == nil && resp.Chart.Error != nil {
			return nil, fmt.Errorf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
		}

		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, symbol)
	}

	if decodeErr != nil {
		return nil, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "failed to parse yahoo response", decodeErr)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	var adjClose []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	rows := make([]types.PriceRow, 0, len(result.Timestamp))

	for i, ts := range result.Timestamp {
		closeVal := at(quote.Close, i)
		if closeVal == nil {
			continue
		}

		adj := at(adjClose, i)
		if adj == nil {
			adj = closeVal
		}

		rows = append(rows, types.PriceRow{
			// shift by the exchange offset so the bar lands on its local trading day
			Date:     time.Unix(ts+result.Meta.GMTOffset, 0).UTC(),
			Open:     value(at(quote.Open, i)),
			High:     value(at(quote.High, i)),
			Low:      value(at(quote.Low, i)),
			Close:    value(closeVal),
			AdjClose: value(adj),
			Volume:   value(at(quote.Volume, i)),
		})
	}

	return rows, nil
}

func at(values []*float64, i int) *float64 {
	if i >= len(values) {
		return nil
	}

	return values[i]
}

func value(v *float64) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}

	return decimal.NewFromFloat(*v)
}
