package marketdata

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rxtech-lab/argo-history/internal/cache"
	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/provider"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/writer"
)

// WriterType defines the output file format.
type WriterType string

const (
	WriterCSV     WriterType = "csv"
	WriterParquet WriterType = "parquet"
)

// Extension returns the file extension used for the format.
func (w WriterType) Extension() string {
	return string(w)
}

// NewWriterFactory returns the writer constructor for format.
func NewWriterFactory(format WriterType) (writer.Factory, error) {
	switch format {
	case WriterCSV:
		return writer.NewCSVWriter, nil
	case WriterParquet:
		return writer.NewDuckDBWriter, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported output format: %s", format)
	}
}

// FetcherConfig holds the configuration for building a fetcher.
type FetcherConfig struct {
	Provider      provider.ProviderType `validate:"required,oneof=yahoo polygon binance"`
	PolygonApiKey string                `validate:"required_if=Provider polygon"`

	// Endpoint overrides, used against mock servers.
	YahooChartEndpoint string `validate:"omitempty,url"`
	YahooCookieURL     string `validate:"omitempty,url"`
	YahooCrumbURL      string `validate:"omitempty,url"`
	BinanceBaseURL     string `validate:"omitempty,url"`

	// RequestsPerMinute enables the rate limiter when positive.
	RequestsPerMinute float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`

	// CacheTTL is used when a cache is passed to NewFetcher. Zero keeps entries forever.
	CacheTTL time.Duration `validate:"gte=0"`
}

// NewFetcher builds the provider fetcher and wraps it in the configured decorators.
// The cache sits outside the rate limiter so cache hits do not consume tokens.
// store may be nil to disable caching.
func NewFetcher(config FetcherConfig, store cache.Cache, log *logger.Logger) (provider.Fetcher, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid fetcher configuration", err)
	}

	var fetcher provider.Fetcher

	switch config.Provider {
	case provider.ProviderYahoo:
		var opts []provider.YahooOption
		if config.YahooChartEndpoint != "" {
			opts = append(opts, provider.WithChartEndpoint(config.YahooChartEndpoint))
		}

		if config.YahooCookieURL != "" {
			opts = append(opts, provider.WithCookieURL(config.YahooCookieURL))
		}

		if config.YahooCrumbURL != "" {
			opts = append(opts, provider.WithCrumbURL(config.YahooCrumbURL))
		}

		fetcher = provider.NewYahooClient(opts...)
	case provider.ProviderPolygon:
		polygonClient, err := provider.NewPolygonClient(config.PolygonApiKey)
		if err != nil {
			return nil, err
		}

		fetcher = polygonClient
	case provider.ProviderBinance:
		fetcher = provider.NewBinanceClient(config.BinanceBaseURL)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported provider: %s", config.Provider)
	}

	if config.RequestsPerMinute > 0 {
		fetcher = provider.NewRateLimitedFetcher(fetcher, config.RequestsPerMinute, config.Burst)
	}

	if store != nil {
		fetcher = provider.NewCachedFetcher(fetcher, store, config.Provider, config.CacheTTL, log)
	}

	return fetcher, nil
}
