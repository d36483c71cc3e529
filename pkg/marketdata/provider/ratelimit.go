package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

// RateLimitedFetcher waits for a token bucket before every call to the wrapped fetcher.
type RateLimitedFetcher struct {
	inner   Fetcher
	limiter *rate.Limiter
}

// NewRateLimitedFetcher allows requestsPerMinute calls with bursts of up to burst calls.
func NewRateLimitedFetcher(inner Fetcher, requestsPerMinute float64, burst int) *RateLimitedFetcher {
	if burst < 1 {
		burst = 1
	}

	return &RateLimitedFetcher{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerMinute/60), burst),
	}
}

// Fetch implements Fetcher.
func (f *RateLimitedFetcher) Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeRateLimited, err, "rate limiter rejected %s/%d", symbol, year)
	}

	return f.inner.Fetch(ctx, symbol, year)
}
