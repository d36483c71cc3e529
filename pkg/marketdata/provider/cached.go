package provider

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-history/internal/cache"
	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/internal/version"
)

// CachedFetcher serves fetches from a cache and stores fresh results in it.
//
// Entries older than the TTL, or written by an incompatible version, are refetched.
// Cache read and write failures are logged and never fail the fetch.
type CachedFetcher struct {
	inner    Fetcher
	cache    cache.Cache
	provider ProviderType
	ttl      time.Duration
	version  string
	logger   *logger.Logger
	now      func() time.Time
}

// NewCachedFetcher wraps inner. A zero ttl keeps entries forever.
func NewCachedFetcher(inner Fetcher, store cache.Cache, provider ProviderType, ttl time.Duration, log *logger.Logger) *CachedFetcher {
	return &CachedFetcher{
		inner:    inner,
		cache:    store,
		provider: provider,
		ttl:      ttl,
		version:  version.GetVersion(),
		logger:   log,
		now:      time.Now,
	}
}

// Fetch implements Fetcher.
func (f *CachedFetcher) Fetch(ctx context.Context, symbol string, year int) ([]types.PriceRow, error) {
	key := cache.Key{Provider: string(f.provider), Symbol: symbol, Year: year}
	fields := []zap.Field{zap.String("provider", key.Provider), zap.String("symbol", symbol), zap.Int("year", year)}

	entry, err := f.cache.Get(ctx, key)
	if err != nil {
		f.logger.Warn("Cache lookup failed, fetching from provider", append(fields, zap.Error(err))...)
	} else if entry.IsSome() {
		cached := entry.Unwrap()
		if f.usable(cached, fields) {
			f.logger.Debug("Cache hit", append(fields, zap.Int("rows", len(cached.Rows)))...)

			return cached.Rows, nil
		}
	}

	rows, err := f.inner.Fetch(ctx, symbol, year)
	if err != nil {
		return nil, err
	}

	err = f.cache.Put(ctx, key, cache.Entry{Rows: rows, FetchedAt: f.now(), Version: f.version})
	if err != nil {
		f.logger.Warn("Failed to store fetch result in cache", append(fields, zap.Error(err))...)
	}

	return rows, nil
}

func (f *CachedFetcher) usable(entry cache.Entry, fields []zap.Field) bool {
	if len(entry.Rows) == 0 {
		return false
	}

	if f.ttl > 0 && f.now().Sub(entry.FetchedAt) > f.ttl {
		f.logger.Debug("Cache entry expired", append(fields, zap.Time("fetched_at", entry.FetchedAt))...)

		return false
	}

	if err := version.CheckCompatibility(f.version, entry.Version); err != nil {
		f.logger.Debug("Cache entry written by incompatible version", append(fields, zap.Error(err))...)

		return false
	}

	return true
}
