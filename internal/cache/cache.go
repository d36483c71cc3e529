// Package cache stores fetched price rows keyed by provider, symbol and year.
package cache

import (
	"context"
	"time"

	"github.com/moznion/go-optional"

	"github.com/rxtech-lab/argo-history/internal/types"
)

// Key identifies one cached fetch.
type Key struct {
	Provider string
	Symbol   string
	Year     int
}

// Entry is a cached fetch result.
type Entry struct {
	Rows      []types.PriceRow
	FetchedAt time.Time
	// Version is the build version that wrote the entry.
	Version string
}

// Cache is the storage behind the caching fetcher.
type Cache interface {
	// Get returns the entry for key, or None when nothing is stored.
	Get(ctx context.Context, key Key) (optional.Option[Entry], error)
	// Put stores entry under key, replacing any previous entry.
	Put(ctx context.Context, key Key, entry Entry) error
}
