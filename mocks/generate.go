package mocks

//go:generate mockgen -destination=./mock_fetcher.go -package=mocks github.com/rxtech-lab/argo-history/pkg/marketdata/provider Fetcher
//go:generate mockgen -destination=./mock_cache.go -package=mocks github.com/rxtech-lab/argo-history/internal/cache Cache
//go:generate mockgen -destination=./mock_writer.go -package=mocks github.com/rxtech-lab/argo-history/pkg/marketdata/writer PriceWriter
//go:generate mockgen -destination=./mock_symbol_source.go -package=mocks github.com/rxtech-lab/argo-history/internal/symbols Source
