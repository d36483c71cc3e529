package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-history/internal/cache"
	"github.com/rxtech-lab/argo-history/internal/config"
	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/internal/storage"
	"github.com/rxtech-lab/argo-history/internal/symbols"
	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/provider"
)

func providerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "provider",
			Aliases: []string{"p"},
			Usage:   fmt.Sprintf("Data provider to use (%s)", strings.Join(marketdata.GetSupportedProviders(), ", ")),
			Value:   config.DefaultProvider,
		},
		&cli.StringFlag{
			Name:    "polygon-api-key",
			Usage:   "Polygon.io API key",
			Sources: cli.EnvVars("POLYGON_API_KEY"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
			Value: config.DefaultLogLevel,
		},
		// endpoint overrides for mock servers
		&cli.StringFlag{Name: "yahoo-chart-url", Hidden: true},
		&cli.StringFlag{Name: "yahoo-cookie-url", Hidden: true},
		&cli.StringFlag{Name: "yahoo-crumb-url", Hidden: true},
		&cli.StringFlag{Name: "binance-url", Hidden: true},
	}
}

func downloadFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file. Flags override its values",
		},
		&cli.StringSliceFlag{
			Name:    "symbols",
			Aliases: []string{"s"},
			Usage:   "Comma separated symbols, e.g. AAPL,MSFT",
		},
		&cli.StringFlag{
			Name:  "symbols-file",
			Usage: "File with one symbol per line, or a CSV file with a Symbol column",
		},
		&cli.StringFlag{
			Name:  "symbols-url",
			Usage: "Web page with a table holding a Symbol column, e.g. the S&P 500 constituents list",
		},
		&cli.StringFlag{
			Name:  "exchange",
			Usage: "Label for the symbol list in logs",
		},
		&cli.IntFlag{
			Name:    "year",
			Aliases: []string{"y"},
			Usage:   "Single year to download. Shorthand for --start-year Y --end-year Y",
		},
		&cli.IntFlag{
			Name:  "start-year",
			Usage: "First year to download",
		},
		&cli.IntFlag{
			Name:  "end-year",
			Usage: "Last year to download. Defaults to the start year",
		},
		&cli.FloatFlag{
			Name:  "delay",
			Usage: "Seconds to wait after each request",
			Value: config.DefaultDelaySeconds,
		},
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "Path to the data output directory",
			Value:   config.DefaultDataDir,
		},
		&cli.StringFlag{
			Name:  "logs",
			Usage: "Directory for daily log files. Empty disables file logging",
			Value: config.DefaultLogDir,
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   fmt.Sprintf("Output format (%s, %s)", marketdata.WriterCSV, marketdata.WriterParquet),
			Value:   config.DefaultFormat,
		},
		&cli.BoolFlag{
			Name:  "cache",
			Usage: "Cache provider responses in a local sqlite database",
		},
		&cli.StringFlag{
			Name:  "cache-path",
			Usage: "Path of the cache database",
			Value: config.DefaultCachePath,
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Usage: "How long cached responses are used. 0 keeps them forever",
			Value: config.DefaultCacheTTL,
		},
		&cli.FloatFlag{
			Name:  "rate-limit",
			Usage: "Maximum requests per minute. 0 disables the limit",
		},
		&cli.IntFlag{
			Name:  "burst",
			Usage: "Requests allowed at once before the rate limit applies",
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Hide the progress bar",
		},
		&cli.BoolFlag{
			Name:  "fail-on-error",
			Usage: "Exit with an error when any task failed",
		},
	}

	return append(flags, providerFlags()...)
}

// configFromFlags loads the config file named by --config and overlays every flag the user set.
func configFromFlags(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return cfg, err
	}

	if cmd.IsSet("symbols") {
		cfg.Symbols = cmd.StringSlice("symbols")
	}

	overlayString(cmd, "symbols-file", &cfg.SymbolsFile)
	overlayString(cmd, "symbols-url", &cfg.SymbolsURL)
	overlayString(cmd, "exchange", &cfg.Exchange)
	overlayString(cmd, "data", &cfg.DataDir)
	overlayString(cmd, "logs", &cfg.LogDir)
	overlayString(cmd, "log-level", &cfg.LogLevel)
	overlayString(cmd, "provider", &cfg.Provider)
	overlayString(cmd, "format", &cfg.Format)
	overlayString(cmd, "polygon-api-key", &cfg.PolygonAPIKey)
	overlayString(cmd, "cache-path", &cfg.Cache.Path)

	if cmd.IsSet("year") {
		cfg.StartYear = int(cmd.Int("year"))
		cfg.EndYear = int(cmd.Int("year"))
	}

	if cmd.IsSet("start-year") {
		cfg.StartYear = int(cmd.Int("start-year"))
	}

	if cmd.IsSet("end-year") {
		cfg.EndYear = int(cmd.Int("end-year"))
	}

	if cmd.IsSet("delay") {
		cfg.DelaySeconds = cmd.Float("delay")
	}

	if cmd.IsSet("cache") {
		cfg.Cache.Enabled = cmd.Bool("cache")
	}

	if cmd.IsSet("cache-ttl") {
		cfg.Cache.TTL = cmd.Duration("cache-ttl")
	}

	if cmd.IsSet("rate-limit") {
		cfg.RateLimit.RequestsPerMinute = cmd.Float("rate-limit")
	}

	if cmd.IsSet("burst") {
		cfg.RateLimit.Burst = int(cmd.Int("burst"))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func overlayString(cmd *cli.Command, name string, target *string) {
	if cmd.IsSet(name) {
		*target = cmd.String(name)
	}
}

// symbolSources returns the configured sources: inline symbols, then the file, then the page.
func symbolSources(cfg config.Config) []symbols.Source {
	var sources []symbols.Source

	if len(cfg.Symbols) > 0 {
		sources = append(sources, symbols.NewStaticSource(cfg.Symbols...))
	}

	if cfg.SymbolsFile != "" {
		sources = append(sources, symbols.NewFileSource(cfg.SymbolsFile))
	}

	if cfg.SymbolsURL != "" {
		sources = append(sources, symbols.NewHTMLTableSource(cfg.SymbolsURL))
	}

	return sources
}

func fetcherConfig(cmd *cli.Command, providerName string, apiKey string) marketdata.FetcherConfig {
	return marketdata.FetcherConfig{
		Provider:           provider.ProviderType(providerName),
		PolygonApiKey:      apiKey,
		YahooChartEndpoint: cmd.String("yahoo-chart-url"),
		YahooCookieURL:     cmd.String("yahoo-cookie-url"),
		YahooCrumbURL:      cmd.String("yahoo-crumb-url"),
		BinanceBaseURL:     cmd.String("binance-url"),
		RequestsPerMinute:  0,
		Burst:              0,
		CacheTTL:           0,
	}
}

// openCache opens the response cache and prunes expired entries.
// It returns a nil Cache when caching is disabled.
func openCache(ctx context.Context, cfg config.Config, log *logger.Logger) (cache.Cache, func(), error) {
	if !cfg.Cache.Enabled {
		return nil, func() {}, nil
	}

	store, err := cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Cache.TTL > 0 {
		pruned, err := store.Prune(ctx, time.Now().Add(-cfg.Cache.TTL))
		if err != nil {
			log.Warn("Failed to prune cache", zap.Error(err))
		} else if pruned > 0 {
			log.Debug("Pruned expired cache entries", zap.Int64("count", pruned))
		}
	}

	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close cache", zap.Error(err))
		}
	}

	return store, closeStore, nil
}

// progressReporter drives a progress bar from runner callbacks. The bar is created on the first call.
func progressReporter(cmd *cli.Command) marketdata.OnProgress {
	var bar *progressbar.ProgressBar

	return func(current float64, total float64, message string) {
		if bar == nil {
			bar = progressbar.NewOptions64(int64(total),
				progressbar.OptionSetWriter(errWriter(cmd)),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}

		bar.Describe(message)
		_ = bar.Set64(int64(current))
	}
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}

	return os.Stderr
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLoggerWithConfig(logger.Config{
		Directory: cfg.LogDir,
		Level:     cfg.LogLevel,
		Console:   true,
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}
	defer log.Close()

	years := cfg.Years()
	log.Info("Starting download",
		zap.String("exchange", cfg.ExchangeName()),
		zap.Int("start_year", years[0]),
		zap.Int("end_year", years[len(years)-1]),
		zap.String("provider", cfg.Provider),
		zap.String("format", cfg.Format),
		zap.String("data", cfg.DataDir),
	)

	syms, err := symbols.Load(ctx, log, symbolSources(cfg)...)
	if err != nil {
		return err
	}

	store, closeStore, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	fc := fetcherConfig(cmd, cfg.Provider, cfg.PolygonAPIKey)
	fc.RequestsPerMinute = cfg.RateLimit.RequestsPerMinute
	fc.Burst = cfg.RateLimit.Burst
	fc.CacheTTL = cfg.Cache.TTL

	fetcher, err := marketdata.NewFetcher(fc, store, log)
	if err != nil {
		return err
	}

	format := marketdata.WriterType(cfg.Format)

	newWriter, err := marketdata.NewWriterFactory(format)
	if err != nil {
		return err
	}

	options := marketdata.RunnerOptions{Delay: cfg.Delay(), OnProgress: nil}
	if !cmd.Bool("no-progress") {
		options.OnProgress = progressReporter(cmd)
	}

	runner, err := marketdata.NewRunner(fetcher, storage.NewLayout(cfg.DataDir, format.Extension()), newWriter, log, options)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, syms, years)
	if err != nil {
		return err
	}

	if cmd.Bool("fail-on-error") && report.Count(types.OutcomeFailed) > 0 {
		return fmt.Errorf("%d of %d downloads failed", report.Count(types.OutcomeFailed), report.Total())
	}

	return nil
}
