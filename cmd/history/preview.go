package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata"
)

func previewFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Usage:    "Stock ticker symbol",
			Required: true,
		},
		&cli.IntFlag{
			Name:    "year",
			Aliases: []string{"y"},
			Usage:   "Year to fetch. Defaults to the current year",
			Value:   int64(time.Now().Year()),
		},
		&cli.IntFlag{
			Name:    "rows",
			Aliases: []string{"n"},
			Usage:   "Number of rows to log",
			Value:   5,
		},
	}

	return append(flags, providerFlags()...)
}

func previewAction(ctx context.Context, cmd *cli.Command) error {
	log, err := logger.NewLoggerWithConfig(logger.Config{Level: cmd.String("log-level"), Console: true})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to create logger", err)
	}
	defer log.Close()

	fetcher, err := marketdata.NewFetcher(fetcherConfig(cmd, cmd.String("provider"), cmd.String("polygon-api-key")), nil, log)
	if err != nil {
		return err
	}

	symbol := cmd.String("symbol")
	year := int(cmd.Int("year"))

	rows, err := fetcher.Fetch(ctx, symbol, year)
	if err != nil {
		log.Error("Failed to fetch", zap.String("symbol", symbol), zap.Int("year", year), zap.Error(err))

		return err
	}

	log.Info("Fetched rows",
		zap.String("symbol", symbol),
		zap.Int("year", year),
		zap.Int("rows", len(rows)),
		zap.String("first", rows[0].Day()),
		zap.String("last", rows[len(rows)-1].Day()),
	)

	limit := min(max(int(cmd.Int("rows")), 0), len(rows))
	for _, row := range rows[:limit] {
		log.Info(row.Day(),
			zap.String("open", row.Open.String()),
			zap.String("high", row.High.String()),
			zap.String("low", row.Low.String()),
			zap.String("close", row.Close.String()),
			zap.String("adj_close", row.AdjClose.String()),
			zap.String("volume", row.Volume.String()),
		)
	}

	return nil
}
