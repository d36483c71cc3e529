package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-history/internal/version"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Usage:   "Download daily stock price history into data/<year>/<symbol>.csv",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:   "download",
				Usage:  "Download every (symbol, year) pair that has no file yet",
				Flags:  downloadFlags(),
				Action: downloadAction,
			},
			{
				Name:   "preview",
				Usage:  "Fetch one symbol and year and log the first rows without writing",
				Flags:  previewFlags(),
				Action: previewAction,
			},
			{
				Name:   "providers",
				Usage:  "List the supported data providers",
				Action: providersAction,
			},
			{
				Name:   "version",
				Usage:  "Print the version",
				Action: versionAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		stop()
		log.Fatal(err)
	}
}
