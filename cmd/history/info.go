package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rxtech-lab/argo-history/internal/version"
	"github.com/rxtech-lab/argo-history/pkg/marketdata"
)

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func providersAction(_ context.Context, cmd *cli.Command) error {
	out := outWriter(cmd)

	for _, name := range marketdata.GetSupportedProviders() {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			return err
		}

		auth := "no credentials"
		if info.RequiresAuth {
			auth = "requires " + info.AuthEnv
		}

		fmt.Fprintf(out, "%-8s %-14s %s (%s)\n", info.Name, info.DisplayName, info.Description, auth)
	}

	return nil
}

func versionAction(_ context.Context, cmd *cli.Command) error {
	fmt.Fprintln(outWriter(cmd), version.GetVersion())

	return nil
}
