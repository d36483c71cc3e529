package download

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-history/e2e/download/mockserver"
	"github.com/rxtech-lab/argo-history/internal/cache"
	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/internal/storage"
	"github.com/rxtech-lab/argo-history/internal/symbols"
	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/mocks"
	"github.com/rxtech-lab/argo-history/pkg/errors"
	"github.com/rxtech-lab/argo-history/pkg/marketdata"
	"github.com/rxtech-lab/argo-history/pkg/marketdata/provider"
)

const rowsPerYear = 5

type DownloadE2ETestSuite struct {
	suite.Suite
	server  *mockserver.MarketServer
	dataDir string
	logDir  string
	logger  *logger.Logger
	rows    map[int][]types.PriceRow
}

func TestDownloadE2ESuite(t *testing.T) {
	suite.Run(t, new(DownloadE2ETestSuite))
}

func (suite *DownloadE2ETestSuite) SetupTest() {
	suite.rows = map[int][]types.PriceRow{
		2020: mocks.GenerateYear(2020, rowsPerYear),
		2021: mocks.GenerateYear(2021, rowsPerYear),
	}

	all := append(append([]types.PriceRow(nil), suite.rows[2020]...), suite.rows[2021]...)

	suite.server = mockserver.NewMarketServer()
	for _, symbol := range []string{"AAA", "BBB", "CCC"} {
		suite.server.SetRows(symbol, all)
	}
	suite.server.SetSymbolTable("AAA", "BBB", "CCC")
	suite.Require().NoError(suite.server.Start(":0"))

	root := suite.T().TempDir()
	suite.dataDir = filepath.Join(root, "data")
	suite.logDir = filepath.Join(root, "logs")

	log, err := logger.NewLoggerWithConfig(logger.Config{Directory: suite.logDir, Level: "debug"})
	suite.Require().NoError(err)
	suite.logger = log
}

func (suite *DownloadE2ETestSuite) TearDownTest() {
	suite.logger.Close()
	suite.NoError(suite.server.Stop())
}

type runConfig struct {
	provider provider.ProviderType
	format   marketdata.WriterType
	store    cache.Cache
}

func (suite *DownloadE2ETestSuite) yahoo() runConfig {
	return runConfig{provider: provider.ProviderYahoo, format: marketdata.WriterCSV, store: nil}
}

func (suite *DownloadE2ETestSuite) run(cfg runConfig, syms []string, years []int) marketdata.Report {
	fetcher, err := marketdata.NewFetcher(marketdata.FetcherConfig{
		Provider:           cfg.provider,
		YahooChartEndpoint: suite.server.YahooChartURL(),
		YahooCookieURL:     suite.server.YahooCookieURL(),
		YahooCrumbURL:      suite.server.YahooCrumbURL(),
		BinanceBaseURL:     suite.server.BaseURL(),
		RequestsPerMinute:  6000,
		Burst:              10,
	}, cfg.store, suite.logger)
	suite.Require().NoError(err)

	newWriter, err := marketdata.NewWriterFactory(cfg.format)
	suite.Require().NoError(err)

	runner, err := marketdata.NewRunner(fetcher, storage.NewLayout(suite.dataDir, cfg.format.Extension()), newWriter, suite.logger, marketdata.RunnerOptions{})
	suite.Require().NoError(err)

	report, err := runner.Run(context.Background(), syms, years)
	suite.Require().NoError(err)

	return report
}

func (suite *DownloadE2ETestSuite) csvPath(symbol string, year int) string {
	return filepath.Join(suite.dataDir, fmt.Sprint(year), symbol+".csv")
}

func (suite *DownloadE2ETestSuite) expectedCSV(year int) string {
	var sb strings.Builder

	sb.WriteString("date,open,high,low,close,adj_close,volume\n")

	for _, row := range suite.rows[year] {
		fmt.Fprintf(&sb, "%s,%s,%s,%s,%s,%s,%s\n", row.Day(), row.Open, row.High, row.Low, row.Close, row.AdjClose, row.Volume)
	}

	return sb.String()
}

func (suite *DownloadE2ETestSuite) TestDownloadFromSymbolTable() {
	syms, err := symbols.Load(context.Background(), suite.logger, symbols.NewHTMLTableSource(suite.server.SymbolsURL()))
	suite.Require().NoError(err)
	suite.Equal([]string{"AAA", "BBB", "CCC"}, syms)

	report := suite.run(suite.yahoo(), syms, []int{2020, 2021})

	suite.Equal(6, report.Total())
	suite.Equal(6, report.Count(types.OutcomeSuccess))

	for _, symbol := range syms {
		for _, year := range []int{2020, 2021} {
			content, err := os.ReadFile(suite.csvPath(symbol, year))
			suite.Require().NoError(err)
			suite.Equal(suite.expectedCSV(year), string(content), "%s/%d", symbol, year)
		}
	}

	suite.Require().NoError(suite.logger.Sync())
	logContent, err := os.ReadFile(suite.logger.File().Filename())
	suite.Require().NoError(err)
	suite.Contains(string(logContent), "Downloaded")
	suite.Contains(string(logContent), "AAA")
}

func (suite *DownloadE2ETestSuite) TestSecondRunSkipsEverything() {
	syms := []string{"AAA", "BBB"}

	first := suite.run(suite.yahoo(), syms, []int{2020})
	suite.Equal(2, first.Count(types.OutcomeSuccess))

	before, err := os.ReadFile(suite.csvPath("AAA", 2020))
	suite.Require().NoError(err)

	second := suite.run(suite.yahoo(), syms, []int{2020})
	suite.Equal(2, second.Count(types.OutcomeSkipped))
	suite.Equal(1, suite.server.Requests("AAA"))
	suite.Equal(1, suite.server.Requests("BBB"))

	after, err := os.ReadFile(suite.csvPath("AAA", 2020))
	suite.Require().NoError(err)
	suite.Equal(before, after)
}

func (suite *DownloadE2ETestSuite) TestFailingSymbolIsIsolated() {
	suite.server.FailSymbol("BBB", http.StatusInternalServerError)

	report := suite.run(suite.yahoo(), []string{"AAA", "BBB", "CCC"}, []int{2020})

	suite.Require().Equal(3, report.Total())
	suite.Equal(types.OutcomeSuccess, report.Outcomes[0].Status)
	suite.Equal(types.OutcomeFailed, report.Outcomes[1].Status)
	suite.Equal(types.OutcomeSuccess, report.Outcomes[2].Status)
	suite.True(errors.IsFetchError(report.Outcomes[1].Err))

	suite.FileExists(suite.csvPath("AAA", 2020))
	suite.NoFileExists(suite.csvPath("BBB", 2020))
	suite.FileExists(suite.csvPath("CCC", 2020))
}

func (suite *DownloadE2ETestSuite) TestUnknownSymbolAndEmptyYear() {
	report := suite.run(suite.yahoo(), []string{"ZZZ", "AAA"}, []int{2019})

	suite.Require().Equal(2, report.Total())
	suite.Equal(2, report.Count(types.OutcomeFailed))
	suite.True(errors.IsFetchError(report.Outcomes[0].Err))
	suite.True(errors.HasCode(report.Outcomes[1].Err, errors.ErrCodeNoDataFound))
	suite.NoDirExists(filepath.Join(suite.dataDir, "2019"))
}

func (suite *DownloadE2ETestSuite) TestBinanceProvider() {
	cfg := runConfig{provider: provider.ProviderBinance, format: marketdata.WriterCSV, store: nil}

	report := suite.run(cfg, []string{"AAA"}, []int{2021})
	suite.Require().Equal(1, report.Count(types.OutcomeSuccess))
	suite.Equal(rowsPerYear, report.Outcomes[0].Rows)

	content, err := os.ReadFile(suite.csvPath("AAA", 2021))
	suite.Require().NoError(err)
	suite.Equal(suite.expectedCSV(2021), string(content))
}

func (suite *DownloadE2ETestSuite) TestParquetFormat() {
	cfg := runConfig{provider: provider.ProviderYahoo, format: marketdata.WriterParquet, store: nil}

	report := suite.run(cfg, []string{"AAA"}, []int{2020})
	suite.Require().Equal(1, report.Count(types.OutcomeSuccess))

	info, err := os.Stat(filepath.Join(suite.dataDir, "2020", "AAA.parquet"))
	suite.Require().NoError(err)
	suite.Positive(info.Size())

	entries, err := os.ReadDir(filepath.Join(suite.dataDir, "2020"))
	suite.Require().NoError(err)
	suite.Len(entries, 1)
}

func (suite *DownloadE2ETestSuite) TestCacheServesRefetch() {
	store, err := cache.OpenSQLite(filepath.Join(suite.T().TempDir(), "cache.sqlite"))
	suite.Require().NoError(err)
	defer store.Close()

	cfg := runConfig{provider: provider.ProviderYahoo, format: marketdata.WriterCSV, store: store}

	first := suite.run(cfg, []string{"AAA"}, []int{2020})
	suite.Require().Equal(1, first.Count(types.OutcomeSuccess))
	suite.Require().NoError(os.RemoveAll(suite.dataDir))

	second := suite.run(cfg, []string{"AAA"}, []int{2020})
	suite.Require().Equal(1, second.Count(types.OutcomeSuccess))
	suite.Equal(1, suite.server.Requests("AAA"))

	content, err := os.ReadFile(suite.csvPath("AAA", 2020))
	suite.Require().NoError(err)
	suite.Equal(suite.expectedCSV(2020), string(content))
}
