package symbols

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-history/internal/logger"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

const sp500Page = `<html><body>
<table class="infobox"><tr><th>Founded</th><td>1957</td></tr></table>
<table class="wikitable" id="constituents">
<thead><tr><th>Symbol</th><th>Security</th><th>GICS Sector</th></tr></thead>
<tbody>
<tr><td><a href="/quote/MMM">MMM</a></td><td>3M</td><td>Industrials</td></tr>
<tr><td> AOS </td><td>A. O. Smith</td><td>Industrials</td></tr>
<tr><td>ABT</td><td>Abbott <table><tr><td>nested</td></tr></table></td><td>Health Care</td></tr>
</tbody>
</table>
</body></html>`

type SourceTestSuite struct {
	suite.Suite
	log *logger.Logger
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (suite *SourceTestSuite) SetupTest() {
	suite.log = logger.NewNopLogger()
}

func (suite *SourceTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.T().TempDir(), name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *SourceTestSuite) TestNormalize() {
	suite.Equal([]string{"AAPL", "MSFT", "BRK.B"}, Normalize([]string{" AAPL", "MSFT", "", "AAPL ", "BRK.B", "  "}))
	suite.Empty(Normalize(nil))
}

func (suite *SourceTestSuite) TestStaticSource() {
	source := NewStaticSource("AAPL", "MSFT")
	symbols, err := source.Symbols(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"AAPL", "MSFT"}, symbols)
	suite.Equal("static", source.Name())
}

func (suite *SourceTestSuite) TestFileSourceLines() {
	path := suite.writeFile("symbols.txt", "# dow jones\nAAPL\n\n  MSFT  \n#KO\nJPM\n")
	symbols, err := NewFileSource(path).Symbols(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"AAPL", "MSFT", "JPM"}, symbols)
}

func (suite *SourceTestSuite) TestFileSourceCSV() {
	path := suite.writeFile("symbols.csv", "Security,symbol,Sector\n3M,MMM,Industrials\nApple,AAPL,Technology\n")
	symbols, err := NewFileSource(path).Symbols(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"MMM", "AAPL"}, symbols)
}

func (suite *SourceTestSuite) TestFileSourceCSVWithoutColumn() {
	path := suite.writeFile("symbols.csv", "Name,Sector\n3M,Industrials\n")
	_, err := NewFileSource(path).Symbols(context.Background())
	suite.Error(err)
	suite.Contains(err.Error(), `no "Symbol" column`)
}

func (suite *SourceTestSuite) TestFileSourceMissing() {
	_, err := NewFileSource(filepath.Join(suite.T().TempDir(), "nope.txt")).Symbols(context.Background())
	suite.Error(err)
}

func (suite *SourceTestSuite) TestHTMLTableSource() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.NotEmpty(r.Header.Get("User-Agent"))
		fmt.Fprint(w, sp500Page)
	}))
	defer server.Close()

	source := NewHTMLTableSource(server.URL, WithHTTPClient(server.Client()))
	symbols, err := source.Symbols(context.Background())
	suite.NoError(err)
	suite.Equal([]string{"MMM", "AOS", "ABT"}, symbols)
}

func (suite *SourceTestSuite) TestHTMLTableSourceNoMatchingTable() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, sp500Page)
	}))
	defer server.Close()

	_, err := NewHTMLTableSource(server.URL, WithColumn("Ticker")).Symbols(context.Background())
	suite.Error(err)
	suite.Contains(err.Error(), `no table with a "Ticker" column`)
}

func (suite *SourceTestSuite) TestHTMLTableSourceForbidden() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewHTMLTableSource(server.URL).Symbols(context.Background())
	suite.Error(err)
	suite.Contains(err.Error(), "HTTP 403")
}

func (suite *SourceTestSuite) TestLoadCombinesSources() {
	path := suite.writeFile("symbols.txt", "MSFT\nJPM\n")
	symbols, err := Load(context.Background(), suite.log, NewStaticSource("AAPL", "MSFT"), NewFileSource(path))
	suite.NoError(err)
	suite.Equal([]string{"AAPL", "MSFT", "JPM"}, symbols)
}

func (suite *SourceTestSuite) TestLoadEmpty() {
	_, err := Load(context.Background(), suite.log, NewStaticSource(" ", ""))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeEmptySymbolList))
	suite.True(errors.IsConfigurationError(err))
}

func (suite *SourceTestSuite) TestLoadSourceFailure() {
	_, err := Load(context.Background(), suite.log, NewFileSource(filepath.Join(suite.T().TempDir(), "nope.txt")))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSymbolSourceFailed))
	suite.True(errors.IsConfigurationError(err))
}
