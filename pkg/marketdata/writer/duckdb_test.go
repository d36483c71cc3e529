package writer

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/mocks"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

type DuckDBWriterTestSuite struct {
	suite.Suite
	tempDir string
}

func TestDuckDBWriterSuite(t *testing.T) {
	suite.Run(t, new(DuckDBWriterTestSuite))
}

func (suite *DuckDBWriterTestSuite) SetupTest() {
	suite.tempDir = suite.T().TempDir()
}

func (suite *DuckDBWriterTestSuite) readParquet(path string) (count int, first string) {
	db, err := sql.Open("duckdb", "")
	suite.Require().NoError(err)
	defer db.Close()

	query := fmt.Sprintf(`SELECT count(*), strftime(min(date), '%%Y-%%m-%%d') FROM read_parquet('%s')`, quote(path))
	suite.Require().NoError(db.QueryRow(query).Scan(&count, &first))

	return count, first
}

func (suite *DuckDBWriterTestSuite) TestNewDuckDBWriter() {
	outputPath := filepath.Join(suite.tempDir, "test.parquet")
	writer := NewDuckDBWriter(outputPath)

	suite.NotNil(writer)
	suite.Equal(outputPath, writer.GetOutputPath())

	duckWriter, ok := writer.(*DuckDBWriter)
	suite.True(ok)
	suite.Nil(duckWriter.db)
	suite.Nil(duckWriter.tx)
	suite.Nil(duckWriter.stmt)
}

func (suite *DuckDBWriterTestSuite) TestWriteWithoutInitialize() {
	writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "no_init.parquet"))

	err := writer.Write(types.PriceRow{})
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")

	_, err = writer.Finalize()
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")
}

func (suite *DuckDBWriterTestSuite) TestFullWorkflow() {
	outputPath := filepath.Join(suite.tempDir, "AAA.parquet")
	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())

	rows := mocks.GenerateYear(2020, 5)
	// insert out of order, the export sorts by date
	for i := len(rows) - 1; i >= 0; i-- {
		suite.Require().NoError(writer.Write(rows[i]))
	}

	path, err := writer.Finalize()
	suite.Require().NoError(err)
	suite.Equal(outputPath, path)
	suite.NoError(writer.Close())

	count, first := suite.readParquet(outputPath)
	suite.Equal(5, count)
	suite.Equal("2020-01-01", first)

	entries, err := os.ReadDir(suite.tempDir)
	suite.Require().NoError(err)
	suite.Len(entries, 1)
}

func (suite *DuckDBWriterTestSuite) TestCloseWithoutFinalize() {
	outputPath := filepath.Join(suite.tempDir, "BBB.parquet")
	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(mocks.GenerateYear(2020, 1)[0]))

	suite.NoError(writer.Close())

	entries, err := os.ReadDir(suite.tempDir)
	suite.Require().NoError(err)
	suite.Empty(entries)

	duckWriter := writer.(*DuckDBWriter)
	suite.Nil(duckWriter.db)
	suite.Nil(duckWriter.tx)
	suite.Nil(duckWriter.stmt)
}

func (suite *DuckDBWriterTestSuite) TestDoubleFinalize() {
	writer := NewDuckDBWriter(filepath.Join(suite.tempDir, "CCC.parquet"))
	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(mocks.GenerateYear(2020, 1)[0]))

	_, err := writer.Finalize()
	suite.NoError(err)

	_, err = writer.Finalize()
	suite.Error(err)
	suite.Contains(err.Error(), "not initialized")

	suite.NoError(writer.Close())
	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestFinalizeExportError() {
	writer := NewDuckDBWriter("/nonexistent/directory/test.parquet")
	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(mocks.GenerateYear(2020, 1)[0]))

	_, err := writer.Finalize()
	suite.Error(err)
	suite.Contains(err.Error(), "failed to export to Parquet")
	suite.True(errors.IsStorageError(err))

	suite.NoError(writer.Close())
}

func (suite *DuckDBWriterTestSuite) TestFinalizeRefusesToOverwrite() {
	outputPath := filepath.Join(suite.tempDir, "DDD.parquet")
	suite.Require().NoError(os.WriteFile(outputPath, []byte("original"), 0o644))

	writer := NewDuckDBWriter(outputPath)
	suite.Require().NoError(writer.Initialize())
	suite.Require().NoError(writer.Write(mocks.GenerateYear(2020, 1)[0]))

	_, err := writer.Finalize()
	suite.True(errors.HasCode(err, errors.ErrCodeFileExists))
	suite.NoError(writer.Close())

	content, err := os.ReadFile(outputPath)
	suite.Require().NoError(err)
	suite.Equal("original", string(content))
}
