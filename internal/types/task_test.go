package types

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type TaskTestSuite struct {
	suite.Suite
}

func TestTaskSuite(t *testing.T) {
	suite.Run(t, new(TaskTestSuite))
}

func (suite *TaskTestSuite) TestDownloadTaskString() {
	suite.Equal("AAPL/2020", DownloadTask{Symbol: "AAPL", Year: 2020}.String())
}

func (suite *TaskTestSuite) TestOutcomeReason() {
	success := TaskOutcome{Task: DownloadTask{Symbol: "AAA", Year: 2020}, Status: OutcomeSuccess, Rows: 3}
	suite.Empty(success.Reason())

	failed := TaskOutcome{
		Task:   DownloadTask{Symbol: "BBB", Year: 2020},
		Status: OutcomeFailed,
		Err:    errors.New("no data returned"),
	}
	suite.Equal("no data returned", failed.Reason())
}

func (suite *TaskTestSuite) TestPriceRowDay() {
	row := PriceRow{
		Date:  time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		Close: decimal.RequireFromString("75.0875"),
	}
	suite.Equal("2020-01-02", row.Day())
	suite.Equal("75.0875", row.Close.String())
}
