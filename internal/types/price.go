package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used for dates in output files and logs.
const DateLayout = "2006-01-02"

// PriceRow is one daily bar returned by a fetcher.
// It only lives between a fetch and the write of the file it belongs to.
type PriceRow struct {
	Date     time.Time       `csv:"date" json:"date"`
	Open     decimal.Decimal `csv:"open" json:"open"`
	High     decimal.Decimal `csv:"high" json:"high"`
	Low      decimal.Decimal `csv:"low" json:"low"`
	Close    decimal.Decimal `csv:"close" json:"close"`
	AdjClose decimal.Decimal `csv:"adj_close" json:"adj_close"`
	Volume   decimal.Decimal `csv:"volume" json:"volume"`
}

// Day returns the row date formatted with DateLayout.
func (r PriceRow) Day() string {
	return r.Date.Format(DateLayout)
}
