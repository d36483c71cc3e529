package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rxtech-lab/argo-history/internal/types"
)

// DataGenerator generates realistic daily price rows for tests.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how rows are generated.
type GeneratorConfig struct {
	// StartDate is the first candidate day; weekends are skipped
	StartDate time.Time
	// Count is the number of rows to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.01 = 1% typical daily volatility)
	Volatility float64
	// VolumeBase is the average volume per day
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0)
	VolumeVariance float64
	// AdjustmentFactor scales close into adj_close; 0 means 1
	AdjustmentFactor float64
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartDate:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Count:          3,
		InitialPrice:   100.0,
		Volatility:     0.02,
		VolumeBase:     1_000_000,
		VolumeVariance: 0.3,
	}
}

// Generate creates rows on consecutive weekdays following a geometric Brownian motion.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.PriceRow {
	rows := make([]types.PriceRow, 0, config.Count)
	currentPrice := config.InitialPrice
	day := config.StartDate.UTC().Truncate(24 * time.Hour)

	factor := config.AdjustmentFactor
	if factor == 0 {
		factor = 1
	}

	for len(rows) < config.Count {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)

			continue
		}

		open := currentPrice

		// Box-Muller transform for a normal sample
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		closePrice := open * (1 + config.Volatility*z)
		if closePrice <= 0 {
			closePrice = open * 0.99
		}

		high := math.Max(open, closePrice) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		low := math.Min(open, closePrice) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, closePrice) * 0.99
		}

		volume := config.VolumeBase * (1.0 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		rows = append(rows, types.PriceRow{
			Date:     day,
			Open:     price(open),
			High:     price(high),
			Low:      price(low),
			Close:    price(closePrice),
			AdjClose: price(closePrice * factor),
			Volume:   decimal.NewFromFloat(volume).Round(0),
		})

		currentPrice = closePrice
		day = day.AddDate(0, 0, 1)
	}

	return rows
}

// GenerateYear generates count rows starting on the first weekday of year.
func GenerateYear(year int, count int) []types.PriceRow {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.StartDate = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	config.Count = count

	return gen.Generate(config)
}

func price(val float64) decimal.Decimal {
	return decimal.NewFromFloat(val).Round(4)
}
