package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// DataGenerator generates realistic FX bars for testing and benchmarking.
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

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	// StartTime is the beginning of the data series
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	// Count is the number of bars to generate
	Count int
	// InitialPrice is the starting price
	InitialPrice float64
	// Volatility controls price movement (0.001 = 0.1% per bar)
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish)
	Trend float64
	// Pip is the price value of one pip
	Pip float64
	// SpreadBase is the average spread in pips
	SpreadBase float64
	// Indicator is the name of the generated indicator column
	Indicator string
	// IndicatorPeriod is the moving average period the indicator is measured against
	IndicatorPeriod int
}

// DefaultConfig returns a sensible default configuration for a JPY pair on five minute bars.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		StartTime:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:        5 * time.Minute,
		Count:           10000,
		InitialPrice:    150.0,
		Volatility:      0.0005,
		Trend:           0.0,
		Pip:             0.01,
		SpreadBase:      0.3,
		Indicator:       "sma_diff",
		IndicatorPeriod: 20,
	}
}

// Generate creates bars following a geometric Brownian motion. The indicator
// column holds the distance in pips between the close and its simple moving
// average, and is absent until the average has warmed up.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, config.Count)
	closes := make([]float64, 0, config.Count)
	currentPrice := config.InitialPrice
	currentTime := config.StartTime

	for i := 0; i < config.Count; i++ {
		open := currentPrice

		// Box-Muller transform for a normal draw
		u1 := g.rng.Float64()
		u2 := g.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)

		drift := config.Trend / float64(config.Count)

		close := open * (1 + config.Volatility*z + drift)
		if close <= 0 {
			close = open * 0.99
		}

		high := math.Max(open, close) + math.Abs(g.rng.Float64()*config.Volatility*open*0.5)

		low := math.Min(open, close) - math.Abs(g.rng.Float64()*config.Volatility*open*0.5)
		if low <= 0 {
			low = math.Min(open, close) * 0.99
		}

		spread := config.SpreadBase * (0.5 + g.rng.Float64())

		closes = append(closes, close)

		indicator := optional.None[float64]()
		if config.IndicatorPeriod > 0 && len(closes) >= config.IndicatorPeriod {
			sum := 0.0
			for _, value := range closes[len(closes)-config.IndicatorPeriod:] {
				sum += value
			}

			indicator = optional.Some(roundToDecimals((close-sum/float64(config.IndicatorPeriod))/config.Pip, 2))
		}

		bars[i] = types.Bar{
			Index:  i,
			Time:   currentTime,
			Open:   optional.Some(roundToDecimals(open, 3)),
			High:   optional.Some(roundToDecimals(high, 3)),
			Low:    optional.Some(roundToDecimals(low, 3)),
			Close:  optional.Some(roundToDecimals(close, 3)),
			Spread: optional.Some(roundToDecimals(spread, 1)),
			Indicators: map[string]optional.Option[float64]{
				config.Indicator: indicator,
			},
		}

		currentPrice = close
		currentTime = currentTime.Add(config.Interval)
	}

	return bars
}

// Generate10K is a convenience function to generate 10,000 bars
// with default settings for benchmarking.
func Generate10K() []types.Bar {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 10000

	return gen.Generate(config)
}

// ReadAllFunc returns an iterator over bars in the shape of DataSource.ReadAll.
func ReadAllFunc(bars []types.Bar) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range bars {
			if !yield(bar, nil) {
				return
			}
		}
	}
}

// roundToDecimals rounds a float64 to the specified number of decimal places.
func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))

	return math.Round(val*pow) / pow
}
