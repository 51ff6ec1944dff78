package mocks

import (
	"testing"
	"time"
)

func TestDataGenerator_Generate(t *testing.T) {
	gen := NewDataGenerator(42) // Fixed seed for reproducibility
	config := DefaultConfig()
	config.Count = 100

	bars := gen.Generate(config)

	if len(bars) != 100 {
		t.Errorf("expected 100 bars, got %d", len(bars))
	}

	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			t.Errorf("bars not in chronological order at index %d", i)
		}

		if bars[i].Index != i {
			t.Errorf("expected index %d, got %d", i, bars[i].Index)
		}
	}

	for i, bar := range bars {
		if bar.MissingPrice().IsSome() {
			t.Fatalf("bar %d is missing %s", i, bar.MissingPrice().Unwrap())
		}

		prices := bar.Prices()
		if prices.High < prices.Low {
			t.Errorf("High < Low at index %d: H=%f L=%f", i, prices.High, prices.Low)
		}

		if bar.SpreadOrZero() <= 0 {
			t.Errorf("expected a positive spread at index %d", i)
		}
	}
}

func TestDataGenerator_IndicatorWarmUp(t *testing.T) {
	gen := NewDataGenerator(42)
	config := DefaultConfig()
	config.Count = 30
	config.IndicatorPeriod = 10

	bars := gen.Generate(config)

	for i, bar := range bars {
		value := bar.Indicator(config.Indicator)
		if i < config.IndicatorPeriod-1 && value.IsSome() {
			t.Errorf("expected no indicator during warm-up at index %d", i)
		}

		if i >= config.IndicatorPeriod-1 && value.IsNone() {
			t.Errorf("expected an indicator value at index %d", i)
		}
	}
}

func TestDataGenerator_Reproducibility(t *testing.T) {
	// Same seed should produce same results
	gen1 := NewDataGenerator(42)
	gen2 := NewDataGenerator(42)

	config := DefaultConfig()
	config.Count = 10

	bars1 := gen1.Generate(config)
	bars2 := gen2.Generate(config)

	for i := range bars1 {
		if bars1[i].Close.Unwrap() != bars2[i].Close.Unwrap() {
			t.Errorf("bars not reproducible at index %d: got %f and %f",
				i, bars1[i].Close.Unwrap(), bars2[i].Close.Unwrap())
		}
	}
}

func TestGenerate10K(t *testing.T) {
	bars := Generate10K()

	if len(bars) != 10000 {
		t.Errorf("expected 10000 bars, got %d", len(bars))
	}
}

func TestReadAllFunc(t *testing.T) {
	config := DefaultConfig()
	config.Count = 5

	bars := NewDataGenerator(1).Generate(config)

	seen := 0
	for bar, err := range ReadAllFunc(bars) {
		if err != nil {
			t.Fatal(err)
		}

		if bar.Index != seen {
			t.Errorf("expected index %d, got %d", seen, bar.Index)
		}

		seen++
		if seen == 3 {
			break
		}
	}

	if seen != 3 {
		t.Errorf("expected to stop after 3 bars, got %d", seen)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Count != 10000 {
		t.Errorf("expected default count 10000, got %d", config.Count)
	}

	if config.Interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", config.Interval)
	}

	if config.Pip != 0.01 {
		t.Errorf("expected default pip 0.01, got %f", config.Pip)
	}
}
