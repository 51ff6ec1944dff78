package writer

import (
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// BarWriter defines the interface for writing bar series to a destination.
type BarWriter interface {
	// Initialize sets up the writer, creating the staging table.
	Initialize() error
	// Write persists a single bar. Indicators missing from the bar are written as NULL.
	Write(bar types.Bar) error
	// Finalize commits the staged bars and exports them to the output file.
	Finalize() (outputPath string, err error)
	// Close releases any resources held by the writer.
	Close() error
	// GetOutputPath returns the configured output file path.
	GetOutputPath() string
}
