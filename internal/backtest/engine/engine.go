package engine

import (
	"context"

	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error

// OnBacktestStartCallback is called once the bars are loaded and the sweep is enumerated.
type OnBacktestStartCallback func(totalPoints int, totalBars int) error

// OnBacktestEndCallback is called when the entire backtest completes (always called via defer).
type OnBacktestEndCallback func(err error)

// OnRunStartCallback is called before a configuration point is simulated.
// Points run concurrently, so calls may arrive out of index order.
type OnRunStartCallback func(pointIndex int, key string, totalPoints int) error

// OnRunEndCallback is called after a configuration point has been simulated and summarized.
type OnRunEndCallback func(pointIndex int, key string, record types.PerformanceRecord)

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
// Callbacks may be invoked from several goroutines and must be safe for concurrent use.
type LifecycleCallbacks struct {
	OnBacktestStart *OnBacktestStartCallback
	OnBacktestEnd   *OnBacktestEndCallback
	OnRunStart      *OnRunStartCallback
	OnRunEnd        *OnRunEndCallback
}

type Engine interface {
	// Initialize the engine with the given YAML configuration content.
	Initialize(config string) error
	// SetDataPath sets the path to the market data file (parquet or csv).
	SetDataPath(path string) error
	// SetResultsFolder sets the output directory for saving backtest results.
	// Results are written to <folder>/<symbols>_<indicator>/<data file name>.
	SetResultsFolder(folder string) error
	// SetDataSource sets the data source for the engine.
	SetDataSource(dataSource datasource.DataSource) error
	// Run enumerates the sweep, simulates every point and writes the results.
	// The context can be used to cancel the backtest operation.
	// Use LifecycleCallbacks to receive notifications at different phases of the backtest.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// Results returns the records of the last run, ranked best first.
	Results() []types.PerformanceRecord
	// ResultFolder returns the folder the results of the current data path and configuration are written to.
	ResultFolder() string
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
