package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/cache"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/stats"
	"github.com/rxtech-lab/argo-range-backtest/internal/classifier"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"
)

const (
	ReportFileName    = "report.yaml"
	BreakdownFileName = "best_breakdown.yaml"
)

type BacktestEngineV1 struct {
	config        BacktestEngineV1Config
	dataPath      string
	resultsFolder string
	log           *logger.Logger
	datasource    datasource.DataSource
	directions    *cache.DirectionCache
	records       []types.PerformanceRecord
}

func NewBacktestEngineV1() engine.Engine {
	return &BacktestEngineV1{
		config:        EmptyConfig(),
		dataPath:      "",
		resultsFolder: "",
		log:           nil,
		datasource:    nil,
		directions:    cache.NewDirectionCache(),
		records:       nil,
	}
}

// Initialize implements engine.Engine.
func (b *BacktestEngineV1) Initialize(config string) error {
	// parse the config
	var parsed BacktestEngineV1Config

	err := yaml.Unmarshal([]byte(config), &parsed)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse configuration", err)
	}

	parsed.ApplyDefaults()

	if err := parsed.Validate(); err != nil {
		return err
	}

	b.config = parsed

	// initialize the logger
	if b.log == nil {
		var loggerError error

		b.log, loggerError = logger.NewLogger()
		if loggerError != nil {
			return loggerError
		}
	}

	b.log.Debug("Backtest engine initialized",
		zap.String("config", config),
	)

	b.warnOverlappingDirections()

	return nil
}

// warnOverlappingDirections flags fixed directions whose ask and bid intervals
// share values. Those values classify as none.
func (b *BacktestEngineV1) warnOverlappingDirections() {
	for _, block := range b.config.DirectionParameters {
		for _, column := range block.ActiveColumns(b.config.Timeframes) {
			columnRange := block.Ranges[column]
			if columnRange.IsSwept() || columnRange.Direction == nil {
				continue
			}

			spec, err := columnRange.Direction.Spec()
			if err != nil || !spec.Ask.Overlaps(spec.Bid) {
				continue
			}

			b.log.Warn("Ask and bid intervals overlap",
				zap.String("block", block.Name),
				zap.String("column", column),
				zap.Stringer("ask", spec.Ask),
				zap.Stringer("bid", spec.Bid),
			)
		}
	}
}

// SetDataPath implements engine.Engine.
func (b *BacktestEngineV1) SetDataPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeBacktestNoDataPath, err, "failed to get absolute path of %s", path)
	}

	b.dataPath = absPath

	if b.log != nil {
		b.log.Debug("Data path set", zap.String("path", absPath))
	}

	return nil
}

// SetResultsFolder implements engine.Engine.
func (b *BacktestEngineV1) SetResultsFolder(folder string) error {
	b.resultsFolder = folder

	if b.log != nil {
		b.log.Debug("Results folder set", zap.String("folder", folder))
	}

	return nil
}

func (b *BacktestEngineV1) SetDataSource(datasource datasource.DataSource) error {
	b.datasource = datasource

	return nil
}

// Results implements engine.Engine.
func (b *BacktestEngineV1) Results() []types.PerformanceRecord {
	records := make([]types.PerformanceRecord, len(b.records))
	copy(records, b.records)

	return records
}

// ResultFolder implements engine.Engine.
func (b *BacktestEngineV1) ResultFolder() string {
	return getResultFolder(b.resultsFolder, b.dataPath, b.config)
}

// Run implements engine.Engine.
func (b *BacktestEngineV1) Run(ctx context.Context, callbacks engine.LifecycleCallbacks) (err error) {
	if callbacks.OnBacktestEnd != nil {
		defer func() {
			(*callbacks.OnBacktestEnd)(err)
		}()
	}

	if err := b.preRunCheck(); err != nil {
		return err
	}

	b.records = nil
	b.directions.Reset()

	if err := b.datasource.Initialize(b.dataPath); err != nil {
		return err
	}

	bars, err := datasource.LoadBars(b.datasource, b.config.Columns, b.config.Indicators())
	if err != nil {
		return err
	}

	skipped := b.reportSkippedRows(bars)

	sweep, err := NewSweep(b.config)
	if err != nil {
		return err
	}

	if callbacks.OnBacktestStart != nil {
		if err := (*callbacks.OnBacktestStart)(sweep.Len(), len(bars)); err != nil {
			return errors.Wrap(errors.ErrCodeCallbackFailed, "backtest start callback failed", err)
		}
	}

	store, err := NewLedgerStore(b.log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Initialize(); err != nil {
		return err
	}

	records := make([]types.PerformanceRecord, sweep.Len())

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(b.config.Workers)

	for _, point := range sweep.All() {
		if groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			record, err := b.runPoint(point, bars, store, callbacks, sweep.Len())
			if err != nil {
				return err
			}

			// Each goroutine owns its own slot, so the merge is deterministic.
			records[point.Index] = record

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	b.records = stats.Rank(records)

	b.log.Info("Backtest completed",
		zap.Int("points", sweep.Len()),
		zap.Int("bars", len(bars)),
		zap.Int("skipped_rows", skipped),
	)

	return b.writeResults(store, len(bars), skipped)
}

func (b *BacktestEngineV1) runPoint(point Point, bars []types.Bar, store *LedgerStore, callbacks engine.LifecycleCallbacks, total int) (types.PerformanceRecord, error) {
	if callbacks.OnRunStart != nil {
		if err := (*callbacks.OnRunStart)(point.Index, point.Key, total); err != nil {
			return types.PerformanceRecord{}, errors.Wrap(errors.ErrCodeCallbackFailed, "run start callback failed", err)
		}
	}

	directions := b.directions.GetOrCompute(fmt.Sprintf("%d/%s", point.Block, point.DirectionKey()), func() []types.Direction {
		series := classifier.ClassifySeries(bars, point.Specs())
		b.logFirstSignal(point, bars, series)

		return series
	})

	// Skipped rows were already reported once for the whole series.
	simulator := NewSimulator(b.config.SimulationConfig(point), logger.NewNopLogger())

	ledger, err := simulator.Run(bars, directions)
	if err != nil {
		return types.PerformanceRecord{}, errors.Wrapf(errors.ErrCodeBacktestRunFailed, err, "failed to simulate %s", point.Key)
	}

	record := stats.Summarize(ledger)
	record.Key = point.Key
	record.Index = point.Index
	record.Block = point.BlockName
	record.Ranges = point.Ranges()
	record.Profit = point.Profit
	record.Loss = point.Loss

	if err := store.Append(point.Key, point.Index, ledger); err != nil {
		return types.PerformanceRecord{}, err
	}

	b.log.Debug("Point completed",
		zap.String("key", point.Key),
		zap.Int("trades", record.TotalCount),
		zap.Float64("net_pips", record.NetPips),
	)

	if callbacks.OnRunEnd != nil {
		(*callbacks.OnRunEnd)(point.Index, point.Key, record)
	}

	return record, nil
}

// logFirstSignal logs the column verdicts of the first bar that produced a
// direction for the point's rule set.
func (b *BacktestEngineV1) logFirstSignal(point Point, bars []types.Bar, directions []types.Direction) {
	if !b.log.Core().Enabled(zap.DebugLevel) {
		return
	}

	for i, direction := range directions {
		if direction == types.DirectionNone {
			continue
		}

		fields := []zap.Field{
			zap.String("rules", point.DirectionKey()),
			zap.Int("row", bars[i].Index),
			zap.String("direction", string(direction)),
		}

		for _, verdict := range classifier.Explain(bars[i], point.Specs()) {
			if verdict.Value.IsNone() {
				fields = append(fields, zap.String(verdict.Column, "missing"))

				continue
			}

			fields = append(fields, zap.String(verdict.Column, fmt.Sprintf("%g (%s)", verdict.Value.Unwrap(), verdict.Direction)))
		}

		b.log.Debug("First signal", fields...)

		return
	}

	b.log.Debug("No signals", zap.String("rules", point.DirectionKey()))
}

// reportSkippedRows logs every bar that will be skipped because of a missing price.
func (b *BacktestEngineV1) reportSkippedRows(bars []types.Bar) int {
	skipped := 0

	for _, bar := range bars {
		missing := bar.MissingPrice()
		if missing.IsNone() {
			continue
		}

		skipped++

		issue := errors.NewRowIssue(errors.ErrCodeMissingPrice, bar.Index, missing.Unwrap(), "price is missing")
		b.log.Warn("Skipping bar", zap.Int("row", bar.Index), zap.Error(issue))
	}

	return skipped
}

func (b *BacktestEngineV1) GetConfigSchema() (string, error) {
	config := b.config

	schema, err := config.GenerateSchemaJSON()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnknown, "failed to generate schema", err)
	}

	return schema, nil
}

func (b *BacktestEngineV1) writeResults(store *LedgerStore, barCount int, skipped int) error {
	resultFolderPath := getResultFolder(b.resultsFolder, b.dataPath, b.config)

	// remove the previous results of the same data and config
	if _, err := os.Stat(resultFolderPath); err == nil {
		os.RemoveAll(resultFolderPath)
	}

	if err := os.MkdirAll(resultFolderPath, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create results folder", err)
	}

	ledgerPath, err := store.Write(resultFolderPath)
	if err != nil {
		return err
	}

	report := types.Report{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Symbols:        b.config.Symbols,
		Timeframes:     b.config.Timeframes,
		Indicator:      b.config.TechnicalIndicator,
		DataPath:       b.dataPath,
		BarCount:       barCount,
		SkippedRows:    skipped,
		Records:        b.records,
		LedgerFilePath: ledgerPath,
	}

	best := stats.Best(b.records)
	if best.IsSome() {
		record := best.Unwrap()
		report.Best = &record

		ledger, err := store.Ledger(record.Index)
		if err != nil {
			return err
		}

		breakdown := types.Breakdown{
			Key:     record.Key,
			Periods: make(map[types.Period][]types.PeriodPerformance, len(types.AllPeriods)),
		}

		for _, period := range types.AllPeriods {
			breakdown.Periods[period] = stats.Breakdown(ledger, period)
		}

		if err := types.WriteBreakdown(filepath.Join(resultFolderPath, BreakdownFileName), breakdown); err != nil {
			return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write breakdown", err)
		}
	}

	if err := types.WriteReport(filepath.Join(resultFolderPath, ReportFileName), report); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write report", err)
	}

	b.log.Info("Results written", zap.String("folder", resultFolderPath))

	return nil
}

func (b *BacktestEngineV1) preRunCheck() error {
	if b.log == nil {
		return errors.New(errors.ErrCodeBacktestNotInitialized, "engine is not initialized")
	}

	if b.dataPath == "" {
		b.log.Error("No data path set")

		return errors.New(errors.ErrCodeBacktestNoDataPath, "no data path set")
	}

	if b.resultsFolder == "" {
		b.log.Error("No results folder set")

		return errors.New(errors.ErrCodeResultWriteFailed, "no results folder set")
	}

	if b.datasource == nil {
		b.log.Error("No datasource set")

		return errors.New(errors.ErrCodeBacktestNoDatasource, "no datasource set")
	}

	return nil
}
