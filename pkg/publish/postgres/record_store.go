package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"github.com/rxtech-lab/argo-range-backtest/pkg/publish"
	"go.uber.org/zap"
)

var recordColumns = []string{
	"run_id", "rank", "point_index", "config_key", "block", "profit", "loss",
	"total_count", "win_count", "loss_count", "even_count", "win_rate",
	"net_result", "average_result", "net_pips", "average_pips",
	"max_profit_pips", "max_loss_pips", "max_drawdown_pips",
}

// RunSummary is one stored run.
type RunSummary struct {
	ID       string
	RunAt    time.Time
	Symbols  []string
	DataPath string
	BarCount int
	BestKey  optional.Option[string]
}

// RecordStore writes the records of every published run.
type RecordStore struct {
	pool   *Pool
	sq     squirrel.StatementBuilderType
	logger *logger.Logger
}

var _ publish.Publisher = (*RecordStore)(nil)

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool, log *logger.Logger) *RecordStore {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &RecordStore{
		pool:   pool,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: log,
	}
}

// Publish implements publish.Publisher. The run and its records are written in one
// transaction; publishing the same run twice fails with ErrCodeDuplicateRun.
func (s *RecordStore) Publish(ctx context.Context, _ string, report types.Report) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodePublishFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var bestKey *string
	if report.Best != nil {
		bestKey = &report.Best.Key
	}

	// nil slices are written as NULL
	symbols := append([]string{}, report.Symbols...)
	timeframes := append([]string{}, report.Timeframes...)

	query, args, err := s.sq.
		Insert("sweep_runs").
		Columns("id", "run_at", "symbols", "timeframes", "indicator", "data_path", "bar_count", "skipped_rows", "best_key").
		Values(report.ID, report.Timestamp, symbols, timeframes, report.Indicator,
			report.DataPath, report.BarCount, report.SkippedRows, bestKey).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodePublishFailed, "failed to build run insert", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if isDuplicateKeyError(err) {
			return errors.Newf(errors.ErrCodeDuplicateRun, "run %s is already published", report.ID)
		}

		return errors.Wrap(errors.ErrCodePublishFailed, "failed to insert run", err)
	}

	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"sweep_records"}, recordColumns,
		pgx.CopyFromSlice(len(report.Records), func(i int) ([]any, error) {
			r := report.Records[i]

			return []any{
				report.ID, i, r.Index, r.Key, r.Block, r.Profit, r.Loss,
				r.TotalCount, r.WinCount, r.LossCount, r.EvenCount, r.WinRate,
				r.NetResult, r.AverageResult, r.NetPips, r.AveragePips,
				r.MaxProfitPips, r.MaxLossPips, r.MaxDrawdownPips,
			}, nil
		}))
	if err != nil {
		return errors.Wrap(errors.ErrCodePublishFailed, "failed to copy records", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(errors.ErrCodePublishFailed, "failed to commit transaction", err)
	}

	s.logger.Debug("Published run", zap.String("id", report.ID), zap.Int64("records", copied))

	return nil
}

// Records returns the records of a run in report order, best first.
func (s *RecordStore) Records(ctx context.Context, runID string) ([]types.PerformanceRecord, error) {
	query, args, err := s.sq.
		Select(recordColumns[2:]...).
		From("sweep_records").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("rank").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build records query", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query records", err)
	}
	defer rows.Close()

	var records []types.PerformanceRecord

	for rows.Next() {
		var r types.PerformanceRecord

		err := rows.Scan(
			&r.Index, &r.Key, &r.Block, &r.Profit, &r.Loss,
			&r.TotalCount, &r.WinCount, &r.LossCount, &r.EvenCount, &r.WinRate,
			&r.NetResult, &r.AverageResult, &r.NetPips, &r.AveragePips,
			&r.MaxProfitPips, &r.MaxLossPips, &r.MaxDrawdownPips,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan record", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate records", err)
	}

	return records, nil
}

// Runs returns the most recent runs, newest first.
func (s *RecordStore) Runs(ctx context.Context, limit uint64) ([]RunSummary, error) {
	query, args, err := s.sq.
		Select("id", "run_at", "symbols", "data_path", "bar_count", "best_key").
		From("sweep_runs").
		OrderBy("run_at DESC", "id").
		Limit(limit).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build runs query", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query runs", err)
	}
	defer rows.Close()

	var runs []RunSummary

	for rows.Next() {
		var (
			run     RunSummary
			bestKey *string
		)

		if err := rows.Scan(&run.ID, &run.RunAt, &run.Symbols, &run.DataPath, &run.BarCount, &bestKey); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan run", err)
		}

		run.BestKey = optional.None[string]()
		if bestKey != nil {
			run.BestKey = optional.Some(*bestKey)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate runs", err)
	}

	return runs, nil
}

// Close implements publish.Publisher.
func (s *RecordStore) Close() error {
	s.pool.Close()

	return nil
}
