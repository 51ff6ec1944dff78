package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"go.uber.org/zap"
)

// LedgerFileName is the name of the parquet export in the results folder.
const LedgerFileName = "ledger.parquet"

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

var positionColumns = []string{
	"config_key", "point_index", "seq", "id", "direction",
	"entry_price", "entry_time", "entry_index", "spread",
	"target_price", "stop_price", "trail_price", "trail_steps",
	"status", "exit_price", "exit_time", "exit_index", "pips", "result",
}

// LedgerStore keeps the closed positions of every point of a run in an
// in-memory DuckDB table so they can be exported as a single parquet file.
type LedgerStore struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	mu     sync.Mutex
}

func NewLedgerStore(logger *logger.Logger) (*LedgerStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to open ledger database", err)
	}

	return &LedgerStore{
		logger: logger,
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Initialize creates the positions table.
func (s *LedgerStore) Initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS positions (
			config_key TEXT,
			point_index INTEGER,
			seq INTEGER,
			id INTEGER,
			direction TEXT,
			entry_price DOUBLE,
			entry_time TIMESTAMP,
			entry_index INTEGER,
			spread DOUBLE,
			target_price DOUBLE,
			stop_price DOUBLE,
			trail_price DOUBLE,
			trail_steps INTEGER,
			status TEXT,
			exit_price DOUBLE,
			exit_time TIMESTAMP,
			exit_index INTEGER,
			pips DOUBLE,
			result DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create positions table", err)
	}

	return nil
}

// Append stores the ledger of one point. Safe for concurrent use.
func (s *LedgerStore) Append(key string, pointIndex int, ledger types.Ledger) error {
	if len(ledger) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to begin transaction", err)
	}

	for start := 0; start < len(ledger); start += insertBatchSize {
		end := min(start+insertBatchSize, len(ledger))

		insert := s.sq.Insert("positions").Columns(positionColumns...)
		for seq := start; seq < end; seq++ {
			p := ledger[seq]
			insert = insert.Values(
				key, pointIndex, seq, p.ID, string(p.Direction),
				p.EntryPrice, p.EntryTime, p.EntryIndex, p.Spread,
				p.TargetPrice, p.StopPrice, p.TrailPrice, p.TrailSteps,
				string(p.Status), p.ExitPrice, p.ExitTime, p.ExitIndex, p.Pips, p.Result,
			)
		}

		if _, err := insert.RunWith(tx).Exec(); err != nil {
			tx.Rollback()

			return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to insert ledger of %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to commit ledger", err)
	}

	return nil
}

// Count returns the number of stored positions.
func (s *LedgerStore) Count() (int, error) {
	query, args, err := s.sq.Select("COUNT(*)").From("positions").ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count positions", err)
	}

	return count, nil
}

// Ledger reads back the ledger of the point at pointIndex in its original order.
func (s *LedgerStore) Ledger(pointIndex int) (types.Ledger, error) {
	columns := positionColumns[3:]

	query, args, err := s.sq.
		Select(columns...).
		From("positions").
		Where(squirrel.Eq{"point_index": pointIndex}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build ledger query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query ledger", err)
	}
	defer rows.Close()

	ledger := types.Ledger{}

	for rows.Next() {
		var (
			p                 types.Position
			direction, status string
			entryTime         time.Time
			exitTime          time.Time
		)

		err := rows.Scan(
			&p.ID, &direction,
			&p.EntryPrice, &entryTime, &p.EntryIndex, &p.Spread,
			&p.TargetPrice, &p.StopPrice, &p.TrailPrice, &p.TrailSteps,
			&status, &p.ExitPrice, &exitTime, &p.ExitIndex, &p.Pips, &p.Result,
		)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan position", err)
		}

		p.Direction = types.Direction(direction)
		p.Status = types.PositionStatus(status)
		p.EntryTime = entryTime
		p.ExitTime = exitTime
		ledger = append(ledger, p)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate ledger", err)
	}

	return ledger, nil
}

// Cleanup resets the database state
func (s *LedgerStore) Cleanup() error {
	// Squirrel doesn't have DROP syntax
	_, err := s.db.Exec(`DROP TABLE IF EXISTS positions;`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to cleanup positions table", err)
	}

	return s.Initialize()
}

// Write exports every stored position to <path>/ledger.parquet, ordered by
// point index and ledger sequence, and returns the file path.
func (s *LedgerStore) Write(path string) (string, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create directory", err)
	}

	ledgerPath := filepath.Join(path, LedgerFileName)

	// Squirrel doesn't support COPY
	query := fmt.Sprintf(`COPY (SELECT * FROM positions ORDER BY point_index, seq) TO '%s' (FORMAT PARQUET)`,
		strings.ReplaceAll(ledgerPath, "'", "''"))

	if _, err := s.db.Exec(query); err != nil {
		return "", errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to export ledger to parquet", err)
	}

	s.logger.Info("Exported ledger to parquet", zap.String("path", ledgerPath))

	return ledgerPath, nil
}

// Close closes the underlying database.
func (s *LedgerStore) Close() error {
	return s.db.Close()
}
