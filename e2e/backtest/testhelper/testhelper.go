package testhelper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine"
	v1 "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/marketdata/writer"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite is a base test suite for E2E tests
type E2ETestSuite struct {
	suite.Suite
	Backtest engine.Engine
}

// SetupTest initializes the backtest engine with a DuckDB data source.
func (s *E2ETestSuite) SetupTest(engineConfig string) {
	backtest := v1.NewBacktestEngineV1()
	err := backtest.Initialize(engineConfig)
	s.Require().NoError(err)

	dataSource, err := datasource.NewDataSource(":memory:", logger.NewNopLogger())
	s.Require().NoError(err)

	err = backtest.SetDataSource(dataSource)
	s.Require().NoError(err)

	s.Backtest = backtest
}

// WriteBars writes bars to a parquet file under dir and returns its path.
func WriteBars(s *E2ETestSuite, dir string, name string, bars []types.Bar, indicators []string) string {
	w := writer.NewDuckDBWriter(filepath.Join(dir, name), indicators, nil)
	require.NoError(s.T(), w.Initialize())

	defer w.Close()

	for _, bar := range bars {
		require.NoError(s.T(), w.Write(bar))
	}

	path, err := w.Finalize()
	require.NoError(s.T(), err)

	return path
}

// ConvertToCSV copies a parquet file to a CSV file next to it.
func ConvertToCSV(parquetPath string) (string, error) {
	csvPath := strings.TrimSuffix(parquetPath, filepath.Ext(parquetPath)) + ".csv"

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return "", fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	_, err = db.Exec(fmt.Sprintf(`COPY (SELECT * FROM read_parquet('%s')) TO '%s' (HEADER, DELIMITER ',');`, parquetPath, csvPath))
	if err != nil {
		return "", fmt.Errorf("failed to export to CSV: %w", err)
	}

	return csvPath, nil
}

// RunBacktest runs the engine on dataPath and returns the results folder.
func RunBacktest(s *E2ETestSuite, dataPath string) (resultPath string) {
	resultPath = filepath.Join(s.T().TempDir(), "results")

	err := s.Backtest.SetDataPath(dataPath)
	require.NoError(s.T(), err)

	err = s.Backtest.SetResultsFolder(resultPath)
	require.NoError(s.T(), err)

	err = s.Backtest.Run(context.Background(), engine.LifecycleCallbacks{})
	require.NoError(s.T(), err)

	return resultPath
}

func findFile(s *E2ETestSuite, folder string, name string) string {
	var paths []string

	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && filepath.Base(path) == name {
			paths = append(paths, path)
		}

		return nil
	})

	require.NoError(s.T(), err)
	require.Len(s.T(), paths, 1, "expected exactly one %s in %s", name, folder)

	return paths[0]
}

// ReadReport reads the report from the results folder.
func ReadReport(s *E2ETestSuite, resultPath string) types.Report {
	report, err := types.ReadReport(findFile(s, resultPath, v1.ReportFileName))
	require.NoError(s.T(), err)

	return report
}

// ReadBreakdown reads the breakdown of the best configuration from the results folder.
func ReadBreakdown(s *E2ETestSuite, resultPath string) types.Breakdown {
	breakdown, err := types.ReadBreakdown(findFile(s, resultPath, v1.BreakdownFileName))
	require.NoError(s.T(), err)

	return breakdown
}

// LedgerRow is the subset of an exported ledger row checked by the tests.
type LedgerRow struct {
	Key        string
	PointIndex int
	Status     string
	Pips       float64
}

// ReadLedger reads the exported ledger from the results folder in file order.
func ReadLedger(s *E2ETestSuite, resultPath string) (rows []LedgerRow, err error) {
	ledgerPath := findFile(s, resultPath, v1.LedgerFileName)

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}
	defer db.Close()

	// Squirrel doesn't support CREATE VIEW
	_, err = db.Exec(fmt.Sprintf(`CREATE VIEW ledger_view AS SELECT * FROM read_parquet('%s');`, ledgerPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create view from parquet file: %w", err)
	}

	sq := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

	query, args, err := sq.
		Select("config_key", "point_index", "status", "pips").
		From("ledger_view").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query: %w", err)
	}

	result, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer result.Close()

	for result.Next() {
		var row LedgerRow
		if err := result.Scan(&row.Key, &row.PointIndex, &row.Status, &row.Pips); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}

		rows = append(rows, row)
	}

	return rows, result.Err()
}
