package writer

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"go.uber.org/zap"
)

const barTable = "bars"

// DuckDBWriter stages bars in an in-memory DuckDB table and exports them to Parquet.
type DuckDBWriter struct {
	db         *sql.DB
	tx         *sql.Tx
	stmt       *sql.Stmt
	outputPath string
	indicators []string
	logger     *logger.Logger
}

// NewDuckDBWriter creates a new DuckDBWriter writing the price columns followed by
// one DOUBLE column per indicator, in the given order.
func NewDuckDBWriter(outputPath string, indicators []string, log *logger.Logger) BarWriter {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &DuckDBWriter{
		outputPath: outputPath,
		indicators: indicators,
		logger:     log,
	}
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (w *DuckDBWriter) columns() []string {
	columns := []string{"time", "open", "high", "low", "close", "spread"}

	return append(columns, w.indicators...)
}

// Initialize implements BarWriter.
func (w *DuckDBWriter) Initialize() (err error) {
	w.db, err = sql.Open("duckdb", ":memory:")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	definitions := []string{"time TIMESTAMP"}
	for _, column := range w.columns()[1:] {
		definitions = append(definitions, fmt.Sprintf("%s DOUBLE", quote(column)))
	}

	_, err = w.db.Exec(fmt.Sprintf(`CREATE TABLE %s (%s)`, barTable, strings.Join(definitions, ", ")))
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to create table: %w", err)
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()

		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	quoted := make([]string, 0, len(w.columns()))
	for _, column := range w.columns() {
		quoted = append(quoted, quote(column))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(quoted)), ", ")

	w.stmt, err = w.tx.Prepare(fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		barTable, strings.Join(quoted, ", "), placeholders))
	if err != nil {
		w.tx.Rollback()
		w.db.Close()

		return fmt.Errorf("failed to prepare statement: %w", err)
	}

	return nil
}

func nullable(value optional.Option[float64]) sql.NullFloat64 {
	if value.IsNone() {
		return sql.NullFloat64{}
	}

	return sql.NullFloat64{Float64: value.Unwrap(), Valid: true}
}

// Write implements BarWriter.
func (w *DuckDBWriter) Write(bar types.Bar) error {
	if w.stmt == nil {
		return fmt.Errorf("writer not initialized or statement is nil")
	}

	args := []any{
		bar.Time,
		nullable(bar.Open),
		nullable(bar.High),
		nullable(bar.Low),
		nullable(bar.Close),
		nullable(bar.Spread),
	}

	for _, indicator := range w.indicators {
		args = append(args, nullable(bar.Indicator(indicator)))
	}

	if _, err := w.stmt.Exec(args...); err != nil {
		return fmt.Errorf("failed to insert bar %d: %w", bar.Index, err)
	}

	return nil
}

// Finalize implements BarWriter.
func (w *DuckDBWriter) Finalize() (outputPath string, err error) {
	if w.tx == nil {
		return "", fmt.Errorf("writer not initialized or transaction is nil")
	}

	if err = w.tx.Commit(); err != nil {
		w.tx.Rollback()

		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.tx = nil

	_, err = w.db.Exec(fmt.Sprintf(`COPY (SELECT * FROM %s ORDER BY time) TO '%s' (FORMAT PARQUET)`,
		barTable, strings.ReplaceAll(w.outputPath, "'", "''")))
	if err != nil {
		return "", fmt.Errorf("failed to export to Parquet: %w", err)
	}

	w.logger.Debug("Exported bars", zap.String("path", w.outputPath))

	return w.outputPath, nil
}

// Close implements BarWriter. An unfinished transaction is rolled back.
func (w *DuckDBWriter) Close() error {
	var closeErrors []string

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("failed to close statement: %v", err))
		}

		w.stmt = nil
	}

	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil {
			w.logger.Warn("Failed to rollback transaction during close", zap.Error(err))
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Sprintf("failed to close db connection: %v", err))
		}

		w.db = nil
	}

	if len(closeErrors) > 0 {
		return fmt.Errorf("errors occurred during close:\n- %s", strings.Join(closeErrors, "\n- "))
	}

	return nil
}

// GetOutputPath implements BarWriter.
func (w *DuckDBWriter) GetOutputPath() string {
	return w.outputPath
}
