package datasource

import (
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"go.uber.org/zap"
)

const marketDataView = "market_data"

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource creates a new DuckDB data source instance with the specified database path.
// Use ":memory:" for an in-memory database.
// This is distinct from Initialize() which exposes the market data file to the database.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	// Rows must come back in file order so the loader can check time ordering.
	_, err = db.Exec(`SET preserve_insertion_order=true;`)
	if err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to configure duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Initialize implements DataSource.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	reader, err := readerFor(path)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(fmt.Sprintf(`DROP VIEW IF EXISTS %s;`, marketDataView))
	if err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to drop existing view", err)
	}

	// Squirrel doesn't support CREATE VIEW
	query := fmt.Sprintf(`CREATE VIEW %s AS SELECT * FROM %s('%s');`,
		marketDataView, reader, strings.ReplaceAll(path, "'", "''"))

	_, err = d.db.Exec(query)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to read market data from %s", path)
	}

	return nil
}

// Columns implements DataSource.
func (d *DuckDBDataSource) Columns() ([]string, error) {
	query, args, err := d.sq.
		Select("column_name").
		From("information_schema.columns").
		Where(squirrel.Eq{"table_name": marketDataView}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build columns query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query columns", err)
	}
	defer rows.Close()

	var columns []string

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate columns", err)
	}

	if len(columns) == 0 {
		return nil, errors.New(errors.ErrCodeDataSourceUnavailable, "data source is not initialized")
	}

	return columns, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count() (int, error) {
	query, args, err := d.sq.Select("COUNT(*)").From(marketDataView).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count rows", err)
	}

	return count, nil
}

// ReadAll implements DataSource.
func (d *DuckDBDataSource) ReadAll(mapping ColumnMapping, indicators []string) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		d.logger.Debug("Reading all bars from DuckDB",
			zap.Any("mapping", mapping),
			zap.Strings("indicators", indicators),
		)

		// Non-numeric cells become NULL so a single bad cell only affects its row.
		selects := []string{
			fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", quoteIdentifier(mapping.Time)),
			castDouble(mapping.Open),
			castDouble(mapping.High),
			castDouble(mapping.Low),
			castDouble(mapping.Close),
		}

		if mapping.Spread != "" {
			selects = append(selects, castDouble(mapping.Spread))
		} else {
			selects = append(selects, "NULL::DOUBLE")
		}

		for _, indicator := range indicators {
			selects = append(selects, castDouble(indicator))
		}

		query, args, err := d.sq.Select(selects...).From(marketDataView).ToSql()
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build select query", err))

			return
		}

		rows, err := d.db.Query(query, args...)
		if err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query market data", err))

			return
		}
		defer rows.Close()

		index := 0

		for rows.Next() {
			var timestamp sql.NullTime

			prices := make([]sql.NullFloat64, 5)
			values := make([]sql.NullFloat64, len(indicators))

			dest := []any{&timestamp}
			for i := range prices {
				dest = append(dest, &prices[i])
			}

			for i := range values {
				dest = append(dest, &values[i])
			}

			if err := rows.Scan(dest...); err != nil {
				yield(types.Bar{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to scan row %d", index))

				return
			}

			if !timestamp.Valid {
				yield(types.Bar{}, errors.NewDataQualityError(errors.ErrCodeMissingTimestamp, index, mapping.Time, "timestamp is missing or unparseable"))

				return
			}

			bar := types.Bar{
				Index:      index,
				Time:       timestamp.Time,
				Open:       toOption(prices[0]),
				High:       toOption(prices[1]),
				Low:        toOption(prices[2]),
				Close:      toOption(prices[3]),
				Spread:     toOption(prices[4]),
				Indicators: make(map[string]optional.Option[float64], len(indicators)),
			}

			for i, indicator := range indicators {
				bar.Indicators[indicator] = toOption(values[i])
			}

			if !yield(bar, nil) {
				return
			}

			index++
		}

		if err := rows.Err(); err != nil {
			yield(types.Bar{}, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate market data", err))
		}
	}
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	return d.db.Close()
}

func readerFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return "read_parquet", nil
	case ".csv":
		return "read_csv_auto", nil
	default:
		return "", errors.Newf(errors.ErrCodeDataSourceUnavailable, "unsupported market data file: %s", path)
	}
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func castDouble(column string) string {
	return fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", quoteIdentifier(column))
}

// toOption maps NULL and non-finite cells (a CSV "NaN" casts to a NaN double) to None.
func toOption(value sql.NullFloat64) optional.Option[float64] {
	if !value.Valid || math.IsNaN(value.Float64) || math.IsInf(value.Float64, 0) {
		return optional.None[float64]()
	}

	return optional.Some(value.Float64)
}
