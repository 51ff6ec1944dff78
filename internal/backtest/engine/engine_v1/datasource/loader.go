package datasource

import (
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
)

// LoadBars checks that every mapped and indicator column exists, then drains
// the data source into memory. Timestamps must be strictly increasing.
func LoadBars(ds DataSource, mapping ColumnMapping, indicators []string) ([]types.Bar, error) {
	columns, err := ds.Columns()
	if err != nil {
		return nil, err
	}

	if err := checkColumns(columns, mapping, indicators); err != nil {
		return nil, err
	}

	var bars []types.Bar

	for bar, err := range ds.ReadAll(mapping, indicators) {
		if err != nil {
			return nil, err
		}

		if len(bars) > 0 {
			previous := bars[len(bars)-1]

			switch {
			case bar.Time.Equal(previous.Time):
				return nil, errors.NewDataQualityErrorf(errors.ErrCodeDuplicateTimestamp, bar.Index, mapping.Time,
					"timestamp %s repeats row %d", bar.Time, previous.Index)
			case bar.Time.Before(previous.Time):
				return nil, errors.NewDataQualityErrorf(errors.ErrCodeNonMonotonicTime, bar.Index, mapping.Time,
					"timestamp %s is earlier than row %d", bar.Time, previous.Index)
			}
		}

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return nil, errors.NewDataQualityError(errors.ErrCodeEmptySeries, -1, "", "market data has no rows")
	}

	return bars, nil
}

func checkColumns(columns []string, mapping ColumnMapping, indicators []string) error {
	available := make(map[string]bool, len(columns))
	for _, column := range columns {
		available[column] = true
	}

	required := append(mapping.Required(), indicators...)
	for _, column := range required {
		if !available[column] {
			return errors.NewDataQualityErrorf(errors.ErrCodeMissingColumn, -1, column, "column %q not found in market data", column)
		}
	}

	return nil
}
