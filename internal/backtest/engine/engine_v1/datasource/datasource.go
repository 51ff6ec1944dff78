package datasource

import (
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// ColumnMapping names the source columns holding the bar fields.
// Spread may be left empty, in which case every bar has an absent spread.
type ColumnMapping struct {
	Time   string `yaml:"time" json:"time" jsonschema:"title=Time column,default=time"`
	Open   string `yaml:"open" json:"open" jsonschema:"title=Open column,default=open"`
	High   string `yaml:"high" json:"high" jsonschema:"title=High column,default=high"`
	Low    string `yaml:"low" json:"low" jsonschema:"title=Low column,default=low"`
	Close  string `yaml:"close" json:"close" jsonschema:"title=Close column,default=close"`
	Spread string `yaml:"spread" json:"spread" jsonschema:"title=Spread column,default=spread"`
}

// DefaultColumnMapping returns the mapping used when the configuration omits one.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		Time:   "time",
		Open:   "open",
		High:   "high",
		Low:    "low",
		Close:  "close",
		Spread: "spread",
	}
}

// WithDefaults fills every empty field except Spread from DefaultColumnMapping.
func (m ColumnMapping) WithDefaults() ColumnMapping {
	defaults := DefaultColumnMapping()

	if m.Time == "" {
		m.Time = defaults.Time
	}

	if m.Open == "" {
		m.Open = defaults.Open
	}

	if m.High == "" {
		m.High = defaults.High
	}

	if m.Low == "" {
		m.Low = defaults.Low
	}

	if m.Close == "" {
		m.Close = defaults.Close
	}

	return m
}

// Required returns the columns that must exist in the source.
func (m ColumnMapping) Required() []string {
	columns := []string{m.Time, m.Open, m.High, m.Low, m.Close}
	if m.Spread != "" {
		columns = append(columns, m.Spread)
	}

	return columns
}

type DataSource interface {
	// Initialize exposes the file at path as the market_data view. Parquet and CSV files are supported.
	Initialize(path string) error
	// Columns returns the column names of the market data in source order.
	Columns() ([]string, error)
	// ReadAll reads every row in source order and yields it to the caller as a bar.
	// Indicator columns are read into Bar.Indicators under their own names.
	ReadAll(mapping ColumnMapping, indicators []string) func(yield func(types.Bar, error) bool)
	// Count returns the number of rows in the data source
	Count() (int, error)
	// Close closes the data source and releases any resources
	Close() error
}
