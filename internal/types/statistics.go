package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RangeSelection records which bucket of a column's range rule a sweep point used.
type RangeSelection struct {
	Column string  `yaml:"column" json:"column"`
	Bucket int     `yaml:"bucket" json:"bucket"`
	Low    float64 `yaml:"low" json:"low"`
	High   float64 `yaml:"high" json:"high"`
}

// ReasonCount is the number of positions closed with a given status.
type ReasonCount struct {
	Status PositionStatus `yaml:"status" json:"status"`
	Count  int            `yaml:"count" json:"count"`
}

// PerformanceRecord summarizes the ledger of one configuration point.
// It is never mutated after creation.
type PerformanceRecord struct {
	// Key identifies the configuration point, e.g. "sma_diff/rci=[0,25]/p=100/l=100".
	Key string `yaml:"key" json:"key"`
	// Index is the position of the point in the sweep enumeration.
	Index int `yaml:"index" json:"index"`
	// Block is the name of the direction parameter block.
	Block  string           `yaml:"block" json:"block"`
	Ranges []RangeSelection `yaml:"ranges,omitempty" json:"ranges,omitempty"`
	// Profit and Loss are the profit target and stop loss in pips.
	Profit float64 `yaml:"profit" json:"profit"`
	Loss   float64 `yaml:"loss" json:"loss"`

	TotalCount int `yaml:"total_count" json:"total_count"`
	// WinCount counts positions with a zero or positive result.
	WinCount int `yaml:"win_count" json:"win_count"`
	// LossCount counts positions with a negative result.
	LossCount int `yaml:"loss_count" json:"loss_count"`
	// EvenCount counts positions closed at exactly zero. They are included in WinCount.
	EvenCount int `yaml:"even_count" json:"even_count"`
	// WinRate is WinCount / TotalCount, 0 when there are no trades.
	WinRate float64 `yaml:"win_rate" json:"win_rate"`

	// NetResult and AverageResult are in price units.
	NetResult     float64 `yaml:"net_result" json:"net_result"`
	AverageResult float64 `yaml:"average_result" json:"average_result"`
	NetPips       float64 `yaml:"net_pips" json:"net_pips"`
	AveragePips   float64 `yaml:"average_pips" json:"average_pips"`
	MaxProfitPips float64 `yaml:"max_profit_pips" json:"max_profit_pips"`
	MaxLossPips   float64 `yaml:"max_loss_pips" json:"max_loss_pips"`
	// MaxDrawdownPips is the largest peak-to-trough fall of the cumulative pip curve.
	MaxDrawdownPips float64 `yaml:"max_drawdown_pips" json:"max_drawdown_pips"`

	ReasonCounts []ReasonCount `yaml:"reason_counts" json:"reason_counts"`
}

// Period selects the grouping of a performance breakdown.
type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
	PeriodWeek  Period = "week"
	PeriodDay   Period = "day"
)

// AllPeriods lists the periods reported for the best configuration.
var AllPeriods = []Period{PeriodYear, PeriodMonth, PeriodWeek, PeriodDay}

// PeriodPerformance is one row of a breakdown, keyed by the entry time of the positions.
type PeriodPerformance struct {
	// Label is e.g. "2024", "2024-01", "2024-W01" or "2024-01-01".
	Label      string  `yaml:"label" json:"label"`
	TotalCount int     `yaml:"total_count" json:"total_count"`
	WinCount   int     `yaml:"win_count" json:"win_count"`
	LossCount  int     `yaml:"loss_count" json:"loss_count"`
	WinRate    float64 `yaml:"win_rate" json:"win_rate"`
	NetPips    float64 `yaml:"net_pips" json:"net_pips"`
}

// Report is the output of one engine run.
type Report struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp  time.Time `yaml:"timestamp" json:"timestamp"`
	Symbols    []string  `yaml:"symbols" json:"symbols"`
	Timeframes []string  `yaml:"timeframes" json:"timeframes"`
	Indicator  string    `yaml:"technical_indicator" json:"technical_indicator"`
	DataPath   string    `yaml:"data_path" json:"data_path"`
	BarCount   int       `yaml:"bar_count" json:"bar_count"`
	// SkippedRows is the number of bars excluded because of missing prices.
	SkippedRows int                 `yaml:"skipped_rows" json:"skipped_rows"`
	Best        *PerformanceRecord  `yaml:"best,omitempty" json:"best,omitempty"`
	Records     []PerformanceRecord `yaml:"records" json:"records"`
	// LedgerFilePath is the path to the parquet ledger of every point.
	LedgerFilePath string `yaml:"ledger_file_path,omitempty" json:"ledger_file_path,omitempty"`
}

// Breakdown holds the per-period rows of the best configuration.
type Breakdown struct {
	Key     string                         `yaml:"key" json:"key"`
	Periods map[Period][]PeriodPerformance `yaml:"periods" json:"periods"`
}

// WriteReport writes the report as YAML.
func WriteReport(path string, report Report) error {
	return writeYAML(path, report)
}

// ReadReport reads a report written by WriteReport.
func ReadReport(path string) (Report, error) {
	var report Report

	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("failed to read report: %w", err)
	}

	if err := yaml.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("failed to unmarshal report: %w", err)
	}

	return report, nil
}

// WriteBreakdown writes the breakdown as YAML.
func WriteBreakdown(path string, breakdown Breakdown) error {
	return writeYAML(path, breakdown)
}

// ReadBreakdown reads a breakdown written by WriteBreakdown.
func ReadBreakdown(path string) (Breakdown, error) {
	var breakdown Breakdown

	data, err := os.ReadFile(path)
	if err != nil {
		return breakdown, fmt.Errorf("failed to read breakdown: %w", err)
	}

	if err := yaml.Unmarshal(data, &breakdown); err != nil {
		return breakdown, fmt.Errorf("failed to unmarshal breakdown: %w", err)
	}

	return breakdown, nil
}

func writeYAML(path string, value any) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
