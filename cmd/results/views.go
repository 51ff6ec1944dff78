package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	engine "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// SortField selects the ordering of the record table.
type SortField int

const (
	SortNetResult SortField = iota
	SortWinRate
	SortTrades
)

func (s SortField) String() string {
	switch s {
	case SortWinRate:
		return "win rate"
	case SortTrades:
		return "trades"
	default:
		return "net result"
	}
}

// Next cycles to the following sort field.
func (s SortField) Next() SortField {
	return (s + 1) % 3
}

// listItem implements list.Item interface for the report list.
type listItem struct {
	name        string
	description string
}

func (i listItem) Title() string       { return i.name }
func (i listItem) Description() string { return i.description }
func (i listItem) FilterValue() string { return i.name }

// FindReports returns every report file below root in lexical order.
func FindReports(root string) ([]string, error) {
	var reports []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && d.Name() == engine.ReportFileName {
			reports = append(reports, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	sort.Strings(reports)

	return reports, nil
}

// NewReportList creates a new list for report selection.
func NewReportList(root string, paths []string) list.Model {
	items := make([]list.Item, 0, len(paths))

	for _, path := range paths {
		name, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			name = filepath.Dir(path)
		}

		items = append(items, listItem{name: name, description: path})
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true

	l := list.New(items, delegate, 0, 0)
	l.Title = "Select Report"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	return l
}

// NewFilterInput creates a new text input for filtering records by key.
func NewFilterInput() textinput.Model {
	ti := textinput.New()
	ti.Placeholder = "sma_diff#0=[0,25]"
	ti.CharLimit = 200
	ti.Width = 50
	ti.Prompt = "/ "

	return ti
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)

	t.SetStyles(s)

	return t
}

// NewRecordTable creates a new table for displaying performance records.
func NewRecordTable() table.Model {
	return newTable([]table.Column{
		{Title: "#", Width: 5},
		{Title: "Key", Width: 44},
		{Title: "Trades", Width: 8},
		{Title: "Win %", Width: 8},
		{Title: "Net pips", Width: 14},
		{Title: "Avg pips", Width: 10},
		{Title: "Max DD", Width: 10},
	})
}

// NewBreakdownTable creates a new table for displaying a period breakdown.
func NewBreakdownTable() table.Model {
	return newTable([]table.Column{
		{Title: "Period", Width: 12},
		{Title: "Trades", Width: 8},
		{Title: "Wins", Width: 8},
		{Title: "Losses", Width: 8},
		{Title: "Win %", Width: 8},
		{Title: "Net pips", Width: 14},
	})
}

// SortRecords returns a sorted copy of records. Ties keep the report order.
func SortRecords(records []types.PerformanceRecord, by SortField) []types.PerformanceRecord {
	sorted := make([]types.PerformanceRecord, len(records))
	copy(sorted, records)

	sort.SliceStable(sorted, func(i, j int) bool {
		switch by {
		case SortWinRate:
			return sorted[i].WinRate > sorted[j].WinRate
		case SortTrades:
			return sorted[i].TotalCount > sorted[j].TotalCount
		default:
			return sorted[i].NetResult > sorted[j].NetResult
		}
	})

	return sorted
}

// FilterRecords keeps the records whose key contains filter.
func FilterRecords(records []types.PerformanceRecord, filter string) []types.PerformanceRecord {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return records
	}

	filtered := make([]types.PerformanceRecord, 0, len(records))

	for _, record := range records {
		if strings.Contains(record.Key, filter) {
			filtered = append(filtered, record)
		}
	}

	return filtered
}

// UpdateRecordRows fills the table with the filtered and sorted records.
func UpdateRecordRows(t table.Model, records []types.PerformanceRecord, by SortField, filter string) table.Model {
	records = SortRecords(FilterRecords(records, filter), by)
	rows := make([]table.Row, 0, len(records))

	for i, record := range records {
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			record.Key,
			fmt.Sprintf("%d", record.TotalCount),
			FormatPercent(record.WinRate),
			FormatPips(record.NetPips),
			fmt.Sprintf("%.2f", record.AveragePips),
			fmt.Sprintf("%.2f", record.MaxDrawdownPips),
		})
	}

	t.SetRows(rows)
	t.SetCursor(0)

	return t
}

// UpdateBreakdownRows fills the table with the rows of one period.
func UpdateBreakdownRows(t table.Model, breakdown types.Breakdown, period types.Period) table.Model {
	periods := breakdown.Periods[period]
	rows := make([]table.Row, 0, len(periods))

	for _, row := range periods {
		rows = append(rows, table.Row{
			row.Label,
			fmt.Sprintf("%d", row.TotalCount),
			fmt.Sprintf("%d", row.WinCount),
			fmt.Sprintf("%d", row.LossCount),
			FormatPercent(row.WinRate),
			FormatPips(row.NetPips),
		})
	}

	t.SetRows(rows)
	t.SetCursor(0)

	return t
}

// NextPeriod cycles through the reported periods.
func NextPeriod(period types.Period) types.Period {
	for i, p := range types.AllPeriods {
		if p == period {
			return types.AllPeriods[(i+1)%len(types.AllPeriods)]
		}
	}

	return types.AllPeriods[0]
}
