package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	engine "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []types.PerformanceRecord {
	return []types.PerformanceRecord{
		{Key: "sma/sma_diff=[0,25]/p=10/l=10", Index: 0, TotalCount: 10, WinRate: 0.4, NetResult: 0.5, NetPips: 50},
		{Key: "sma/sma_diff=[25,50]/p=10/l=10", Index: 1, TotalCount: 4, WinRate: 0.75, NetResult: 0.2, NetPips: 20},
		{Key: "sma/sma_diff=[0,25]/p=20/l=10", Index: 2, TotalCount: 30, WinRate: 0.3, NetResult: -0.1, NetPips: -10},
	}
}

// writeSampleReport writes a report and its breakdown into dir and returns the report path.
func writeSampleReport(t *testing.T, dir string) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(dir, 0755))

	records := sampleRecords()
	best := records[0]
	report := types.Report{
		ID:        "run-1",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbols:   []string{"USDJPY"},
		DataPath:  "/data/USDJPY_5m.parquet",
		BarCount:  1000,
		Best:      &best,
		Records:   records,
	}

	path := filepath.Join(dir, engine.ReportFileName)
	require.NoError(t, types.WriteReport(path, report))

	breakdown := types.Breakdown{
		Key: best.Key,
		Periods: map[types.Period][]types.PeriodPerformance{
			types.PeriodMonth: {{Label: "2024-01", TotalCount: 10, WinCount: 4, LossCount: 6, WinRate: 0.4, NetPips: 50}},
			types.PeriodWeek:  {{Label: "2024-W02", TotalCount: 10, WinCount: 4, LossCount: 6, WinRate: 0.4, NetPips: 50}},
		},
	}
	require.NoError(t, types.WriteBreakdown(filepath.Join(dir, engine.BreakdownFileName), breakdown))

	return path
}

func TestNewModel(t *testing.T) {
	m := NewModel("results", nil)

	assert.Equal(t, StateReportSelect, m.state)
	assert.Equal(t, SortNetResult, m.sortBy)
	assert.Equal(t, types.PeriodMonth, m.period)
	assert.True(t, m.breakdown.IsNone())
	assert.Nil(t, m.Init())
}

func TestSortRecords(t *testing.T) {
	records := sampleRecords()

	tests := []struct {
		name     string
		by       SortField
		expected []int
	}{
		{name: "net result", by: SortNetResult, expected: []int{0, 1, 2}},
		{name: "win rate", by: SortWinRate, expected: []int{1, 0, 2}},
		{name: "trades", by: SortTrades, expected: []int{2, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sorted := SortRecords(records, tt.by)

			indexes := make([]int, len(sorted))
			for i, record := range sorted {
				indexes[i] = record.Index
			}

			assert.Equal(t, tt.expected, indexes)
		})
	}

	// The input is left untouched.
	assert.Equal(t, 0, records[0].Index)
}

func TestFilterRecords(t *testing.T) {
	records := sampleRecords()

	assert.Len(t, FilterRecords(records, ""), 3)
	assert.Len(t, FilterRecords(records, "[0,25]"), 2)
	assert.Len(t, FilterRecords(records, " p=20 "), 1)
	assert.Empty(t, FilterRecords(records, "rci"))
}

func TestSortFieldCycles(t *testing.T) {
	assert.Equal(t, SortWinRate, SortNetResult.Next())
	assert.Equal(t, SortTrades, SortWinRate.Next())
	assert.Equal(t, SortNetResult, SortTrades.Next())
	assert.Equal(t, "win rate", SortWinRate.String())
}

func TestNextPeriod(t *testing.T) {
	assert.Equal(t, types.PeriodMonth, NextPeriod(types.PeriodYear))
	assert.Equal(t, types.PeriodYear, NextPeriod(types.PeriodDay))
	assert.Equal(t, types.PeriodYear, NextPeriod(types.Period("unknown")))
}

func TestFormatPips(t *testing.T) {
	assert.Equal(t, "12.50 ▲", FormatPips(12.5))
	assert.Equal(t, "-3.00 ▼", FormatPips(-3))
	assert.Equal(t, "0.00", FormatPips(0))
	assert.Equal(t, "75.0%", FormatPercent(0.75))
}

func TestFindReports(t *testing.T) {
	root := t.TempDir()
	second := writeSampleReport(t, filepath.Join(root, "USDJPY_sma", "b"))
	first := writeSampleReport(t, filepath.Join(root, "USDJPY_sma", "a"))

	reports, err := FindReports(root)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, reports)

	_, err = FindReports(filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestReportLoaded(t *testing.T) {
	path := writeSampleReport(t, t.TempDir())

	m := NewModel(filepath.Dir(path), []string{path})
	msg := loadReport(path)()

	loaded, ok := msg.(ReportLoadedMsg)
	require.True(t, ok)
	assert.True(t, loaded.Breakdown.IsSome())

	updated, _ := m.Update(loaded)
	model := updated.(Model)

	assert.Equal(t, StateRecordTable, model.state)
	assert.Len(t, model.recordTable.Rows(), 3)
	assert.Len(t, model.breakdownTable.Rows(), 1)
}

func TestLoadError(t *testing.T) {
	msg := loadReport(filepath.Join(t.TempDir(), engine.ReportFileName))()

	_, ok := msg.(LoadErrorMsg)
	assert.True(t, ok)
}

func TestRecordTableInteraction(t *testing.T) {
	path := writeSampleReport(t, t.TempDir())

	m := NewModel(filepath.Dir(path), []string{path})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(160, 40))

	// The only report is opened directly
	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Sweep Results")) && bytes.Contains(bts, []byte("Sort: net result"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Sort: win rate"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Best configuration breakdown")) && bytes.Contains(bts, []byte("2024-01"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Period: week"))
	}, teatest.WithDuration(2*time.Second))

	err := tm.Quit()
	assert.NoError(t, err)
}

func TestFilterInput(t *testing.T) {
	path := writeSampleReport(t, t.TempDir())

	m := NewModel(filepath.Dir(path), []string{path})
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(160, 40))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Sweep Results"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	tm.Type("p=20")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("Filter: p=20"))
	}, teatest.WithDuration(2*time.Second))

	err := tm.Quit()
	assert.NoError(t, err)
}
