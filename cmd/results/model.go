package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/moznion/go-optional"
	engine "github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
)

// Application states.
const (
	StateReportSelect = iota
	StateRecordTable
	StateBreakdown
)

// Model is the main Bubble Tea model for the results viewer.
type Model struct {
	state          int
	reportPaths    []string
	reportList     list.Model
	recordTable    table.Model
	breakdownTable table.Model
	filterInput    textinput.Model
	filtering      bool
	report         types.Report
	reportPath     string
	breakdown      optional.Option[types.Breakdown]
	period         types.Period
	sortBy         SortField
	err            error
	width          int
	height         int
}

// NewModel creates a new Model listing the reports found below root.
func NewModel(root string, reportPaths []string) Model {
	return Model{
		state:          StateReportSelect,
		reportPaths:    reportPaths,
		reportList:     NewReportList(root, reportPaths),
		recordTable:    NewRecordTable(),
		breakdownTable: NewBreakdownTable(),
		filterInput:    NewFilterInput(),
		breakdown:      optional.None[types.Breakdown](),
		period:         types.PeriodMonth,
		sortBy:         SortNetResult,
	}
}

// Init implements tea.Model. A single report is opened directly.
func (m Model) Init() tea.Cmd {
	if len(m.reportPaths) == 1 {
		return loadReport(m.reportPaths[0])
	}

	return nil
}

// loadReport returns a command that reads a report and the breakdown next to it.
func loadReport(path string) tea.Cmd {
	return func() tea.Msg {
		report, err := types.ReadReport(path)
		if err != nil {
			return LoadErrorMsg{Err: err}
		}

		msg := ReportLoadedMsg{Path: path, Report: report, Breakdown: optional.None[types.Breakdown]()}

		breakdownPath := filepath.Join(filepath.Dir(path), engine.BreakdownFileName)
		if _, err := os.Stat(breakdownPath); err == nil {
			breakdown, err := types.ReadBreakdown(breakdownPath)
			if err != nil {
				return LoadErrorMsg{Err: err}
			}

			msg.Breakdown = optional.Some(breakdown)
		}

		return msg
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// Only quit on 'q' if not typing a filter
			if !m.filtering {
				return m, tea.Quit
			}
		case "esc":
			return m.handleEsc()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.reportList.SetSize(msg.Width, msg.Height-4)
		m.recordTable.SetWidth(msg.Width)
		m.recordTable.SetHeight(msg.Height - 10)
		m.breakdownTable.SetWidth(msg.Width)
		m.breakdownTable.SetHeight(msg.Height - 8)

		return m, nil

	case ReportLoadedMsg:
		m.report = msg.Report
		m.reportPath = msg.Path
		m.breakdown = msg.Breakdown
		m.err = nil
		m.recordTable = UpdateRecordRows(m.recordTable, m.report.Records, m.sortBy, m.filterInput.Value())

		if m.breakdown.IsSome() {
			m.breakdownTable = UpdateBreakdownRows(m.breakdownTable, m.breakdown.Unwrap(), m.period)
		}

		m.state = StateRecordTable

		return m, nil

	case LoadErrorMsg:
		m.err = msg.Err

		return m, nil
	}

	// Delegate to state-specific update
	switch m.state {
	case StateReportSelect:
		return m.updateReportSelect(msg)
	case StateRecordTable:
		return m.updateRecordTable(msg)
	case StateBreakdown:
		return m.updateBreakdown(msg)
	}

	return m, nil
}

func (m Model) handleEsc() (tea.Model, tea.Cmd) {
	switch m.state {
	case StateRecordTable:
		if m.filtering {
			m.filtering = false
			m.filterInput.Blur()

			return m, nil
		}

		if len(m.reportPaths) > 1 {
			m.state = StateReportSelect
			m.err = nil
		}
	case StateBreakdown:
		m.state = StateRecordTable
	}

	return m, nil
}

func (m Model) updateReportSelect(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if item, ok := m.reportList.SelectedItem().(listItem); ok {
				return m, loadReport(item.description)
			}
		}
	}

	var cmd tea.Cmd
	m.reportList, cmd = m.reportList.Update(msg)

	return m, cmd
}

func (m Model) updateRecordTable(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.updateFilter(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "s":
			m.sortBy = m.sortBy.Next()
			m.recordTable = UpdateRecordRows(m.recordTable, m.report.Records, m.sortBy, m.filterInput.Value())

			return m, nil
		case "/":
			m.filtering = true
			m.filterInput.Focus()

			return m, textinput.Blink
		case "b":
			if m.breakdown.IsSome() {
				m.state = StateBreakdown
			}

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.recordTable, cmd = m.recordTable.Update(msg)

	return m, cmd
}

func (m Model) updateFilter(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		m.filtering = false
		m.filterInput.Blur()
		m.recordTable = UpdateRecordRows(m.recordTable, m.report.Records, m.sortBy, m.filterInput.Value())

		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)

	return m, cmd
}

func (m Model) updateBreakdown(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "p":
			m.period = NextPeriod(m.period)
			m.breakdownTable = UpdateBreakdownRows(m.breakdownTable, m.breakdown.Unwrap(), m.period)

			return m, nil
		}
	}

	var cmd tea.Cmd
	m.breakdownTable, cmd = m.breakdownTable.Update(msg)

	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var s strings.Builder

	switch m.state {
	case StateReportSelect:
		s.WriteString(TitleStyle.Render("Range Backtest - Results"))
		s.WriteString("\n\n")

		if len(m.reportPaths) == 0 {
			s.WriteString("No reports found.\n")
		} else {
			s.WriteString(m.reportList.View())
		}

		s.WriteString("\n")
		m.writeError(&s)
		s.WriteString(HelpStyle.Render("Press Enter to open, q to quit"))

	case StateRecordTable:
		s.WriteString(TitleStyle.Render(fmt.Sprintf("Sweep Results - %s", strings.Join(m.report.Symbols, ", "))))
		s.WriteString("\n")
		s.WriteString(SummaryStyle.Render(m.summary()))
		s.WriteString("\n")

		if m.filtering {
			s.WriteString(m.filterInput.View())
			s.WriteString("\n")
		} else if filter := m.filterInput.Value(); filter != "" {
			s.WriteString(HelpStyle.Render(fmt.Sprintf("Filter: %s", filter)))
			s.WriteString("\n")
		}

		m.writeError(&s)
		s.WriteString(m.recordTable.View())
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render(fmt.Sprintf("Sort: %s | s: sort | /: filter | b: best breakdown | Esc: back | q: quit", m.sortBy)))

	case StateBreakdown:
		breakdown := m.breakdown.Unwrap()

		s.WriteString(TitleStyle.Render("Best configuration breakdown"))
		s.WriteString("\n\n")
		s.WriteString(breakdown.Key)
		s.WriteString("\n\n")
		s.WriteString(m.breakdownTable.View())
		s.WriteString("\n")
		s.WriteString(HelpStyle.Render(fmt.Sprintf("Period: %s | p: next period | Esc: back | q: quit", m.period)))
	}

	return s.String()
}

func (m Model) summary() string {
	lines := []string{
		fmt.Sprintf("Data: %s", m.report.DataPath),
		fmt.Sprintf("Bars: %d (skipped %d) | Points: %d", m.report.BarCount, m.report.SkippedRows, len(m.report.Records)),
	}

	if m.report.Best != nil {
		lines = append(lines, fmt.Sprintf("Best: %s %s", m.report.Best.Key, FormatPips(m.report.Best.NetPips)))
	}

	return strings.Join(lines, "\n")
}

func (m Model) writeError(s *strings.Builder) {
	if m.err == nil {
		return
	}

	s.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	s.WriteString("\n\n")
}
