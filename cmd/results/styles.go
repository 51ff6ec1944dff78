package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true)

	// SummaryStyle for the report header.
	SummaryStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// FormatPips formats a pip value with an indicator of its sign.
func FormatPips(pips float64) string {
	pipStr := fmt.Sprintf("%.2f", pips)

	if pips > 0 {
		return pipStr + " ▲"
	} else if pips < 0 {
		return pipStr + " ▼"
	}

	return pipStr
}

// FormatPercent formats a ratio in [0, 1] as a percentage.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}
