// Package stats aggregates the ledger of a run into performance figures.
package stats

import (
	"fmt"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/shopspring/decimal"
)

const pipDecimals = 2

// Summarize computes the counts, results and drawdown of a ledger. The caller
// fills in the fields that identify the configuration point.
// A position is a win when its pips are zero or positive and a loss when
// negative, so WinCount + LossCount == TotalCount. EvenCount is the subset of
// wins that closed flat.
func Summarize(ledger types.Ledger) types.PerformanceRecord {
	record := types.PerformanceRecord{
		TotalCount:   len(ledger),
		ReasonCounts: reasonCounts(ledger),
	}

	if len(ledger) == 0 {
		return record
	}

	netResult := decimal.Zero
	netPips := decimal.Zero
	peak := decimal.Zero
	drawdown := decimal.Zero

	maxProfit := ledger[0].Pips
	maxLoss := ledger[0].Pips

	for _, position := range ledger {
		if isWin(position) {
			record.WinCount++
		} else {
			record.LossCount++
		}

		if position.Pips == 0 {
			record.EvenCount++
		}

		maxProfit = max(maxProfit, position.Pips)
		maxLoss = min(maxLoss, position.Pips)

		netResult = netResult.Add(decimal.NewFromFloat(position.Result))
		netPips = netPips.Add(decimal.NewFromFloat(position.Pips))

		peak = decimal.Max(peak, netPips)
		drawdown = decimal.Max(drawdown, peak.Sub(netPips))
	}

	count := decimal.NewFromInt(int64(len(ledger)))

	record.WinRate = float64(record.WinCount) / float64(record.TotalCount)
	record.NetResult = netResult.InexactFloat64()
	record.AverageResult = netResult.Div(count).InexactFloat64()
	record.NetPips = netPips.Round(pipDecimals).InexactFloat64()
	record.AveragePips = netPips.Div(count).Round(pipDecimals).InexactFloat64()
	record.MaxProfitPips = maxProfit
	record.MaxLossPips = maxLoss
	record.MaxDrawdownPips = drawdown.Round(pipDecimals).InexactFloat64()

	return record
}

func isWin(position types.Position) bool {
	return position.Pips >= 0
}

func reasonCounts(ledger types.Ledger) []types.ReasonCount {
	counts := make(map[types.PositionStatus]int)
	for _, position := range ledger {
		counts[position.Status]++
	}

	reasons := make([]types.ReasonCount, 0, len(types.AllClosedStatuses))
	for _, status := range types.AllClosedStatuses {
		reasons = append(reasons, types.ReasonCount{Status: status, Count: counts[status]})
	}

	return reasons
}

// Breakdown groups the ledger by the entry time of each position. Rows are in
// chronological order.
func Breakdown(ledger types.Ledger, period types.Period) []types.PeriodPerformance {
	rows := make(map[string]*types.PeriodPerformance)
	netPips := make(map[string]decimal.Decimal)

	var labels []string

	for _, position := range ledger {
		label := PeriodLabel(position, period)

		row, ok := rows[label]
		if !ok {
			row = &types.PeriodPerformance{Label: label}
			rows[label] = row
			labels = append(labels, label)
		}

		row.TotalCount++

		if isWin(position) {
			row.WinCount++
		} else {
			row.LossCount++
		}

		netPips[label] = netPips[label].Add(decimal.NewFromFloat(position.Pips))
	}

	sort.Strings(labels)

	result := make([]types.PeriodPerformance, 0, len(labels))
	for _, label := range labels {
		row := rows[label]
		row.WinRate = float64(row.WinCount) / float64(row.TotalCount)
		row.NetPips = netPips[label].Round(pipDecimals).InexactFloat64()
		result = append(result, *row)
	}

	return result
}

// PeriodLabel returns the label of the period the position was entered in,
// e.g. "2024", "2024-01", "2024-W01" (ISO week) or "2024-01-01".
func PeriodLabel(position types.Position, period types.Period) string {
	entry := position.EntryTime

	switch period {
	case types.PeriodYear:
		return entry.Format("2006")
	case types.PeriodMonth:
		return entry.Format("2006-01")
	case types.PeriodWeek:
		year, week := entry.ISOWeek()

		return fmt.Sprintf("%04d-W%02d", year, week)
	default:
		return entry.Format("2006-01-02")
	}
}

// Rank returns a copy of records ordered best first: higher net result, then
// higher win rate, then lower index.
func Rank(records []types.PerformanceRecord) []types.PerformanceRecord {
	ranked := make([]types.PerformanceRecord, len(records))
	copy(ranked, records)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.NetResult != b.NetResult {
			return a.NetResult > b.NetResult
		}

		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}

		return a.Index < b.Index
	})

	return ranked
}

// Best returns the top ranked record, or None when there are no records.
func Best(records []types.PerformanceRecord) optional.Option[types.PerformanceRecord] {
	if len(records) == 0 {
		return optional.None[types.PerformanceRecord]()
	}

	return optional.Some(Rank(records)[0])
}
