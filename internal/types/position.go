package types

import "time"

// PositionStatus is the lifecycle state of a position.
// OPEN is the only non-terminal state.
type PositionStatus string

const (
	PositionStatusOpen PositionStatus = "OPEN"
	// PositionStatusClosedTarget is reached when price crosses the profit target.
	PositionStatusClosedTarget PositionStatus = "CLOSED_TARGET"
	// PositionStatusClosedStop is reached when price crosses the initial stop loss.
	PositionStatusClosedStop PositionStatus = "CLOSED_STOP"
	// PositionStatusClosedTrail is reached when price crosses a ratcheted trailing stop.
	PositionStatusClosedTrail PositionStatus = "CLOSED_TRAIL"
	// PositionStatusClosedEndOfData is used for positions still open at the end of the series.
	PositionStatusClosedEndOfData PositionStatus = "CLOSED_END_OF_DATA"
	// PositionStatusClosedSession is used when positions are settled outside the trading window.
	PositionStatusClosedSession PositionStatus = "CLOSED_SESSION"
)

// AllClosedStatuses lists every terminal status in reporting order.
var AllClosedStatuses = []PositionStatus{
	PositionStatusClosedTarget,
	PositionStatusClosedStop,
	PositionStatusClosedTrail,
	PositionStatusClosedEndOfData,
	PositionStatusClosedSession,
}

// IsClosed reports whether the status is terminal.
func (s PositionStatus) IsClosed() bool {
	return s != PositionStatusOpen && s != ""
}

// Position is a simulated trade. It is mutated only by the simulator while
// open and is read-only once it has been appended to a ledger.
type Position struct {
	ID         int       `yaml:"id" json:"id" csv:"id"`
	Direction  Direction `yaml:"direction" json:"direction" csv:"direction"`
	EntryPrice float64   `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	EntryTime  time.Time `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	EntryIndex int       `yaml:"entry_index" json:"entry_index" csv:"entry_index"`
	// Spread is the spread in pips at entry.
	Spread      float64 `yaml:"spread" json:"spread" csv:"spread"`
	TargetPrice float64 `yaml:"target_price" json:"target_price" csv:"target_price"`
	StopPrice   float64 `yaml:"stop_price" json:"stop_price" csv:"stop_price"`
	// TrailPrice starts at StopPrice and only moves in the position's favor.
	TrailPrice float64 `yaml:"trail_price" json:"trail_price" csv:"trail_price"`
	// TrailSteps counts how many times the trailing stop has been ratcheted.
	TrailSteps int            `yaml:"trail_steps" json:"trail_steps" csv:"trail_steps"`
	Status     PositionStatus `yaml:"status" json:"status" csv:"status"`
	ExitPrice  float64        `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	ExitTime   time.Time      `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	ExitIndex  int            `yaml:"exit_index" json:"exit_index" csv:"exit_index"`
	// Pips is the realized result in pips, rounded to two decimals.
	Pips float64 `yaml:"pips" json:"pips" csv:"pips"`
	// Result is the realized result in price units.
	Result float64 `yaml:"result" json:"result" csv:"result"`
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// IsTrailing reports whether the trailing stop has moved away from the initial stop.
func (p *Position) IsTrailing() bool {
	return p.TrailSteps > 0
}

// Ledger is the append-only, exit-ordered record of closed positions of one run.
type Ledger []Position

// TotalPips sums the realized pips of the ledger.
func (l Ledger) TotalPips() float64 {
	total := 0.0
	for _, position := range l {
		total += position.Pips
	}

	return total
}
