package engine

import (
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/logger"
	"github.com/rxtech-lab/argo-range-backtest/internal/types"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pipDecimals is the precision of realized pip results.
const pipDecimals = 2

// SimulationConfig holds the settings of a single simulated run.
type SimulationConfig struct {
	ProfitPips         float64
	LossPips           float64
	Pip                float64
	PositionCount      int
	TrailStop          bool
	TrailStepPips      float64
	SpreadThreshold    optional.Option[float64]
	TradeStartHour     int
	TradeEndHour       int
	ReverseOrder       bool
	EntryPrice         EntryPriceMode
	ExitPrecedence     ExitPrecedence
	SessionSettle      SessionSettleMode
}

// SimulationConfig derives the run settings of a sweep point.
func (c BacktestEngineV1Config) SimulationConfig(point Point) SimulationConfig {
	return SimulationConfig{
		ProfitPips:         point.Profit,
		LossPips:           point.Loss,
		Pip:                c.Pip,
		PositionCount:      c.PositionCount,
		TrailStop:          c.TrailStop,
		TrailStepPips:      c.TrailStepPips(),
		SpreadThreshold:    c.SpreadThreshold,
		TradeStartHour:     c.TradeStartHour,
		TradeEndHour:       c.TradeEndHour,
		ReverseOrder:       c.ReverseOrder,
		EntryPrice:         c.EntryPrice,
		ExitPrecedence:     c.ExitPrecedence,
		SessionSettle:      c.SessionSettle,
	}
}

// InTradingHours reports whether hour falls in [TradeStartHour, TradeEndHour).
// The window wraps past midnight when start > end and covers the whole day when start == end.
func (c SimulationConfig) InTradingHours(hour int) bool {
	start, end := c.TradeStartHour, c.TradeEndHour

	switch {
	case start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}

// SettlesAt reports whether open positions are force-closed on a bar of the given hour.
func (c SimulationConfig) SettlesAt(hour int) bool {
	if c.InTradingHours(hour) {
		return false
	}

	switch c.SessionSettle {
	case SessionSettleOutsideHours:
		return true
	case SessionSettleAfterEnd:
		return hour >= c.TradeEndHour
	default:
		return false
	}
}

// Simulator replays a bar series against a direction series and produces the ledger
// of closed positions. A Simulator is not safe for concurrent use; create one per run.
type Simulator struct {
	config SimulationConfig
	logger *logger.Logger

	pip    decimal.Decimal
	step   decimal.Decimal
	open   []*openPosition
	ledger types.Ledger
	nextID int

	// onTrail, when set, receives a copy of the position every time its trail moves.
	onTrail func(types.Position)
}

// openPosition carries the decimal state of a position while it is open.
type openPosition struct {
	position types.Position
	sign     decimal.Decimal
	entry    decimal.Decimal
	target   decimal.Decimal
	stop     decimal.Decimal
	trail    decimal.Decimal
	// anchor is the price the next trail step is measured from.
	anchor decimal.Decimal
}

// sidePrices are the prices a position is settled against: the bid for buys
// and the ask (bid + spread) for sells.
type sidePrices struct {
	open  decimal.Decimal
	high  decimal.Decimal
	low   decimal.Decimal
	close decimal.Decimal
}

func NewSimulator(config SimulationConfig, logger *logger.Logger) *Simulator {
	return &Simulator{
		config: config,
		logger: logger,
		pip:    decimal.NewFromFloat(config.Pip),
		step:   decimal.NewFromFloat(config.TrailStepPips).Mul(decimal.NewFromFloat(config.Pip)),
	}
}

// Run simulates the whole series. directions[i] is the signal of bars[i].
// Bars are visited strictly in order and every open position is checked for an
// exit before a new position may be opened on the same bar.
func (s *Simulator) Run(bars []types.Bar, directions []types.Direction) (types.Ledger, error) {
	if len(bars) == 0 {
		return nil, errors.NewDataQualityError(errors.ErrCodeEmptySeries, -1, "", "bar series is empty")
	}

	if len(bars) != len(directions) {
		return nil, errors.NewDataQualityErrorf(errors.ErrCodeSeriesLengthMismatch, -1, "",
			"%d bars but %d directions", len(bars), len(directions))
	}

	s.open = nil
	s.ledger = types.Ledger{}
	s.nextID = 0

	var lastValid optional.Option[types.Bar]

	for i, bar := range bars {
		if missing := bar.MissingPrice(); missing.IsSome() {
			issue := errors.NewRowIssue(errors.ErrCodeMissingPrice, bar.Index, missing.Unwrap(), "price is missing")
			s.logger.Warn("Skipping bar", zap.Int("row", bar.Index), zap.Error(issue))

			continue
		}

		lastValid = optional.Some(bar)

		s.checkExits(bar)

		hour := bar.Time.Hour()
		if s.config.SettlesAt(hour) {
			s.settleAll(bar, bar.Open.Unwrap(), types.PositionStatusClosedSession)
		}

		s.maybeEnter(bar, directions[i], s.config.InTradingHours(hour))
	}

	if lastValid.IsSome() {
		last := lastValid.Unwrap()
		s.settleAll(last, last.Close.Unwrap(), types.PositionStatusClosedEndOfData)
	}

	return s.ledger, nil
}

func (s *Simulator) checkExits(bar types.Bar) {
	remaining := s.open[:0]

	for _, pos := range s.open {
		prices := s.sidePrices(bar, pos.position.Direction)

		var closed bool
		if s.config.ExitPrecedence == ExitTargetFirst {
			closed = s.exitTargetFirst(pos, bar, prices)
		} else {
			closed = s.exitTrailFirst(pos, bar, prices)
		}

		if !closed {
			remaining = append(remaining, pos)
		}
	}

	s.open = remaining
}

// exitTrailFirst checks the protective level, ratchets the trail, and only then
// looks at the target. Once the trail has moved the target no longer applies.
func (s *Simulator) exitTrailFirst(pos *openPosition, bar types.Bar, prices sidePrices) bool {
	if s.closeOnProtective(pos, bar, prices) {
		return true
	}

	if s.ratchet(pos, prices) && beyond(pos.sign.Neg(), prices.close, pos.trail) {
		s.close(pos, bar, pos.trail, types.PositionStatusClosedTrail)

		return true
	}

	if pos.position.IsTrailing() {
		return false
	}

	return s.closeOnTarget(pos, bar, prices)
}

func (s *Simulator) exitTargetFirst(pos *openPosition, bar types.Bar, prices sidePrices) bool {
	if s.closeOnTarget(pos, bar, prices) {
		return true
	}

	if s.closeOnProtective(pos, bar, prices) {
		return true
	}

	if s.ratchet(pos, prices) && beyond(pos.sign.Neg(), prices.close, pos.trail) {
		s.close(pos, bar, pos.trail, types.PositionStatusClosedTrail)

		return true
	}

	return false
}

func (s *Simulator) closeOnTarget(pos *openPosition, bar types.Bar, prices sidePrices) bool {
	favorable := extreme(pos.sign, prices)
	if !beyond(pos.sign, favorable, pos.target) {
		return false
	}

	fill := pos.target
	if beyond(pos.sign, prices.open, pos.target) {
		fill = prices.open
	}

	s.close(pos, bar, fill, types.PositionStatusClosedTarget)

	return true
}

// closeOnProtective closes on the trailing stop once it has moved, otherwise on the initial stop.
func (s *Simulator) closeOnProtective(pos *openPosition, bar types.Bar, prices sidePrices) bool {
	level, status := pos.stop, types.PositionStatusClosedStop
	if pos.position.IsTrailing() {
		level, status = pos.trail, types.PositionStatusClosedTrail
	}

	adverse := extreme(pos.sign.Neg(), prices)
	if !beyond(pos.sign.Neg(), adverse, level) {
		return false
	}

	fill := level
	if beyond(pos.sign.Neg(), prices.open, level) {
		fill = prices.open
	}

	s.close(pos, bar, fill, status)

	return true
}

// ratchet moves the trail and its anchor one step at a time while the
// favorable extreme is at least a step beyond the anchor. It reports whether
// the trail moved on this bar.
func (s *Simulator) ratchet(pos *openPosition, prices sidePrices) bool {
	if !s.config.TrailStop || !s.step.IsPositive() {
		return false
	}

	favorable := extreme(pos.sign, prices)
	offset := s.step.Mul(pos.sign)
	moved := false

	for beyond(pos.sign, favorable, pos.anchor.Add(offset)) {
		pos.anchor = pos.anchor.Add(offset)
		pos.trail = pos.trail.Add(offset)
		pos.position.TrailSteps++
		moved = true
	}

	if moved {
		pos.position.TrailPrice = pos.trail.InexactFloat64()

		if s.onTrail != nil {
			s.onTrail(pos.position)
		}
	}

	return moved
}

func (s *Simulator) maybeEnter(bar types.Bar, direction types.Direction, inHours bool) {
	if !direction.IsTrade() || !inHours {
		return
	}

	if s.config.SpreadThreshold.IsSome() && bar.SpreadOrZero() > s.config.SpreadThreshold.Unwrap() {
		return
	}

	if len(s.open) >= s.config.PositionCount {
		return
	}

	if s.config.ReverseOrder {
		direction = direction.Reverse()
	}

	raw := bar.Close.Unwrap()
	if s.config.EntryPrice == EntryPriceOpen {
		raw = bar.Open.Unwrap()
	}

	sign := decimal.NewFromInt(int64(direction.Sign()))
	entry := decimal.NewFromFloat(raw)

	if direction == types.DirectionBuy {
		entry = entry.Add(s.spread(bar))
	}

	target := entry.Add(decimal.NewFromFloat(s.config.ProfitPips).Mul(s.pip).Mul(sign))
	stop := entry.Sub(decimal.NewFromFloat(s.config.LossPips).Mul(s.pip).Mul(sign))

	s.nextID++

	s.open = append(s.open, &openPosition{
		position: types.Position{
			ID:          s.nextID,
			Direction:   direction,
			EntryPrice:  entry.InexactFloat64(),
			EntryTime:   bar.Time,
			EntryIndex:  bar.Index,
			Spread:      bar.SpreadOrZero(),
			TargetPrice: target.InexactFloat64(),
			StopPrice:   stop.InexactFloat64(),
			TrailPrice:  stop.InexactFloat64(),
			Status:      types.PositionStatusOpen,
		},
		sign:   sign,
		entry:  entry,
		target: target,
		stop:   stop,
		trail:  stop,
		anchor: entry,
	})
}

// settleAll closes every open position at the bar's side price derived from raw.
func (s *Simulator) settleAll(bar types.Bar, raw float64, status types.PositionStatus) {
	for _, pos := range s.open {
		price := decimal.NewFromFloat(raw)
		if pos.position.Direction == types.DirectionSell {
			price = price.Add(s.spread(bar))
		}

		s.close(pos, bar, price, status)
	}

	s.open = nil
}

func (s *Simulator) close(pos *openPosition, bar types.Bar, price decimal.Decimal, status types.PositionStatus) {
	result := price.Sub(pos.entry).Mul(pos.sign)

	pos.position.Status = status
	pos.position.ExitPrice = price.InexactFloat64()
	pos.position.ExitTime = bar.Time
	pos.position.ExitIndex = bar.Index
	pos.position.Result = result.InexactFloat64()
	pos.position.Pips = result.Div(s.pip).Round(pipDecimals).InexactFloat64()

	s.ledger = append(s.ledger, pos.position)
}

func (s *Simulator) spread(bar types.Bar) decimal.Decimal {
	return decimal.NewFromFloat(bar.SpreadOrZero()).Mul(s.pip)
}

func (s *Simulator) sidePrices(bar types.Bar, direction types.Direction) sidePrices {
	prices := bar.Prices()

	side := sidePrices{
		open:  decimal.NewFromFloat(prices.Open),
		high:  decimal.NewFromFloat(prices.High),
		low:   decimal.NewFromFloat(prices.Low),
		close: decimal.NewFromFloat(prices.Close),
	}

	if direction == types.DirectionSell {
		spread := s.spread(bar)
		side.open = side.open.Add(spread)
		side.high = side.high.Add(spread)
		side.low = side.low.Add(spread)
		side.close = side.close.Add(spread)
	}

	return side
}

// extreme returns the high for a positive sign and the low for a negative one.
func extreme(sign decimal.Decimal, prices sidePrices) decimal.Decimal {
	if sign.IsPositive() {
		return prices.high
	}

	return prices.low
}

// beyond reports whether price is at or past level in the direction of sign.
func beyond(sign decimal.Decimal, price, level decimal.Decimal) bool {
	return price.Sub(level).Mul(sign).Sign() >= 0
}
