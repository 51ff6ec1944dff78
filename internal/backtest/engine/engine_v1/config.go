package engine

import (
	"encoding/json"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-range-backtest/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-range-backtest/internal/classifier"
	"github.com/rxtech-lab/argo-range-backtest/internal/version"
	"github.com/rxtech-lab/argo-range-backtest/pkg/errors"
	"github.com/shopspring/decimal"
)

// EntryPriceMode selects which price of the signal bar a position is opened at.
type EntryPriceMode string

const (
	EntryPriceClose EntryPriceMode = "close"
	EntryPriceOpen  EntryPriceMode = "open"
)

// ExitPrecedence decides which exit wins when a bar could both ratchet the
// trailing stop and touch the fixed target.
type ExitPrecedence string

const (
	// ExitTrailFirst ratchets the trailing stop before the target is checked.
	// Once the trail has moved the fixed target no longer applies.
	ExitTrailFirst ExitPrecedence = "trail_first"
	// ExitTargetFirst checks the fixed target and stop before ratcheting.
	ExitTargetFirst ExitPrecedence = "target_first"
)

// SessionSettleMode decides when open positions are force-closed because the
// trading window is over.
type SessionSettleMode string

const (
	// SessionSettleOff never force-closes positions at the session boundary.
	SessionSettleOff SessionSettleMode = "off"
	// SessionSettleOutsideHours closes positions on any bar outside the trading window.
	SessionSettleOutsideHours SessionSettleMode = "outside_hours"
	// SessionSettleAfterEnd closes positions only on bars at or past the end hour,
	// so bars before the start hour leave them open.
	SessionSettleAfterEnd SessionSettleMode = "after_end"
)

// ProfitLossConfig describes the profit and loss levels (in pips) swept by the engine.
type ProfitLossConfig struct {
	Min       float64 `yaml:"min" json:"min" validate:"gt=0" jsonschema:"title=Minimum,description=Smallest profit/loss level in pips,exclusiveMinimum=0"`
	Max       float64 `yaml:"max" json:"max" validate:"gt=0,gtefield=Min" jsonschema:"title=Maximum,description=Largest profit/loss level in pips,exclusiveMinimum=0"`
	Increase  float64 `yaml:"increase" json:"increase" validate:"gt=0" jsonschema:"title=Increase,description=Step between levels in pips,exclusiveMinimum=0"`
	Symmetric bool    `yaml:"symmetric" json:"symmetric,omitempty" jsonschema:"title=Symmetric,description=Pair every profit level with the same loss level instead of the full grid"`
}

// Levels returns Min, Min+Increase, ... up to and including Max.
func (p ProfitLossConfig) Levels() []float64 {
	lower := decimal.NewFromFloat(p.Min)
	upper := decimal.NewFromFloat(p.Max)
	step := decimal.NewFromFloat(p.Increase)

	if !step.IsPositive() {
		return []float64{p.Min}
	}

	var levels []float64
	for level := lower; level.LessThanOrEqual(upper); level = level.Add(step) {
		levels = append(levels, level.InexactFloat64())
	}

	return levels
}

// DirectionConfig holds the fixed ask and bid intervals of a column.
type DirectionConfig struct {
	Ask []float64 `yaml:"ask" json:"ask" validate:"len=2" jsonschema:"title=Ask,description=Interval that signals a buy,minItems=2,maxItems=2"`
	Bid []float64 `yaml:"bid" json:"bid" validate:"len=2" jsonschema:"title=Bid,description=Interval that signals a sell,minItems=2,maxItems=2"`
}

// Spec converts the configuration into a classifier spec.
func (d DirectionConfig) Spec() (classifier.DirectionSpec, error) {
	return classifier.NewDirectionSpec(d.Ask, d.Bid)
}

// RangeConfig sweeps a column over Split equal buckets of [Min, Max].
type RangeConfig struct {
	Min    float64 `yaml:"min" json:"min" jsonschema:"title=Minimum"`
	Max    float64 `yaml:"max" json:"max" jsonschema:"title=Maximum"`
	Split  int     `yaml:"split" json:"split" jsonschema:"title=Split,description=Number of buckets,minimum=2"`
	Digits *int    `yaml:"digits,omitempty" json:"digits,omitempty" jsonschema:"title=Digits,description=Decimals bucket boundaries are rounded to,minimum=0"`
}

// Rule converts the configuration into a classifier range rule.
func (r RangeConfig) Rule() classifier.RangeRule {
	digits := optional.None[int]()
	if r.Digits != nil {
		digits = optional.Some(*r.Digits)
	}

	return classifier.RangeRule{
		Min:    r.Min,
		Max:    r.Max,
		Split:  r.Split,
		Digits: digits,
	}
}

// ColumnRange configures one indicator column. When Range is set the column is
// swept and Direction is ignored.
type ColumnRange struct {
	Direction *DirectionConfig `yaml:"direction,omitempty" json:"direction,omitempty" validate:"omitempty" jsonschema:"title=Direction,description=Fixed ask/bid intervals"`
	Range     *RangeConfig     `yaml:"range,omitempty" json:"range,omitempty" validate:"omitempty" jsonschema:"title=Range,description=Swept range"`
}

// IsSwept reports whether the column is partitioned by a range rule.
func (c ColumnRange) IsSwept() bool {
	return c.Range != nil
}

// DirectionParameter is one block of direction rules. Blocks are independent
// alternatives and each contributes its own points to the sweep.
type DirectionParameter struct {
	Name          string                 `yaml:"name" json:"name" validate:"required" jsonschema:"title=Name"`
	SelectColumns map[string][]string    `yaml:"select_columns,omitempty" json:"select_columns,omitempty" jsonschema:"title=Selected columns,description=Indicator columns per timeframe"`
	Ranges        map[string]ColumnRange `yaml:"ranges" json:"ranges" validate:"required,min=1,dive" jsonschema:"title=Ranges,description=Direction or range rule per column"`
}

// ActiveColumns returns the union of the selected columns of every timeframe in
// timeframe order, or every ranges key in sorted order when nothing is selected.
func (d DirectionParameter) ActiveColumns(timeframes []string) []string {
	seen := make(map[string]bool)

	var columns []string

	for _, timeframe := range timeframes {
		for _, column := range d.SelectColumns[timeframe] {
			if !seen[column] {
				seen[column] = true
				columns = append(columns, column)
			}
		}
	}

	if len(columns) > 0 {
		return columns
	}

	for column := range d.Ranges {
		columns = append(columns, column)
	}

	sort.Strings(columns)

	return columns
}

type BacktestEngineV1Config struct {
	Version             string                   `yaml:"version" json:"version,omitempty" jsonschema:"title=Version,description=Engine version the configuration was written for"`
	Symbols             []string                 `yaml:"symbols" json:"symbols" validate:"required,min=1" jsonschema:"title=Symbols,description=Instruments the data belongs to,minItems=1"`
	Timeframes          []string                 `yaml:"timeframes" json:"timeframes" validate:"required,min=1" jsonschema:"title=Timeframes,description=Timeframes whose selected columns are used,minItems=1"`
	TechnicalIndicator  string                   `yaml:"technical_indicator" json:"technical_indicator,omitempty" jsonschema:"title=Technical indicator,description=Label of the indicator family"`
	TradeStartHour      int                      `yaml:"trade_start_hour" json:"trade_start_hour" validate:"gte=0,lt=24" jsonschema:"title=Trade start hour,minimum=0,maximum=23"`
	TradeEndHour        int                      `yaml:"trade_end_hour" json:"trade_end_hour" validate:"gte=0,lte=24" jsonschema:"title=Trade end hour,description=Exclusive end hour. Equal to the start hour means all day,minimum=0,maximum=24"`
	PositionCount       int                      `yaml:"position_count" json:"position_count" validate:"gte=1" jsonschema:"title=Position count,description=Maximum number of open positions,minimum=1"`
	ProfitLoss          ProfitLossConfig         `yaml:"profit_loss" json:"profit_loss" jsonschema:"title=Profit/loss"`
	TrailStop           bool                     `yaml:"trail_stop" json:"trail_stop" jsonschema:"title=Trailing stop"`
	TrailStep           optional.Option[float64] `yaml:"-" json:"trail_step,omitempty" jsonschema:"title=Trail step,description=Trail step in pips. Defaults to profit_loss.increase"`
	SpreadThreshold     optional.Option[float64] `yaml:"-" json:"spread_threshold,omitempty" jsonschema:"title=Spread threshold,description=Largest spread in pips at which an entry is allowed"`
	Pip                 float64                  `yaml:"pip" json:"pip" validate:"gt=0" jsonschema:"title=Pip,description=Price value of one pip,exclusiveMinimum=0"`
	ReverseOrder        bool                     `yaml:"reverse_order" json:"reverse_order,omitempty" jsonschema:"title=Reverse order,description=Invert buy and sell at entry"`
	EntryPrice          EntryPriceMode           `yaml:"entry_price" json:"entry_price,omitempty" validate:"omitempty,oneof=close open" jsonschema:"title=Entry price,enum=close,enum=open,default=close"`
	ExitPrecedence      ExitPrecedence           `yaml:"exit_precedence" json:"exit_precedence,omitempty" validate:"omitempty,oneof=trail_first target_first" jsonschema:"title=Exit precedence,enum=trail_first,enum=target_first,default=trail_first"`
	SessionSettle       SessionSettleMode        `yaml:"session_settle" json:"session_settle,omitempty" validate:"omitempty,oneof=off outside_hours after_end" jsonschema:"title=Session settle,description=When open positions are closed because the trading window is over,enum=off,enum=outside_hours,enum=after_end,default=off"`
	Workers             int                      `yaml:"workers" json:"workers,omitempty" validate:"gte=0" jsonschema:"title=Workers,description=Points simulated in parallel. 0 uses every CPU,minimum=0"`
	Columns             datasource.ColumnMapping `yaml:"columns" json:"columns,omitempty" jsonschema:"title=Columns,description=Names of the price columns in the data file"`
	DirectionParameters []DirectionParameter     `yaml:"direction_parameters" json:"direction_parameters" validate:"required,min=1,dive" jsonschema:"title=Direction parameters,minItems=1"`
}

// UnmarshalYAML implements custom unmarshaling for BacktestEngineV1Config
func (c *BacktestEngineV1Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Raw BacktestEngineV1Config

	type Config struct {
		Raw             `yaml:",inline"`
		TrailStep       *float64 `yaml:"trail_step"`
		SpreadThreshold *float64 `yaml:"spread_threshold"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	*c = BacktestEngineV1Config(config.Raw)

	c.TrailStep = optional.None[float64]()
	if config.TrailStep != nil {
		c.TrailStep = optional.Some(*config.TrailStep)
	}

	c.SpreadThreshold = optional.None[float64]()
	if config.SpreadThreshold != nil {
		c.SpreadThreshold = optional.Some(*config.SpreadThreshold)
	}

	return nil
}

// ApplyDefaults fills the optional settings the configuration left empty.
func (c *BacktestEngineV1Config) ApplyDefaults() {
	if c.EntryPrice == "" {
		c.EntryPrice = EntryPriceClose
	}

	if c.ExitPrecedence == "" {
		c.ExitPrecedence = ExitTrailFirst
	}

	if c.SessionSettle == "" {
		c.SessionSettle = SessionSettleOff
	}

	if c.PositionCount == 0 {
		c.PositionCount = 1
	}

	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}

	c.Columns = c.Columns.WithDefaults()
}

// TrailStepPips returns the trail step, falling back to the profit/loss increase.
func (c BacktestEngineV1Config) TrailStepPips() float64 {
	if c.TrailStep.IsSome() {
		return c.TrailStep.Unwrap()
	}

	return c.ProfitLoss.Increase
}

// Indicators returns every active column of every block, without duplicates.
func (c BacktestEngineV1Config) Indicators() []string {
	seen := make(map[string]bool)

	var indicators []string

	for _, block := range c.DirectionParameters {
		for _, column := range block.ActiveColumns(c.Timeframes) {
			if !seen[column] {
				seen[column] = true
				indicators = append(indicators, column)
			}
		}
	}

	return indicators
}

// Validate checks the configuration. The first problem found is returned as a
// *errors.ConfigurationError.
func (c BacktestEngineV1Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		}

		return name
	})

	if err := validate.Struct(c); err != nil {
		return toConfigurationError(err)
	}

	if c.Version != "" {
		if err := version.CheckVersionCompatibility(version.GetVersion(), c.Version); err != nil {
			return errors.NewConfigurationError(errors.GetCode(err), "version", c.Version, err.Error())
		}
	}

	if c.TrailStep.IsSome() && c.TrailStep.Unwrap() <= 0 {
		return errors.NewConfigurationError(errors.ErrCodeInvalidProfitLoss, "trail_step", c.TrailStep.Unwrap(), "must be greater than 0")
	}

	if c.SpreadThreshold.IsSome() && c.SpreadThreshold.Unwrap() < 0 {
		return errors.NewConfigurationError(errors.ErrCodeInvalidParameter, "spread_threshold", c.SpreadThreshold.Unwrap(), "must not be negative")
	}

	names := make(map[string]bool, len(c.DirectionParameters))

	for i, block := range c.DirectionParameters {
		if names[block.Name] {
			return errors.NewConfigurationError(errors.ErrCodeInvalidParameter, "direction_parameters", block.Name, "block names must be unique")
		}

		names[block.Name] = true

		if err := c.validateBlock(i, block); err != nil {
			return err
		}
	}

	return nil
}

func (c BacktestEngineV1Config) validateBlock(index int, block DirectionParameter) error {
	prefix := "direction_parameters[" + block.Name + "]"

	columns := block.ActiveColumns(c.Timeframes)
	if len(columns) == 0 {
		return errors.NewConfigurationError(errors.ErrCodeMissingDirection, prefix, index, "no active columns")
	}

	for _, column := range columns {
		field := prefix + ".ranges." + column

		columnRange, ok := block.Ranges[column]
		if !ok {
			return errors.NewConfigurationError(errors.ErrCodeMissingDirection, field, nil, "selected column has no ranges entry")
		}

		if columnRange.Range != nil {
			rule := columnRange.Range.Rule()
			if err := rule.Validate(); err != nil {
				code := errors.ErrCodeInvalidRange

				switch {
				case rule.Split < classifier.MinSplit:
					code = errors.ErrCodeInvalidSplit
				case rule.Digits.IsSome() && rule.Digits.Unwrap() < 0:
					code = errors.ErrCodeInvalidDigits
				}

				return errors.NewConfigurationError(code, field+".range", *columnRange.Range, err.Error())
			}

			continue
		}

		if columnRange.Direction == nil {
			return errors.NewConfigurationError(errors.ErrCodeMissingDirection, field, nil, "either direction or range is required")
		}

		if _, err := columnRange.Direction.Spec(); err != nil {
			return errors.NewConfigurationError(errors.ErrCodeInvalidRange, field+".direction", *columnRange.Direction, err.Error())
		}
	}

	return nil
}

func toConfigurationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid configuration", err)
	}

	fieldErr := validationErrors[0]

	// Drop the root struct name from the namespace.
	field := fieldErr.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	return errors.NewConfigurationErrorf(codeForField(field), field, fieldErr.Value(),
		"failed on %q validation", fieldErr.Tag())
}

func codeForField(field string) errors.ErrorCode {
	switch {
	case field == "symbols":
		return errors.ErrCodeMissingSymbols
	case field == "timeframes":
		return errors.ErrCodeMissingTimeframes
	case field == "trade_start_hour" || field == "trade_end_hour":
		return errors.ErrCodeInvalidHourRange
	case field == "position_count":
		return errors.ErrCodeInvalidPositionCount
	case field == "pip":
		return errors.ErrCodeInvalidPip
	case strings.HasPrefix(field, "profit_loss"):
		return errors.ErrCodeInvalidProfitLoss
	case field == "direction_parameters":
		return errors.ErrCodeMissingDirection
	case strings.HasPrefix(field, "direction_parameters"):
		return errors.ErrCodeInvalidRange
	default:
		return errors.ErrCodeInvalidParameter
	}
}

// GenerateSchema generates a JSON schema for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[float64]" {
				return &jsonschema.Schema{
					Type: "number",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "backtest-engine-v1-config"
	schema.Description = "Configuration schema for the range-rule backtest engine"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestEngineV1Config
func (c *BacktestEngineV1Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// EmptyConfig returns a BacktestEngineV1Config with default values
func EmptyConfig() BacktestEngineV1Config {
	return BacktestEngineV1Config{
		PositionCount:   1,
		Pip:             0.01,
		EntryPrice:      EntryPriceClose,
		ExitPrecedence:  ExitTrailFirst,
		SessionSettle:   SessionSettleOff,
		TrailStep:       optional.None[float64](),
		SpreadThreshold: optional.None[float64](),
		Columns:         datasource.DefaultColumnMapping(),
	}
}
