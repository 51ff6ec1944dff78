// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Configuration errors (100-199): Invalid or missing configuration values, rejected before any run
//   - Data quality errors (200-299): Problems with the input series that abort the affected run
//   - Row issues (300-399): A single bar that cannot be evaluated, logged and skipped
//   - Backtest errors (400-499): Engine lifecycle and result output errors
//   - Callback errors (800-899): Callback execution failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Report an invalid configuration field
//	err := errors.NewConfigurationError(errors.ErrCodeInvalidHourRange, "trade_start_hour", 25, "must be in [0, 24)")
//
//	// Report a bad input row
//	err := errors.NewDataQualityError(errors.ErrCodeNonMonotonicTime, 42, "time", "timestamps must increase")
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeEmptySeries) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error.
// Returns ErrCodeUnknown if no coded error is found in the chain.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce.Code
	}

	var de *DataQualityError
	if errors.As(err, &de) {
		return de.Code
	}

	var ri *RowIssue
	if errors.As(err, &ri) {
		return ri.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// ConfigurationError is returned when a configuration value is invalid.
// The run is rejected before any simulation starts.
type ConfigurationError struct {
	Code    ErrorCode
	Field   string // Dotted path of the offending field, e.g. profit_loss.increase
	Value   any    // Offending value as supplied
	Message string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(code ErrorCode, field string, value any, message string) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewConfigurationErrorf creates a new ConfigurationError with a formatted message.
func NewConfigurationErrorf(code ErrorCode, field string, value any, format string, args ...any) *ConfigurationError {
	return NewConfigurationError(code, field, value, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("[%d] invalid configuration %s=%v: %s", e.Code, e.Field, e.Value, e.Message)
}

// IsConfigurationError checks if an error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	var configErr *ConfigurationError

	return errors.As(err, &configErr)
}

// DataQualityError is returned when the input series is unusable.
// It aborts the affected run.
type DataQualityError struct {
	Code    ErrorCode
	Row     int    // Offending row index, -1 when the problem is not tied to a row
	Column  string // Offending column, empty when not tied to a column
	Message string
}

// NewDataQualityError creates a new DataQualityError.
func NewDataQualityError(code ErrorCode, row int, column string, message string) *DataQualityError {
	return &DataQualityError{
		Code:    code,
		Row:     row,
		Column:  column,
		Message: message,
	}
}

// NewDataQualityErrorf creates a new DataQualityError with a formatted message.
func NewDataQualityErrorf(code ErrorCode, row int, column string, format string, args ...any) *DataQualityError {
	return NewDataQualityError(code, row, column, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *DataQualityError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("[%d] data quality (column %q): %s", e.Code, e.Column, e.Message)
	}

	return fmt.Sprintf("[%d] data quality at row %d (column %q): %s", e.Code, e.Row, e.Column, e.Message)
}

// IsDataQualityError checks if an error is a DataQualityError.
func IsDataQualityError(err error) bool {
	var dataErr *DataQualityError

	return errors.As(err, &dataErr)
}

// RowIssue describes a single bar that was excluded from evaluation.
// Row issues are logged and never abort a run.
type RowIssue struct {
	Code    ErrorCode
	Row     int
	Field   string
	Message string
}

// NewRowIssue creates a new RowIssue.
func NewRowIssue(code ErrorCode, row int, field string, message string) *RowIssue {
	return &RowIssue{
		Code:    code,
		Row:     row,
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface.
func (e *RowIssue) Error() string {
	return fmt.Sprintf("[%d] row %d skipped (%s): %s", e.Code, e.Row, e.Field, e.Message)
}

// IsRowIssue checks if an error is a RowIssue.
func IsRowIssue(err error) bool {
	var rowIssue *RowIssue

	return errors.As(err, &rowIssue)
}
