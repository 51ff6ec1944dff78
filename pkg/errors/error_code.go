package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidParameter     ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidHourRange     ErrorCode = 103
	ErrCodeInvalidRange         ErrorCode = 104
	ErrCodeInvalidSplit         ErrorCode = 105
	ErrCodeInvalidDigits        ErrorCode = 106
	ErrCodeInvalidProfitLoss    ErrorCode = 107
	ErrCodeMissingSymbols       ErrorCode = 108
	ErrCodeMissingTimeframes    ErrorCode = 109
	ErrCodeInvalidColumnMapping ErrorCode = 110
	ErrCodeMissingDirection     ErrorCode = 111
	ErrCodeInvalidVersion       ErrorCode = 112
	ErrCodeVersionMismatch      ErrorCode = 113
	ErrCodeInvalidPip           ErrorCode = 114
	ErrCodeInvalidPositionCount ErrorCode = 115

	// Data quality errors (200-299)
	ErrCodeEmptySeries           ErrorCode = 200
	ErrCodeNonMonotonicTime      ErrorCode = 201
	ErrCodeDuplicateTimestamp    ErrorCode = 202
	ErrCodeMissingColumn         ErrorCode = 203
	ErrCodeDataSourceUnavailable ErrorCode = 204
	ErrCodeQueryFailed           ErrorCode = 205
	ErrCodeSeriesLengthMismatch  ErrorCode = 206
	ErrCodeMissingTimestamp      ErrorCode = 207

	// Row issues (300-399)
	ErrCodeMissingPrice ErrorCode = 300

	// Backtest errors (400-499)
	ErrCodeBacktestNotInitialized ErrorCode = 400
	ErrCodeBacktestNoDataPath     ErrorCode = 401
	ErrCodeBacktestNoDatasource   ErrorCode = 402
	ErrCodeBacktestRunFailed      ErrorCode = 403
	ErrCodeResultWriteFailed      ErrorCode = 404
	ErrCodePublishFailed          ErrorCode = 405
	ErrCodeDuplicateRun           ErrorCode = 406

	// Callback errors (800-899)
	ErrCodeCallbackFailed ErrorCode = 800
)

// Category groups error codes by the range they fall into.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryConfiguration Category = "configuration"
	CategoryDataQuality   Category = "data_quality"
	CategoryRowIssue      Category = "row_issue"
	CategoryBacktest      Category = "backtest"
	CategoryCallback      Category = "callback"
)

// Category returns the category of the error code.
func (c ErrorCode) Category() Category {
	switch {
	case c >= 100 && c < 200:
		return CategoryConfiguration
	case c >= 200 && c < 300:
		return CategoryDataQuality
	case c >= 300 && c < 400:
		return CategoryRowIssue
	case c >= 400 && c < 500:
		return CategoryBacktest
	case c >= 800 && c < 900:
		return CategoryCallback
	default:
		return CategoryGeneral
	}
}
