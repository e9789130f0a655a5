package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidSignal        ErrorCode = 102
	ErrCodeInvalidBar           ErrorCode = 103
	ErrCodeInvalidTradeRecord   ErrorCode = 104

	// Data errors (200-299)
	ErrCodePriceNotFound    ErrorCode = 200
	ErrCodeNoBenchmark      ErrorCode = 201
	ErrCodeStoreQueryFailed ErrorCode = 202
	ErrCodeDataParseFailed  ErrorCode = 203

	// Ledger errors (300-399)
	ErrCodeInsufficientCash  ErrorCode = 300
	ErrCodePositionNotFound  ErrorCode = 301
	ErrCodeNegativeQuantity  ErrorCode = 302
	ErrCodeCostBasisViolated ErrorCode = 303

	// Execution errors (400-499)
	ErrCodeTradeRejected    ErrorCode = 400
	ErrCodeZeroQuantity     ErrorCode = 401
	ErrCodeRunFailed        ErrorCode = 402
	ErrCodeStoreNotAttached ErrorCode = 403

	// Metrics errors (500-599)
	ErrCodeReportFailed ErrorCode = 500
)
