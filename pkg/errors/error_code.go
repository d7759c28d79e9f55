package errors

// ErrorCode identifies an error category.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 102
	ErrCodeInvalidPair          ErrorCode = 103
	ErrCodeInvalidDirection     ErrorCode = 104

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodePersistFailed         ErrorCode = 203
	ErrCodeNoCandles             ErrorCode = 204

	// Price errors (300-399)
	ErrCodePriceNotReady    ErrorCode = 300
	ErrCodePriceUnavailable ErrorCode = 301
	ErrCodeRateLimited      ErrorCode = 302

	// Signal errors (400-499)
	ErrCodeSignalAlreadyResolved ErrorCode = 400
	ErrCodeSignalConflict        ErrorCode = 401
	ErrCodeAdminSignalConsumed   ErrorCode = 402
	ErrCodeAdminSignalExpired    ErrorCode = 403

	// Automation errors (500-599)
	ErrCodeNoOpportunity        ErrorCode = 500
	ErrCodeAnalysisFailed       ErrorCode = 501
	ErrCodeAutomationRunning    ErrorCode = 502
	ErrCodeAutomationNotRunning ErrorCode = 503
	ErrCodeSystemDisabled       ErrorCode = 504

	// Transport errors (600-699)
	ErrCodeUpstreamStatus    ErrorCode = 600
	ErrCodeUpstreamTransport ErrorCode = 601
)
