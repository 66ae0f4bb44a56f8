package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter ErrorCode = 100
	ErrCodeInvalidInterval  ErrorCode = 101
	ErrCodeInvalidStrategy  ErrorCode = 102
	ErrCodeInvalidPeriod    ErrorCode = 103
	ErrCodeInvalidCapital   ErrorCode = 104
	ErrCodeInvalidType      ErrorCode = 105
	ErrCodeMissingParameter ErrorCode = 106
	ErrCodeInsufficientData ErrorCode = 107

	// Resource errors (200-299)
	ErrCodeNotFound        ErrorCode = 200
	ErrCodeNotOwned        ErrorCode = 201
	ErrCodeQueryFailed     ErrorCode = 202
	ErrCodeStoreDisconnect ErrorCode = 203

	// Rate limiting errors (300-399)
	ErrCodeRateLimited   ErrorCode = 300
	ErrCodeQuotaExceeded ErrorCode = 301

	// Scheduler errors (400-499)
	ErrCodeJobNotFound       ErrorCode = 400
	ErrCodeSchedulerStopped  ErrorCode = 401
	ErrCodeInvalidJobSpec    ErrorCode = 402
	ErrCodeSchedulerConflict ErrorCode = 403

	// Execution errors (500-599)
	ErrCodeExecution      ErrorCode = 500
	ErrCodeSignalCheck    ErrorCode = 501
	ErrCodeNotifierFailed ErrorCode = 502

	// Market data errors (700-799)
	ErrCodeDataUnavailable       ErrorCode = 700
	ErrCodeMarketDataFetchFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 703
)
