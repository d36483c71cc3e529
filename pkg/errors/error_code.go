package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeMissingParameter     ErrorCode = 109
	ErrCodeInvalidYearRange     ErrorCode = 120
	ErrCodeEmptySymbolList      ErrorCode = 121
	ErrCodeSymbolSourceFailed   ErrorCode = 122

	// Data errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeNoDataFound           ErrorCode = 204

	// Market data errors (700-799)
	ErrCodeMarketDataFetchFailed ErrorCode = 700
	ErrCodeMarketDataWriteFailed ErrorCode = 701
	ErrCodeMarketDataParseFailed ErrorCode = 702
	ErrCodeInvalidProvider       ErrorCode = 704
	ErrCodeRateLimited           ErrorCode = 705
	ErrCodeStorageFailed         ErrorCode = 710
	ErrCodeFileExists            ErrorCode = 711
)

// Kind groups error codes by how a run reacts to them.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindFetch         Kind = "fetch"
	KindStorage       Kind = "storage"
	KindConfiguration Kind = "configuration"
)

// Kind returns the kind the code belongs to.
func (c ErrorCode) Kind() Kind {
	switch c {
	case ErrCodeInvalidParameter, ErrCodeInvalidConfiguration, ErrCodeMissingParameter,
		ErrCodeInvalidYearRange, ErrCodeEmptySymbolList, ErrCodeSymbolSourceFailed,
		ErrCodeInvalidProvider:
		return KindConfiguration
	case ErrCodeDataNotFound, ErrCodeDataSourceUnavailable, ErrCodeNoDataFound,
		ErrCodeMarketDataFetchFailed, ErrCodeMarketDataParseFailed, ErrCodeRateLimited:
		return KindFetch
	case ErrCodeMarketDataWriteFailed, ErrCodeStorageFailed, ErrCodeFileExists:
		return KindStorage
	default:
		return KindUnknown
	}
}
