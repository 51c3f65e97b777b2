// Package errors provides structured error handling for kbsync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, state, disk)
//   - 3XX: Store gateway errors (network)
//   - 4XX: Validation errors
//   - 5XX: Guard trips and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and state I/O errors.
	CategoryIO Category = "IO"
	// CategoryStore indicates store gateway (network) errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryGuard indicates a safety guard veto.
	CategoryGuard Category = "GUARD"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates the run must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeFileUnreadable = "ERR_201_FILE_UNREADABLE"
	ErrCodeStateCorrupt   = "ERR_202_STATE_CORRUPT"
	ErrCodeDiskFull       = "ERR_203_DISK_FULL"
	ErrCodeFileTooLarge   = "ERR_204_FILE_TOO_LARGE"
	ErrCodeStateLocked    = "ERR_205_STATE_LOCKED"

	// Store gateway errors (300-399)
	ErrCodeStoreTimeout      = "ERR_301_STORE_TIMEOUT"
	ErrCodeStoreUnavailable  = "ERR_302_STORE_UNAVAILABLE"
	ErrCodeStoreRejected     = "ERR_303_STORE_REJECTED"
	ErrCodeStoreUnauthorized = "ERR_304_STORE_UNAUTHORIZED"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath  = "ERR_402_INVALID_PATH"

	// Guard and internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeMountUnhealthy = "ERR_502_MOUNT_UNHEALTHY"
	ErrCodeRootRemoved    = "ERR_503_ROOT_REMOVED"
	ErrCodeIndexFailed    = "ERR_504_INDEX_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	switch code {
	case ErrCodeMountUnhealthy, ErrCodeRootRemoved:
		return CategoryGuard
	}

	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDiskFull, ErrCodeStateLocked, ErrCodeMountUnhealthy:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreTimeout, ErrCodeStoreUnavailable:
		return true
	default:
		return false
	}
}
