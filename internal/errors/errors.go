// Package errors provides the structured error type used across cqs.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where the leading digit
// maps to the taxonomy in spec section 7:
//   - 1XX: input errors (bad config, missing files, invalid CLI args)
//   - 2XX: parse degradation (per-file tree-sitter failures)
//   - 3XX: schema/model incompatibility
//   - 4XX: I/O failures during write
//   - 5XX: query degradation (fallback paths)
//   - 6XX: protocol errors (JSON-RPC)
//   - 7XX: internal/unclassified
//
// Interruption is deliberately not represented here: per spec section 9 it is
// a distinguished sentinel value, not a member of this taxonomy. See
// ErrInterrupted in the signalctl package.
package errors

import "fmt"

// CqsError is the structured error type for cqs.
type CqsError struct {
	Code       string
	Message    string
	Category   Category
	Severity   Severity
	Details    map[string]string
	Cause      error
	Retryable  bool
	Suggestion string
}

func (e *CqsError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CqsError) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is to match CqsErrors by code.
func (e *CqsError) Is(target error) bool {
	t, ok := target.(*CqsError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a key/value detail and returns the error for chaining.
func (e *CqsError) WithDetail(key, value string) *CqsError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches an actionable suggestion and returns the error for chaining.
func (e *CqsError) WithSuggestion(s string) *CqsError {
	e.Suggestion = s
	return e
}

// New creates a CqsError; category, severity, and retryability are derived from the code.
func New(code, message string, cause error) *CqsError {
	return &CqsError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap turns an existing error into a CqsError with the given code. Returns
// nil if err is nil.
func Wrap(code string, err error) *CqsError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InputError creates an input-validation error (1XX).
func InputError(message string, cause error) *CqsError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ParseDegradation creates a per-file parse-failure error (2XX). Callers are
// expected to log it and continue the batch, per spec section 4.1.
func ParseDegradation(message string, cause error) *CqsError {
	return New(ErrCodeParseFailed, message, cause)
}

// SchemaError creates a schema/model-incompatibility error (3XX).
func SchemaError(message string, cause error) *CqsError {
	return New(ErrCodeMigrationNotSupported, message, cause)
}

// IOWriteError creates a write-path I/O error (4XX).
func IOWriteError(message string, cause error) *CqsError {
	return New(ErrCodeTransactionFailed, message, cause)
}

// QueryDegradation creates a degraded-query warning (5XX), e.g. ANN index missing.
func QueryDegradation(message string, cause error) *CqsError {
	return New(ErrCodeANNIndexMissing, message, cause)
}

// ProtocolError creates a JSON-RPC protocol error (6XX).
func ProtocolError(message string, cause error) *CqsError {
	return New(ErrCodeProtocolBadRequest, message, cause)
}

// InternalError creates an unclassified internal error (7XX).
func InternalError(message string, cause error) *CqsError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err is a CqsError marked retryable.
func IsRetryable(err error) bool {
	ce, ok := err.(*CqsError)
	return ok && ce.Retryable
}

// IsFatal reports whether err is a CqsError with fatal severity.
func IsFatal(err error) bool {
	ce, ok := err.(*CqsError)
	return ok && ce.Severity == SeverityFatal
}

// Code extracts the error code, or "" if err is not a CqsError.
func Code(err error) string {
	if ce, ok := err.(*CqsError); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category, or "" if err is not a CqsError.
func GetCategory(err error) Category {
	if ce, ok := err.(*CqsError); ok {
		return ce.Category
	}
	return ""
}
