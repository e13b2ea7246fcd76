// Package errors provides structured error types for the Tessera write
// engine. All errors include a category, code, message, and retryable
// flag for consistent handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure origin.
type ErrorCategory string

const (
	// ErrCategoryValidation marks caller mistakes; never retried.
	ErrCategoryValidation ErrorCategory = "VALIDATION"

	// ErrCategorySchema marks schema lookup failures.
	ErrCategorySchema ErrorCategory = "SCHEMA"

	// ErrCategoryExecution marks environment/runtime failures surfaced
	// from the replication or consensus boundary; the caller may retry.
	ErrCategoryExecution ErrorCategory = "EXECUTION"

	// ErrCategoryInvariant marks engine bugs; fatal, not user-recoverable.
	ErrCategoryInvariant ErrorCategory = "INVARIANT"
)

// Error codes for each category.
const (
	// Validation codes
	CodeMissingKeyComponent        = "MISSING_KEY_COMPONENT"
	CodeMissingClusteringComponent = "MISSING_CLUSTERING_COMPONENT"
	CodeMixedClusteringForm        = "MIXED_CLUSTERING_FORM"
	CodeCasMultiRowUnsupported     = "CAS_MULTI_ROW_UNSUPPORTED"
	CodeOperationRequiresRead      = "OPERATION_REQUIRES_READ"
	CodeUnsupportedReadConsistency = "UNSUPPORTED_CONSISTENCY_FOR_READ"
	CodeEmptyConsistency           = "EMPTY_CONSISTENCY"
	CodeInvalidConsistency         = "INVALID_CONSISTENCY"
	CodeCounterForbidsConditions   = "COUNTER_FORBIDS_CONDITIONS"
	CodeCounterForbidsAttributes   = "COUNTER_FORBIDS_ATTRIBUTES"
	CodeConditionForbidsTimestamp  = "CONDITION_FORBIDS_TIMESTAMP"
	CodeInvalidOperation           = "INVALID_OPERATION"

	// Schema codes
	CodeUnknownTable  = "UNKNOWN_TABLE"
	CodeUnknownColumn = "UNKNOWN_COLUMN"

	// Execution codes
	CodeUnavailable              = "UNAVAILABLE"
	CodeTimeout                  = "TIMEOUT"
	CodeConsistencyUnsatisfiable = "CONSISTENCY_UNSATISFIABLE"
	CodeProposalSuperseded       = "PROPOSAL_SUPERSEDED"

	// Invariant codes
	CodeMultipleSnapshots = "MULTIPLE_SNAPSHOTS"
	CodeMissingSnapshot   = "MISSING_SNAPSHOT"
	CodeUnexpected        = "UNEXPECTED"
)

// EngineError is the structured error type used throughout the engine.
type EngineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EngineError.
func New(category ErrorCategory, code, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: category == ErrCategoryExecution,
	}
}

// Newf creates a new EngineError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *EngineError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new EngineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EngineError {
	e := New(category, code, message)
	e.Cause = cause
	return e
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCategory(err error) ErrorCategory {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Convenience constructors for common errors.

func NewValidationError(code, format string, args ...interface{}) *EngineError {
	return Newf(ErrCategoryValidation, code, format, args...)
}

func NewSchemaError(code, format string, args ...interface{}) *EngineError {
	return Newf(ErrCategorySchema, code, format, args...)
}

func NewExecutionError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryExecution, code, message, cause)
}

func NewInvariantError(code, format string, args ...interface{}) *EngineError {
	return Newf(ErrCategoryInvariant, code, format, args...)
}

// NewBoundaryError wraps an error surfaced from a replication or
// consensus boundary. Errors that already carry an execution code
// (timeout, unavailable, consistency unsatisfiable) propagate unchanged
// so the caller sees the boundary's own code; foreign errors are wrapped
// with the given code.
func NewBoundaryError(code, message string, cause error) error {
	if GetCategory(cause) == ErrCategoryExecution {
		return cause
	}
	return NewExecutionError(code, message, cause)
}
