package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeMissingKeyComponent, "missing mandatory PRIMARY KEY part pk")
	expected := "[VALIDATION:MISSING_KEY_COMPONENT] missing mandatory PRIMARY KEY part pk"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryExecution, CodeUnavailable, "write unavailable", cause)
	expected := "[EXECUTION:UNAVAILABLE] write unavailable: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestEngineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryExecution, CodeTimeout, "write timed out", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestEngineError_Is(t *testing.T) {
	err1 := New(ErrCategoryValidation, CodeMixedClusteringForm, "first")
	err2 := New(ErrCategoryValidation, CodeMixedClusteringForm, "second")
	err3 := New(ErrCategoryValidation, CodeMissingKeyComponent, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryExecution, CodeUnavailable, true},
		{ErrCategoryExecution, CodeTimeout, true},
		{ErrCategoryExecution, CodeConsistencyUnsatisfiable, true},
		{ErrCategoryExecution, CodeProposalSuperseded, true},
		{ErrCategoryValidation, CodeMissingKeyComponent, false},
		{ErrCategoryValidation, CodeCasMultiRowUnsupported, false},
		{ErrCategorySchema, CodeUnknownTable, false},
		{ErrCategoryInvariant, CodeMultipleSnapshots, false},
		{ErrCategoryInvariant, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategorySchema, CodeUnknownTable, "unknown table ks.t")
	if GetCategory(err) != ErrCategorySchema {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategorySchema)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategorySchema, CodeUnknownTable, "unknown table ks.t")
	if GetCode(err) != CodeUnknownTable {
		t.Errorf("got %q, want %q", GetCode(err), CodeUnknownTable)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-EngineError should return empty code")
	}
	if !HasCode(err, CodeUnknownTable) {
		t.Error("HasCode should match the carried code")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeEmptyConsistency, "invalid empty consistency level")
	if v.Category != ErrCategoryValidation || v.Code != CodeEmptyConsistency {
		t.Error("NewValidationError mismatch")
	}
	if v.Retryable {
		t.Error("validation errors must not be retryable")
	}

	s := NewSchemaError(CodeUnknownTable, "unknown table %s", "ks.t")
	if s.Category != ErrCategorySchema || s.Message != "unknown table ks.t" {
		t.Error("NewSchemaError mismatch")
	}

	e := NewExecutionError(CodeUnavailable, "replica down", cause)
	if e.Category != ErrCategoryExecution || !errors.Is(e, cause) {
		t.Error("NewExecutionError mismatch")
	}
	if !e.Retryable {
		t.Error("execution errors must be retryable")
	}

	i := NewInvariantError(CodeMultipleSnapshots, "read returned %d partitions", 2)
	if i.Category != ErrCategoryInvariant || i.Retryable {
		t.Error("NewInvariantError mismatch")
	}
}

func TestNewBoundaryError(t *testing.T) {
	// An execution error from the boundary keeps its own code.
	timeout := NewExecutionError(CodeTimeout, "replica write timed out", nil)
	got := NewBoundaryError(CodeUnavailable, "write failed", timeout)
	if got != error(timeout) {
		t.Error("execution errors should propagate unchanged")
	}
	if GetCode(got) != CodeTimeout {
		t.Errorf("got code %q, want %q", GetCode(got), CodeTimeout)
	}

	unsat := NewExecutionError(CodeConsistencyUnsatisfiable, "1 of 2 replicas alive", nil)
	if GetCode(NewBoundaryError(CodeUnavailable, "write failed", unsat)) != CodeConsistencyUnsatisfiable {
		t.Error("CONSISTENCY_UNSATISFIABLE should survive the boundary wrap")
	}

	// Anything else gets wrapped with the caller's code.
	foreign := fmt.Errorf("connection reset by peer")
	wrapped := NewBoundaryError(CodeUnavailable, "write failed", foreign)
	if GetCode(wrapped) != CodeUnavailable {
		t.Errorf("got code %q, want %q", GetCode(wrapped), CodeUnavailable)
	}
	if !errors.Is(wrapped, foreign) {
		t.Error("wrapped error should keep its cause")
	}

	// Validation and invariant causes are bugs in the boundary, not
	// retryable conditions; they get the execution wrap too.
	bad := NewValidationError(CodeInvalidOperation, "boundary misuse")
	if GetCode(NewBoundaryError(CodeUnavailable, "write failed", bad)) != CodeUnavailable {
		t.Error("non-execution EngineErrors should be wrapped")
	}
}
