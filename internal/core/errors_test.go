package core

import (
	"context"
	"errors"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := (&DomainError{
		Category: ErrCatValidation,
		Code:     "CODE",
		Message:  "message",
	}).WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}

	match := &DomainError{Category: ErrCatValidation, Code: "CODE"}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := &DomainError{Category: ErrCatExecution, Code: "X", Message: "msg"}
	err.WithDetail("k", "v")
	if err.Details == nil || err.Details["k"] != "v" {
		t.Fatalf("expected details to be set")
	}
}

func TestErrorFactories(t *testing.T) {
	if ErrValidation("C", "m").Retryable {
		t.Fatalf("validation should not be retryable")
	}
	if !ErrExecution("C", "m").Retryable {
		t.Fatalf("execution should be retryable")
	}
	if !ErrTimeout("m").Retryable {
		t.Fatalf("timeout should be retryable")
	}
	if ErrState("C", "m").Retryable {
		t.Fatalf("state should not be retryable")
	}
	if ErrCancelled("m").Retryable {
		t.Fatalf("cancelled should not be retryable")
	}
	if ErrResourceLimit("memory", 10, 5).Retryable {
		t.Fatalf("resource limit should not be retryable")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(ErrExecution("X", "m")) {
		t.Fatalf("expected retryable error")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("expected non-domain error to be non-retryable")
	}
}

func TestGetCategory(t *testing.T) {
	if GetCategory(ErrResourceLimit("memory", 1, 2)) != ErrCatResourceLimit {
		t.Fatalf("expected resource_limit category")
	}
	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Fatalf("expected internal category for non-domain error")
	}
	if !IsCategory(ErrState("C", "m"), ErrCatState) {
		t.Fatalf("expected category match")
	}
}

func TestIsCancelled(t *testing.T) {
	if !IsCancelled(ErrCancelled("stopped")) {
		t.Fatalf("expected DomainError cancelled to report cancelled")
	}
	if !IsCancelled(context.Canceled) {
		t.Fatalf("expected bare context.Canceled to report cancelled")
	}
	if IsCancelled(errors.New("plain")) {
		t.Fatalf("expected plain error to not report cancelled")
	}
}

func TestSessionConflictError(t *testing.T) {
	existing := &SessionInfo{SessionID: "s1", PID: 123}
	err := ErrSessionConflict(existing)
	if err.Category != ErrCatConflict {
		t.Fatalf("expected conflict category")
	}
	if err.Details["existing"] != existing {
		t.Fatalf("expected existing session attached to details")
	}
}
