package errors

import (
	"fmt"
	"testing"
)

func TestSeverityString(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.severity.String(); got != tt.want {
			t.Errorf("Severity(%d).String() = %q, want %q", tt.severity, got, tt.want)
		}
	}
}

func TestTaskError(t *testing.T) {
	err := NewTaskError("cannot complete task", ErrInvalidTransition).
		WithTaskID("task-1").
		WithStatus("pending")

	if !Is(err, ErrInvalidTransition) {
		t.Error("expected error to match ErrInvalidTransition")
	}

	var taskErr *TaskError
	if !As(err, &taskErr) {
		t.Fatal("expected error to be a *TaskError")
	}
	if taskErr.TaskID != "task-1" {
		t.Errorf("TaskID = %q, want task-1", taskErr.TaskID)
	}
	if taskErr.Status != "pending" {
		t.Errorf("Status = %q, want pending", taskErr.Status)
	}

	msg := err.Error()
	want := "task error [task=task-1, status=pending]: cannot complete task: invalid status transition"
	if msg != want {
		t.Errorf("Error() = %q, want %q", msg, want)
	}
}

func TestTaskErrorWithoutContext(t *testing.T) {
	err := NewTaskError("something broke", nil)
	if got := err.Error(); got != "task error: something broke" {
		t.Errorf("Error() = %q", got)
	}
}

func TestAgentError(t *testing.T) {
	err := NewAgentError("assignment failed", ErrAgentBusy).WithAgentID("agent-9")

	if !Is(err, ErrAgentBusy) {
		t.Error("expected error to match ErrAgentBusy")
	}

	want := "agent error [agent=agent-9]: assignment failed: agent is busy"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestVerificationError(t *testing.T) {
	err := NewVerificationError("budget exceeded", ErrVerificationTimeout).
		WithTaskID("task-3").
		WithPairID("pair-7").
		WithAttempt(2)

	if !Is(err, ErrVerificationTimeout) {
		t.Error("expected error to match ErrVerificationTimeout")
	}

	want := "verification error [task=task-3, pair=pair-7, attempt=2]: budget exceeded: verification timed out"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	// Attempt defaults to unset.
	err2 := NewVerificationError("x", nil)
	var verr *VerificationError
	if !As(err2, &verr) {
		t.Fatal("expected *VerificationError")
	}
	if verr.Attempt != -1 {
		t.Errorf("default Attempt = %d, want -1", verr.Attempt)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("priority", 7, "must be between 0 and 3")

	if !Is(err, ErrInvalidInput) {
		t.Error("expected error to match ErrInvalidInput")
	}
	if IsRetryable(err) {
		t.Error("validation errors must not be retryable")
	}
	if !IsUserFacing(err) {
		t.Error("validation errors should be user facing")
	}

	want := "validation error [field=priority]: must be between 0 and 3 (got: 7)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNotFoundError(t *testing.T) {
	taskErr := NewNotFoundError("task", "abc")
	if !Is(taskErr, ErrTaskNotFound) {
		t.Error("task NotFoundError should match ErrTaskNotFound")
	}

	agentErr := NewNotFoundError("agent", "def")
	if !Is(agentErr, ErrAgentNotFound) {
		t.Error("agent NotFoundError should match ErrAgentNotFound")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"resource exhausted sentinel", ErrResourceExhausted, true},
		{"verifier unavailable sentinel", ErrVerifierUnavailable, true},
		{"agent unavailable sentinel", ErrAgentUnavailable, true},
		{"verification timeout sentinel", ErrVerificationTimeout, true},
		{"invalid transition sentinel", ErrInvalidTransition, false},
		{"wrapped retryable", fmt.Errorf("assign: %w", ErrResourceExhausted), true},
		{"domain error marked retryable", NewAgentError("down", ErrAgentUnavailable).WithRetryable(true), true},
		{"domain error not retryable", NewTaskError("bad edge", ErrInvalidTransition), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSeverityOf(t *testing.T) {
	if got := SeverityOf(nil); got != SeverityDebug {
		t.Errorf("SeverityOf(nil) = %v, want debug", got)
	}
	if got := SeverityOf(New("plain")); got != SeverityError {
		t.Errorf("SeverityOf(plain) = %v, want error", got)
	}
	err := NewTaskError("x", nil).WithSeverity(SeverityCritical)
	if got := SeverityOf(err); got != SeverityCritical {
		t.Errorf("SeverityOf = %v, want critical", got)
	}
}

func TestErrorChaining(t *testing.T) {
	base := ErrAgentUnavailable
	wrapped := NewAgentError("execution collaborator failed", base).WithAgentID("a1")
	doubly := fmt.Errorf("hive: %w", wrapped)

	if !Is(doubly, ErrAgentUnavailable) {
		t.Error("sentinel should be reachable through both wrap layers")
	}
	var agentErr *AgentError
	if !As(doubly, &agentErr) {
		t.Fatal("AgentError should be reachable through fmt wrap")
	}
	if agentErr.AgentID != "a1" {
		t.Errorf("AgentID = %q, want a1", agentErr.AgentID)
	}
}
