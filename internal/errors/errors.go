// Package errors provides centralized error definitions and error handling
// utilities for the hivekit codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and
// error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - TaskError: errors related to task lifecycle and the task registry
//   - AgentError: errors related to agent lifecycle and the agent registry
//   - VerificationError: errors related to the verification protocol
//
// Semantic errors represent common error conditions:
//   - ValidationError: invalid input rejected at the boundary
//   - NotFoundError: resource not found
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTaskError("cannot cancel task", errors.ErrInvalidTransition).
//		WithTaskID(id).WithStatus("in_progress")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrInvalidTransition) { ... }
//
//	var taskErr *errors.TaskError
//	if errors.As(err, &taskErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//     (no eligible agent, verifier busy, execution collaborator down)
//   - UserFacing: errors safe to display to callers (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Task-related sentinel errors
var (
	// ErrTaskNotFound indicates that a task could not be found.
	ErrTaskNotFound = New("task not found")
	// ErrInvalidTransition indicates a task or agent state machine violation.
	// It always signals a programming error or a lost race, never normal flow.
	ErrInvalidTransition = New("invalid status transition")
	// ErrTaskCancelled indicates that a task was cancelled before or during
	// execution and its result, if any, has been discarded.
	ErrTaskCancelled = New("task cancelled")
	// ErrTaskTerminal indicates an attempt to mutate a task in a terminal state.
	ErrTaskTerminal = New("task is in a terminal state")
	// ErrTaskClaimed indicates a claim race lost to another agent.
	ErrTaskClaimed = New("task already claimed")
)

// Agent-related sentinel errors
var (
	// ErrAgentNotFound indicates that an agent could not be found.
	ErrAgentNotFound = New("agent not found")
	// ErrAgentBusy indicates that an agent already holds an in-flight primary task.
	ErrAgentBusy = New("agent is busy")
	// ErrAgentTerminated indicates an operation on a terminated agent.
	ErrAgentTerminated = New("agent is terminated")
	// ErrAgentHoldsTask indicates a terminate attempt while the agent still
	// holds an assigned task.
	ErrAgentHoldsTask = New("agent holds an assigned task")
	// ErrAgentUnavailable indicates the execution collaborator could not
	// reach or run the assigned agent.
	ErrAgentUnavailable = New("agent unavailable")
)

// Verification-related sentinel errors
var (
	// ErrVerifierUnavailable indicates no idle verifier could be paired.
	ErrVerifierUnavailable = New("no verification agent available")
	// ErrVerificationTimeout indicates the verification budget was exceeded.
	ErrVerificationTimeout = New("verification timed out")
	// ErrSelfVerification indicates an attempt to pair an agent with itself.
	ErrSelfVerification = New("primary and verification agents must differ")
	// ErrPairUnresolved indicates a second unresolved pair for the same task.
	ErrPairUnresolved = New("task already has an unresolved agent pair")
	// ErrNoExecutionResult indicates verification was requested before the
	// primary reported an execution result.
	ErrNoExecutionResult = New("no execution result recorded")
)

// General sentinel errors
var (
	// ErrResourceExhausted indicates no eligible agent exists or the queue is full.
	// Non-fatal: the task remains pending and is retried on the next trigger.
	ErrResourceExhausted = New("resource exhausted")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrRetriesExhausted indicates a bounded retry count was consumed.
	ErrRetriesExhausted = New("retries exhausted")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// HiveError is the base interface for all hivekit errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type HiveError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to callers.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show callers.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// TaskError represents errors related to task lifecycle and the task registry.
//
// Example:
//
//	err := errors.NewTaskError("cannot complete task", errors.ErrInvalidTransition)
//	err = err.WithTaskID("c2a8...").WithStatus("pending")
type TaskError struct {
	baseError
	TaskID string
	Status string
}

// NewTaskError creates a new TaskError.
func NewTaskError(message string, cause error) *TaskError {
	return &TaskError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithTaskID adds a task ID to the error context.
func (e *TaskError) WithTaskID(id string) *TaskError {
	e.TaskID = id
	return e
}

// WithStatus adds the task's last known status to the error context.
// Callers use this for idempotent retry decisions.
func (e *TaskError) WithStatus(status string) *TaskError {
	e.Status = status
	return e
}

// WithSeverity sets the error severity.
func (e *TaskError) WithSeverity(s Severity) *TaskError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *TaskError) WithRetryable(r bool) *TaskError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TaskError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.Status != "" {
		parts = append(parts, fmt.Sprintf("status=%s", e.Status))
	}

	prefix := "task error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("task error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TaskError) Is(target error) bool {
	if _, ok := target.(*TaskError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// AgentError represents errors related to agent lifecycle and the agent registry.
//
// Example:
//
//	err := errors.NewAgentError("assignment failed", errors.ErrAgentBusy).
//		WithAgentID("9f4e...")
type AgentError struct {
	baseError
	AgentID string
	State   string
}

// NewAgentError creates a new AgentError.
func NewAgentError(message string, cause error) *AgentError {
	return &AgentError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithAgentID adds an agent ID to the error context.
func (e *AgentError) WithAgentID(id string) *AgentError {
	e.AgentID = id
	return e
}

// WithState adds the agent's current state to the error context.
func (e *AgentError) WithState(state string) *AgentError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *AgentError) WithSeverity(s Severity) *AgentError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *AgentError) WithRetryable(r bool) *AgentError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *AgentError) Error() string {
	prefix := "agent error"
	switch {
	case e.AgentID != "" && e.State != "":
		prefix = fmt.Sprintf("agent error [agent=%s, state=%s]", e.AgentID, e.State)
	case e.AgentID != "":
		prefix = fmt.Sprintf("agent error [agent=%s]", e.AgentID)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *AgentError) Is(target error) bool {
	if _, ok := target.(*AgentError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// VerificationError represents errors from the verification protocol.
//
// Example:
//
//	err := errors.NewVerificationError("strategy disagreement", nil).
//		WithTaskID(id).WithPairID(pairID).WithAttempt(2)
type VerificationError struct {
	baseError
	TaskID  string
	PairID  string
	Attempt int
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(message string, cause error) *VerificationError {
	return &VerificationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Attempt: -1, // -1 indicates not set
	}
}

// WithTaskID adds a task ID to the error context.
func (e *VerificationError) WithTaskID(id string) *VerificationError {
	e.TaskID = id
	return e
}

// WithPairID adds an agent pair ID to the error context.
func (e *VerificationError) WithPairID(id string) *VerificationError {
	e.PairID = id
	return e
}

// WithAttempt adds the verification attempt number to the error context.
func (e *VerificationError) WithAttempt(n int) *VerificationError {
	e.Attempt = n
	return e
}

// WithSeverity sets the error severity.
func (e *VerificationError) WithSeverity(s Severity) *VerificationError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *VerificationError) WithRetryable(r bool) *VerificationError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *VerificationError) Error() string {
	var parts []string
	if e.TaskID != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskID))
	}
	if e.PairID != "" {
		parts = append(parts, fmt.Sprintf("pair=%s", e.PairID))
	}
	if e.Attempt >= 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "verification error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("verification error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *VerificationError) Is(target error) bool {
	if _, ok := target.(*VerificationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError indicates invalid input rejected synchronously at the
// boundary; the offending record never enters a registry.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError for the given field.
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			cause:      ErrInvalidInput,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Field: field,
		Value: value,
	}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [field=%s]: %s (got: %v)", e.Field, e.message, e.Value)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// NotFoundError indicates a missing resource of a given kind.
type NotFoundError struct {
	baseError
	Kind string
	ID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	cause := ErrTaskNotFound
	if kind == "agent" {
		cause = ErrAgentNotFound
	}
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s %q not found", kind, id),
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		Kind: kind,
		ID:   id,
	}
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable reports whether err is transient and the operation may succeed
// on retry. Recoverable scheduling conditions (no eligible agent, verifier
// busy, execution collaborator down) are retryable; validation failures and
// state machine violations are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var he HiveError
	if errors.As(err, &he) {
		return he.IsRetryable()
	}
	return errors.Is(err, ErrResourceExhausted) ||
		errors.Is(err, ErrVerifierUnavailable) ||
		errors.Is(err, ErrAgentUnavailable) ||
		errors.Is(err, ErrVerificationTimeout)
}

// IsUserFacing reports whether err carries a message safe to show callers.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var he HiveError
	if errors.As(err, &he) {
		return he.IsUserFacing()
	}
	return false
}

// SeverityOf returns the severity of err, defaulting to SeverityError for
// errors that do not implement HiveError.
func SeverityOf(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var he HiveError
	if errors.As(err, &he) {
		return he.Severity()
	}
	return SeverityError
}
