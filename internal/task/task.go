// Package task defines the task model and the task registry, the
// authoritative record of every unit of work submitted to the hive.
package task

import (
	"time"

	"hivekit/internal/capability"
	"hivekit/internal/errors"
)

// Status represents the current lifecycle state of a task.
type Status string

const (
	// StatusPending indicates the task is waiting for an agent.
	StatusPending Status = "pending"

	// StatusAssigned indicates an agent holds the task but has not
	// started executing it.
	StatusAssigned Status = "assigned"

	// StatusInProgress indicates the task is actively being executed.
	StatusInProgress Status = "in_progress"

	// StatusAwaitingVerification indicates execution produced a result
	// that must pass independent verification before the task can
	// complete.
	StatusAwaitingVerification Status = "awaiting_verification"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task failed permanently.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the task was withdrawn.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// validTransitions maps each status to the statuses it may move to.
// Completion out of awaiting_verification is additionally gated: only
// the holder of the registry's Gate may perform it.
var validTransitions = map[Status][]Status{
	StatusPending:              {StatusAssigned, StatusCancelled},
	StatusAssigned:             {StatusInProgress, StatusPending, StatusCancelled},
	StatusInProgress:           {StatusAwaitingVerification, StatusCompleted, StatusFailed, StatusPending, StatusCancelled},
	StatusAwaitingVerification: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from one status to another is a
// legal state machine step.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority orders tasks for assignment. Higher values win.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority converts a string to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityLow, errors.NewValidationError("priority", s, "must be one of: low, medium, high, critical")
	}
}

// VerificationLevel selects how much scrutiny a verifiable task's
// result receives before the task may complete.
type VerificationLevel string

const (
	// VerificationNone skips verification; execution results complete
	// the task directly.
	VerificationNone VerificationLevel = "none"

	// VerificationBasic checks only that the output addresses the goal.
	VerificationBasic VerificationLevel = "basic"

	// VerificationStandard checks goal alignment and output quality.
	VerificationStandard VerificationLevel = "standard"

	// VerificationComprehensive runs all checks twice and requires the
	// two passes to agree.
	VerificationComprehensive VerificationLevel = "comprehensive"
)

// ParseVerificationLevel converts a string to a VerificationLevel.
func ParseVerificationLevel(s string) (VerificationLevel, error) {
	switch s {
	case "", "none":
		return VerificationNone, nil
	case "basic":
		return VerificationBasic, nil
	case "standard":
		return VerificationStandard, nil
	case "comprehensive":
		return VerificationComprehensive, nil
	default:
		return VerificationNone, errors.NewValidationError("verification_level", s, "must be one of: none, basic, standard, comprehensive")
	}
}

// Task is a unit of work submitted to the hive.
type Task struct {
	// ID uniquely identifies the task.
	ID string `yaml:"id" json:"id"`

	// Description is the human-readable statement of the work.
	Description string `yaml:"description" json:"description"`

	// Priority orders the task against others waiting for agents.
	Priority Priority `yaml:"priority" json:"priority"`

	// Required lists the capabilities an agent needs to execute this
	// task, with minimum proficiencies.
	Required []capability.Requirement `yaml:"required" json:"required"`

	// Status is the current lifecycle state.
	Status Status `yaml:"status" json:"status"`

	// AssignedTo is the ID of the agent holding this task, if any.
	AssignedTo string `yaml:"assigned_to,omitempty" json:"assigned_to,omitempty"`

	// Progress is the fraction of the work done, in [0, 1].
	Progress float64 `yaml:"progress" json:"progress"`

	// EstimatedDuration is the expected execution time. Verification
	// timeouts derive from it.
	EstimatedDuration time.Duration `yaml:"estimated_duration,omitempty" json:"estimated_duration,omitempty"`

	// RetryCount is the number of execution retries so far.
	RetryCount int `yaml:"retry_count" json:"retry_count"`

	// MaxRetries is the maximum number of execution retries allowed.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// FailureContext holds error context from the most recent failure.
	FailureContext string `yaml:"failure_context,omitempty" json:"failure_context,omitempty"`

	// Result holds the execution outcome once one exists.
	Result *Result `yaml:"result,omitempty" json:"result,omitempty"`

	// Verification describes the verification contract for this task.
	// Nil for plain tasks, which complete without verification.
	Verification *VerificationSpec `yaml:"verification,omitempty" json:"verification,omitempty"`

	CreatedAt   time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `yaml:"updated_at" json:"updated_at"`
	AssignedAt  *time.Time `yaml:"assigned_at,omitempty" json:"assigned_at,omitempty"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// VerificationSpec is the immutable verification contract attached to a
// task at submission. OriginalGoal and SuccessCriteria are captured
// once and never rewritten, so the verifier always judges against what
// was originally asked for.
type VerificationSpec struct {
	// OriginalGoal is the goal statement as submitted.
	OriginalGoal string `yaml:"original_goal" json:"original_goal"`

	// SuccessCriteria are the concrete conditions the output must meet.
	SuccessCriteria []string `yaml:"success_criteria" json:"success_criteria"`

	// Level selects the verification depth.
	Level VerificationLevel `yaml:"level" json:"level"`
}

// Verifiable reports whether this task requires verification before
// completion.
func (t *Task) Verifiable() bool {
	return t.Verification != nil && t.Verification.Level != VerificationNone
}

// Validate checks that the task's submission fields are well-formed.
func (t *Task) Validate() error {
	if t.Description == "" {
		return errors.NewValidationError("description", t.Description, "must not be empty")
	}
	if t.Priority < PriorityLow || t.Priority > PriorityCritical {
		return errors.NewValidationError("priority", int(t.Priority), "must be between 0 (low) and 3 (critical)")
	}
	if t.Progress < 0 || t.Progress > 1 {
		return errors.NewValidationError("progress", t.Progress, "must be between 0 and 1")
	}
	for _, req := range t.Required {
		if err := req.Validate(); err != nil {
			return err
		}
	}
	if t.Verification != nil {
		if t.Verification.OriginalGoal == "" {
			return errors.NewValidationError("original_goal", t.Verification.OriginalGoal, "must not be empty for verifiable tasks")
		}
		switch t.Verification.Level {
		case VerificationNone, VerificationBasic, VerificationStandard, VerificationComprehensive:
		default:
			return errors.NewValidationError("verification_level", string(t.Verification.Level), "must be one of: none, basic, standard, comprehensive")
		}
	}
	return nil
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Required != nil {
		cp.Required = make([]capability.Requirement, len(t.Required))
		copy(cp.Required, t.Required)
	}
	if t.Result != nil {
		cp.Result = t.Result.Clone()
	}
	if t.Verification != nil {
		v := *t.Verification
		if t.Verification.SuccessCriteria != nil {
			v.SuccessCriteria = make([]string, len(t.Verification.SuccessCriteria))
			copy(v.SuccessCriteria, t.Verification.SuccessCriteria)
		}
		cp.Verification = &v
	}
	if t.AssignedAt != nil {
		at := *t.AssignedAt
		cp.AssignedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		cp.CompletedAt = &at
	}
	return &cp
}
