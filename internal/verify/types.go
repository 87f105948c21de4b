// Package verify implements independent verification of task results.
// A second agent judges the primary agent's output against the task's
// original goal, working only from the immutable submission record, so
// the primary agent's own account of its work never influences the
// verdict.
package verify

import (
	"time"

	"hivekit/internal/errors"
	"hivekit/internal/task"
)

// Status is the verdict of a verification attempt.
type Status string

const (
	// StatusVerified indicates the output satisfies the goal.
	StatusVerified Status = "verified"

	// StatusPartiallyVerified indicates the output mostly satisfies the
	// goal, with only minor discrepancies.
	StatusPartiallyVerified Status = "partially_verified"

	// StatusFailed indicates the output does not satisfy the goal.
	StatusFailed Status = "failed"

	// StatusRequiresReview indicates verification could not settle the
	// question and a human must look.
	StatusRequiresReview Status = "requires_review"

	// StatusInconclusive indicates the attempt produced no usable
	// verdict; the coordinator retries with a different verifier.
	StatusInconclusive Status = "inconclusive"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Accepted reports whether this verdict lets the task complete.
func (s Status) Accepted() bool {
	return s == StatusVerified || s == StatusPartiallyVerified
}

// Severity classifies how serious a discrepancy is.
type Severity string

const (
	// SeverityCritical marks a discrepancy that invalidates the output.
	SeverityCritical Severity = "critical"

	// SeverityMajor marks a discrepancy that substantially weakens the
	// output.
	SeverityMajor Severity = "major"

	// SeverityMinor marks a small correctness issue.
	SeverityMinor Severity = "minor"

	// SeverityCosmetic marks a stylistic issue.
	SeverityCosmetic Severity = "cosmetic"
)

// Discrepancy is one defect a verifier found in the output.
type Discrepancy struct {
	// Description says what is wrong.
	Description string `json:"description"`

	// Severity classifies the defect.
	Severity Severity `json:"severity"`

	// Expected is what the goal or criteria called for.
	Expected string `json:"expected,omitempty"`

	// Actual is what the output contains instead.
	Actual string `json:"actual,omitempty"`
}

// Input is everything a verifier is allowed to see. It is built only
// from the task's immutable verification contract and the recorded
// execution result; nothing from the primary agent's internal state can
// reach a verifier, because nothing else fits through this type.
type Input struct {
	// OriginalGoal is the goal as submitted, never the executing
	// agent's restatement of it.
	OriginalGoal string

	// SuccessCriteria are the submitted acceptance conditions.
	SuccessCriteria []string

	// Output is the primary agent's deliverable.
	Output string

	// Artifacts are the named secondary outputs of the execution.
	Artifacts map[string]string

	// Duration is how long the execution took.
	Duration time.Duration

	// EstimatedDuration is how long the task was expected to take.
	EstimatedDuration time.Duration
}

// NewInput builds a verifier input from a task awaiting verification.
// The task must carry both a verification contract and an execution
// result.
func NewInput(t *task.Task) (Input, error) {
	if t.Verification == nil {
		return Input{}, errors.NewVerificationError("task has no verification contract", errors.ErrInvalidInput).
			WithTaskID(t.ID)
	}
	if t.Result == nil {
		return Input{}, errors.NewVerificationError("task has no execution result", errors.ErrNoExecutionResult).
			WithTaskID(t.ID)
	}

	criteria := make([]string, len(t.Verification.SuccessCriteria))
	copy(criteria, t.Verification.SuccessCriteria)

	var artifacts map[string]string
	if t.Result.Artifacts != nil {
		artifacts = make(map[string]string, len(t.Result.Artifacts))
		for k, v := range t.Result.Artifacts {
			artifacts[k] = v
		}
	}

	return Input{
		OriginalGoal:      t.Verification.OriginalGoal,
		SuccessCriteria:   criteria,
		Output:            t.Result.Output,
		Artifacts:         artifacts,
		Duration:          t.Result.Duration,
		EstimatedDuration: t.EstimatedDuration,
	}, nil
}

// Report is the full record of one verification attempt.
type Report struct {
	// TaskID identifies the verified task.
	TaskID string `json:"task_id"`

	// PairID identifies the primary/verifier pair that produced this
	// report.
	PairID string `json:"pair_id"`

	// VerifierID identifies the agent that ran the verification.
	VerifierID string `json:"verifier_id"`

	// Status is the verdict.
	Status Status `json:"status"`

	// GoalAlignment scores how well the output addresses the goal, in
	// [0, 1].
	GoalAlignment float64 `json:"goal_alignment"`

	// Quality scores the output's workmanship, in [0, 1].
	Quality float64 `json:"quality"`

	// Confidence combines alignment and quality into a single
	// certainty score; low confidence routes the result to review.
	Confidence float64 `json:"confidence"`

	// Discrepancies lists the defects found.
	Discrepancies []Discrepancy `json:"discrepancies,omitempty"`

	// Attempt is which verification attempt this is, starting at 1.
	Attempt int `json:"attempt"`

	// Duration is how long verification took.
	Duration time.Duration `json:"duration"`

	CompletedAt time.Time `json:"completed_at"`
}

// HasCritical reports whether any discrepancy is critical.
func (r *Report) HasCritical() bool {
	for _, d := range r.Discrepancies {
		if d.Severity == SeverityCritical {
			return true
		}
	}
	return false
}
