// Package agent defines the agent model and the agent registry, the
// record of every worker the hive can hand tasks to.
package agent

import (
	"time"

	"hivekit/internal/capability"
	"hivekit/internal/errors"
)

// Kind classifies what role an agent plays in the hive.
type Kind string

const (
	// KindWorker is a general-purpose task executor.
	KindWorker Kind = "worker"

	// KindCoordinator oversees other agents' work, spending little
	// energy per task.
	KindCoordinator Kind = "coordinator"

	// KindSpecialist executes tasks in a narrow domain at high
	// proficiency.
	KindSpecialist Kind = "specialist"

	// KindLearner trades throughput for a faster proficiency curve.
	KindLearner Kind = "learner"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "worker":
		return KindWorker, nil
	case "coordinator":
		return KindCoordinator, nil
	case "specialist":
		return KindSpecialist, nil
	case "learner":
		return KindLearner, nil
	default:
		return "", errors.NewValidationError("kind", s, "must be one of: worker, coordinator, specialist, learner")
	}
}

// State represents what an agent is currently doing.
type State string

const (
	// StateIdle indicates the agent is available for work.
	StateIdle State = "idle"

	// StateWorking indicates the agent is executing a task.
	StateWorking State = "working"

	// StateVerifying indicates the agent is verifying another agent's
	// result.
	StateVerifying State = "verifying"

	// StateFailed indicates the agent stopped responding or reported an
	// unrecoverable error.
	StateFailed State = "failed"

	// StateTerminated indicates the agent was removed from the hive.
	StateTerminated State = "terminated"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if the agent has left the hive.
func (s State) IsTerminal() bool {
	return s == StateTerminated
}

// validStateTransitions maps each state to the states it may move to.
var validStateTransitions = map[State][]State{
	StateIdle:      {StateWorking, StateVerifying, StateFailed, StateTerminated},
	StateWorking:   {StateIdle, StateFailed},
	StateVerifying: {StateIdle, StateFailed},
	StateFailed:    {StateIdle, StateTerminated},
}

// canTransition reports whether a state change is legal.
func canTransition(from, to State) bool {
	for _, next := range validStateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Agent is a worker registered with the hive.
type Agent struct {
	// ID uniquely identifies the agent.
	ID string `yaml:"id" json:"id"`

	// Name is a human-readable label.
	Name string `yaml:"name" json:"name"`

	// Kind classifies the agent's role.
	Kind Kind `yaml:"kind" json:"kind"`

	// State is what the agent is currently doing.
	State State `yaml:"state" json:"state"`

	// Energy is the agent's remaining working capacity, in [0, 100].
	// Executing tasks drains it; idle time restores it. An exhausted
	// agent is skipped by assignment until it recovers.
	Energy float64 `yaml:"energy" json:"energy"`

	// Capabilities are the skills this agent advertises.
	Capabilities capability.Set `yaml:"capabilities" json:"capabilities"`

	// TasksCompleted counts successfully finished executions.
	TasksCompleted int `yaml:"tasks_completed" json:"tasks_completed"`

	// TasksFailed counts failed executions.
	TasksFailed int `yaml:"tasks_failed" json:"tasks_failed"`

	// LastActive is when the agent last changed state or finished work.
	// Assignment prefers agents idle the longest when fit and load tie.
	LastActive time.Time `yaml:"last_active" json:"last_active"`

	CreatedAt time.Time `yaml:"created_at" json:"created_at"`
}

// Validate checks the agent's registration fields.
func (a *Agent) Validate() error {
	if a.Name == "" {
		return errors.NewValidationError("name", a.Name, "must not be empty")
	}
	if _, err := ParseKind(string(a.Kind)); err != nil {
		return err
	}
	if a.Energy < 0 || a.Energy > 100 {
		return errors.NewValidationError("energy", a.Energy, "must be between 0 and 100")
	}
	for _, c := range a.Capabilities {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Available reports whether the agent can accept new work: idle, with
// at least minEnergy remaining.
func (a *Agent) Available(minEnergy float64) bool {
	return a.State == StateIdle && a.Energy >= minEnergy
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	cp := *a
	cp.Capabilities = a.Capabilities.Clone()
	return &cp
}
