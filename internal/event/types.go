// Package event defines event types for decoupling hivekit components.
// These events let the registries, assignment engine, verification
// coordinator and external notification sinks communicate without direct
// dependencies. Every event carries the full new state of the changed
// entity rather than a diff, so at-least-once delivery downstream never
// produces a partially applied view.
package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "task.created", "agent.state").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Entity Snapshots
// -----------------------------------------------------------------------------

// TaskSnapshot is the full state of a task at the moment an event fired.
// Fields are plain values so the event package stays a leaf dependency.
type TaskSnapshot struct {
	ID          string
	Description string
	Priority    string
	Status      string
	Assigned    []string
	Progress    float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AgentSnapshot is the full state of an agent at the moment an event fired.
type AgentSnapshot struct {
	ID         string
	Name       string
	Kind       string
	State      string
	Energy     float64
	LastActive time.Time
}

// -----------------------------------------------------------------------------
// Task Lifecycle Events
// -----------------------------------------------------------------------------

// TaskCreatedEvent is emitted when a task enters the registry.
type TaskCreatedEvent struct {
	baseEvent
	Task TaskSnapshot
}

// NewTaskCreatedEvent creates a TaskCreatedEvent.
func NewTaskCreatedEvent(task TaskSnapshot) TaskCreatedEvent {
	return TaskCreatedEvent{
		baseEvent: newBaseEvent("task.created"),
		Task:      task,
	}
}

// TaskUpdateEvent is emitted on every task status or progress change.
type TaskUpdateEvent struct {
	baseEvent
	Task     TaskSnapshot
	Previous string // previous status (empty for progress-only updates)
}

// NewTaskUpdateEvent creates a TaskUpdateEvent.
func NewTaskUpdateEvent(task TaskSnapshot, previous string) TaskUpdateEvent {
	return TaskUpdateEvent{
		baseEvent: newBaseEvent("task.update"),
		Task:      task,
		Previous:  previous,
	}
}

// TaskClaimedEvent is emitted when an agent claims a task from the queue.
type TaskClaimedEvent struct {
	baseEvent
	TaskID  string
	AgentID string
}

// NewTaskClaimedEvent creates a TaskClaimedEvent.
func NewTaskClaimedEvent(taskID, agentID string) TaskClaimedEvent {
	return TaskClaimedEvent{
		baseEvent: newBaseEvent("task.claimed"),
		TaskID:    taskID,
		AgentID:   agentID,
	}
}

// TaskReleasedEvent is emitted when a claimed task returns to the queue.
type TaskReleasedEvent struct {
	baseEvent
	TaskID string
	Reason string // e.g., "agent_unavailable", "stale_claim", "cancelled"
}

// NewTaskReleasedEvent creates a TaskReleasedEvent.
func NewTaskReleasedEvent(taskID, reason string) TaskReleasedEvent {
	return TaskReleasedEvent{
		baseEvent: newBaseEvent("task.released"),
		TaskID:    taskID,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Agent Lifecycle Events
// -----------------------------------------------------------------------------

// AgentCreatedEvent is emitted when an agent registers with the hive.
type AgentCreatedEvent struct {
	baseEvent
	Agent AgentSnapshot
}

// NewAgentCreatedEvent creates an AgentCreatedEvent.
func NewAgentCreatedEvent(agent AgentSnapshot) AgentCreatedEvent {
	return AgentCreatedEvent{
		baseEvent: newBaseEvent("agent.created"),
		Agent:     agent,
	}
}

// AgentStateEvent is emitted on every agent state transition.
// The assignment engine listens for idle transitions to re-evaluate
// pending tasks, so no polling interval is the sole trigger.
type AgentStateEvent struct {
	baseEvent
	Agent    AgentSnapshot
	Previous string
}

// NewAgentStateEvent creates an AgentStateEvent.
func NewAgentStateEvent(agent AgentSnapshot, previous string) AgentStateEvent {
	return AgentStateEvent{
		baseEvent: newBaseEvent("agent.state"),
		Agent:     agent,
		Previous:  previous,
	}
}

// AgentTerminatedEvent is emitted when an agent is explicitly terminated.
type AgentTerminatedEvent struct {
	baseEvent
	Agent AgentSnapshot
}

// NewAgentTerminatedEvent creates an AgentTerminatedEvent.
func NewAgentTerminatedEvent(agent AgentSnapshot) AgentTerminatedEvent {
	return AgentTerminatedEvent{
		baseEvent: newBaseEvent("agent.terminated"),
		Agent:     agent,
	}
}

// -----------------------------------------------------------------------------
// Queue Events
// -----------------------------------------------------------------------------

// QueueDepthChangedEvent is emitted whenever queue state counts change.
type QueueDepthChangedEvent struct {
	baseEvent
	Pending int
	Claimed int
	Total   int
}

// NewQueueDepthChangedEvent creates a QueueDepthChangedEvent.
func NewQueueDepthChangedEvent(pending, claimed, total int) QueueDepthChangedEvent {
	return QueueDepthChangedEvent{
		baseEvent: newBaseEvent("queue.depth_changed"),
		Pending:   pending,
		Claimed:   claimed,
		Total:     total,
	}
}

// -----------------------------------------------------------------------------
// Verification Events
// -----------------------------------------------------------------------------

// VerificationEvent is emitted when a verification attempt resolves.
type VerificationEvent struct {
	baseEvent
	TaskID        string
	PairID        string
	Status        string // verification status, e.g. "verified", "failed"
	GoalAlignment float64
	Quality       float64
	Confidence    float64
	Attempt       int
}

// NewVerificationEvent creates a VerificationEvent.
func NewVerificationEvent(taskID, pairID, status string, alignment, quality, confidence float64, attempt int) VerificationEvent {
	return VerificationEvent{
		baseEvent:     newBaseEvent("verification.resolved"),
		TaskID:        taskID,
		PairID:        pairID,
		Status:        status,
		GoalAlignment: alignment,
		Quality:       quality,
		Confidence:    confidence,
		Attempt:       attempt,
	}
}

// -----------------------------------------------------------------------------
// Error Events
// -----------------------------------------------------------------------------

// ErrorEvent is emitted for surfaced internal errors that external
// collaborators may want to observe.
type ErrorEvent struct {
	baseEvent
	Source  string // component the error originated in
	TaskID  string // empty when not task-scoped
	Message string
}

// NewErrorEvent creates an ErrorEvent.
func NewErrorEvent(source, taskID, message string) ErrorEvent {
	return ErrorEvent{
		baseEvent: newBaseEvent("error"),
		Source:    source,
		TaskID:    taskID,
		Message:   message,
	}
}
