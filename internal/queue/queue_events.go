package queue

import (
	"sync"
	"time"

	"hivekit/internal/event"
	"hivekit/internal/task"
)

// EventQueue wraps a Queue and publishes events to an event bus
// whenever queue operations occur. Events are published after the
// queue lock is released, so subscribers may call back into the queue.
type EventQueue struct {
	mu  sync.Mutex
	q   *Queue
	bus *event.Bus
}

// NewEventQueue creates an EventQueue that publishes events on the given bus.
func NewEventQueue(q *Queue, bus *event.Bus) *EventQueue {
	return &EventQueue{q: q, bus: bus}
}

// Enqueue adds a task to the pool and publishes a QueueDepthChangedEvent.
func (eq *EventQueue) Enqueue(t *task.Task) error {
	eq.mu.Lock()
	if err := eq.q.Enqueue(t); err != nil {
		eq.mu.Unlock()
		return err
	}
	events := []event.Event{eq.depthEvent()}
	eq.mu.Unlock()

	eq.publish(events)
	return nil
}

// ClaimNext claims the next eligible task and publishes a
// TaskClaimedEvent and a QueueDepthChangedEvent.
func (eq *EventQueue) ClaimNext(agentID string) (*task.Task, error) {
	eq.mu.Lock()
	t, err := eq.q.ClaimNext(agentID)
	if err != nil || t == nil {
		eq.mu.Unlock()
		return nil, err
	}
	events := []event.Event{
		event.NewTaskClaimedEvent(t.ID, agentID),
		eq.depthEvent(),
	}
	eq.mu.Unlock()

	eq.publish(events)
	return t, nil
}

// Claim claims a specific task and publishes a TaskClaimedEvent and a
// QueueDepthChangedEvent.
func (eq *EventQueue) Claim(taskID, agentID string) error {
	eq.mu.Lock()
	if err := eq.q.Claim(taskID, agentID); err != nil {
		eq.mu.Unlock()
		return err
	}
	events := []event.Event{
		event.NewTaskClaimedEvent(taskID, agentID),
		eq.depthEvent(),
	}
	eq.mu.Unlock()

	eq.publish(events)
	return nil
}

// Release returns a claimed task to the pool and publishes
// TaskReleasedEvent and QueueDepthChangedEvent.
func (eq *EventQueue) Release(taskID, reason string) error {
	eq.mu.Lock()
	if err := eq.q.Release(taskID); err != nil {
		eq.mu.Unlock()
		return err
	}
	events := []event.Event{
		event.NewTaskReleasedEvent(taskID, reason),
		eq.depthEvent(),
	}
	eq.mu.Unlock()

	eq.publish(events)
	return nil
}

// Remove deletes a task from the queue and publishes a
// QueueDepthChangedEvent.
func (eq *EventQueue) Remove(taskID string) error {
	eq.mu.Lock()
	if err := eq.q.Remove(taskID); err != nil {
		eq.mu.Unlock()
		return err
	}
	events := []event.Event{eq.depthEvent()}
	eq.mu.Unlock()

	eq.publish(events)
	return nil
}

// ReleaseStale releases claims older than the cutoff, publishing a
// TaskReleasedEvent for each recovered task.
func (eq *EventQueue) ReleaseStale(cutoff time.Time) []string {
	eq.mu.Lock()
	released := eq.q.ReleaseStale(cutoff)
	var events []event.Event
	for _, id := range released {
		events = append(events, event.NewTaskReleasedEvent(id, "stale_claim"))
	}
	if len(released) > 0 {
		events = append(events, eq.depthEvent())
	}
	eq.mu.Unlock()

	eq.publish(events)
	return released
}

// Depth returns the current queue state counts.
func (eq *EventQueue) Depth() Depth {
	return eq.q.Depth()
}

// Pending returns copies of all unclaimed tasks in claim order.
func (eq *EventQueue) Pending() []*task.Task {
	return eq.q.Pending()
}

// ClaimedBy returns the agent holding a task's claim, if any.
func (eq *EventQueue) ClaimedBy(taskID string) (string, bool) {
	return eq.q.ClaimedBy(taskID)
}

// depthEvent builds a QueueDepthChangedEvent with current counts.
// Must be called while eq.mu is held.
func (eq *EventQueue) depthEvent() event.Event {
	d := eq.q.Depth()
	return event.NewQueueDepthChangedEvent(d.Pending, d.Claimed, d.Total)
}

func (eq *EventQueue) publish(events []event.Event) {
	for _, e := range events {
		eq.bus.Publish(e)
	}
}

// Ensure the queue event types satisfy the Event interface at compile time.
var (
	_ event.Event = event.TaskClaimedEvent{}
	_ event.Event = event.TaskReleasedEvent{}
	_ event.Event = event.QueueDepthChangedEvent{}
)
