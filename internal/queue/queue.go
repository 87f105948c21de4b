// Package queue implements the pending-work pool agents pull from.
// Claims are atomic: when several agents race for the same task,
// exactly one wins and the rest see nothing or move on to other tasks.
package queue

import (
	"sync"
	"time"

	"hivekit/internal/errors"
	"hivekit/internal/task"
)

// EligibleFunc decides whether an agent may claim a task. The hive
// wires in a capability check; a nil function admits every agent.
type EligibleFunc func(t *task.Task, agentID string) bool

// entry tracks one queued task and its claim state.
type entry struct {
	task      *task.Task
	claimedBy string
	claimedAt *time.Time
}

// Queue holds tasks waiting for an agent, ordered by priority then age.
// All methods are safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    []string // task IDs, priority descending then created ascending
	eligible EligibleFunc
}

// New creates an empty queue with the given eligibility check.
func New(eligible EligibleFunc) *Queue {
	return &Queue{
		entries:  make(map[string]*entry),
		eligible: eligible,
	}
}

// Enqueue adds a task to the pending pool. The task must carry an ID.
func (q *Queue) Enqueue(t *task.Task) error {
	if t == nil || t.ID == "" {
		return errors.NewValidationError("task", nil, "must carry an ID")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.entries[t.ID]; exists {
		return errors.NewTaskError("task already queued", errors.ErrInvalidInput).
			WithTaskID(t.ID)
	}

	cp := t.Clone()
	q.entries[t.ID] = &entry{task: cp}
	q.insertOrdered(cp)
	return nil
}

// insertOrdered places a task ID into the order slice, keeping higher
// priorities first and older tasks first within a priority. Caller
// holds q.mu.
func (q *Queue) insertOrdered(t *task.Task) {
	pos := len(q.order)
	for i, id := range q.order {
		other := q.entries[id].task
		if t.Priority > other.Priority ||
			(t.Priority == other.Priority && t.CreatedAt.Before(other.CreatedAt)) {
			pos = i
			break
		}
	}
	q.order = append(q.order, "")
	copy(q.order[pos+1:], q.order[pos:])
	q.order[pos] = t.ID
}

// ClaimNext atomically claims the best unclaimed task the agent is
// eligible for: highest priority first, oldest first within a
// priority. Returns nil with no error when nothing is claimable.
func (q *Queue) ClaimNext(agentID string) (*task.Task, error) {
	if agentID == "" {
		return nil, errors.NewValidationError("agent_id", agentID, "must not be empty")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range q.order {
		e := q.entries[id]
		if e.claimedBy != "" {
			continue
		}
		if q.eligible != nil && !q.eligible(e.task, agentID) {
			continue
		}
		now := time.Now()
		e.claimedBy = agentID
		e.claimedAt = &now
		return e.task.Clone(), nil
	}
	return nil, nil
}

// Claim atomically claims a specific task for an agent. Exactly one of
// several racing claims succeeds; the losers get ErrTaskClaimed.
func (q *Queue) Claim(taskID, agentID string) error {
	if agentID == "" {
		return errors.NewValidationError("agent_id", agentID, "must not be empty")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok {
		return errors.NewNotFoundError("task", taskID)
	}
	if e.claimedBy != "" {
		return errors.NewTaskError("task already claimed", errors.ErrTaskClaimed).
			WithTaskID(taskID)
	}
	if q.eligible != nil && !q.eligible(e.task, agentID) {
		return errors.NewTaskError("agent not eligible for task", errors.ErrAgentUnavailable).
			WithTaskID(taskID)
	}
	now := time.Now()
	e.claimedBy = agentID
	e.claimedAt = &now
	return nil
}

// Release returns a claimed task to the unclaimed pool.
func (q *Queue) Release(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok {
		return errors.NewNotFoundError("task", taskID)
	}
	if e.claimedBy == "" {
		return errors.NewTaskError("task is not claimed", errors.ErrInvalidTransition).
			WithTaskID(taskID)
	}
	e.claimedBy = ""
	e.claimedAt = nil
	return nil
}

// ReleaseStale releases tasks claimed before the cutoff whose claim
// was never consumed, and returns their IDs. Used to recover claims
// held by agents that died.
func (q *Queue) ReleaseStale(cutoff time.Time) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var released []string
	for _, id := range q.order {
		e := q.entries[id]
		if e.claimedBy != "" && e.claimedAt != nil && e.claimedAt.Before(cutoff) {
			e.claimedBy = ""
			e.claimedAt = nil
			released = append(released, id)
		}
	}
	return released
}

// Remove deletes a task from the queue entirely, claimed or not.
// Used when a task is cancelled or handed off to execution.
func (q *Queue) Remove(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.entries[taskID]; !ok {
		return errors.NewNotFoundError("task", taskID)
	}
	delete(q.entries, taskID)
	for i, id := range q.order {
		if id == taskID {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
	return nil
}

// ClaimedBy returns the agent holding a task's claim, if any.
func (q *Queue) ClaimedBy(taskID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[taskID]
	if !ok || e.claimedBy == "" {
		return "", false
	}
	return e.claimedBy, true
}

// Depth is a snapshot of queue state counts.
type Depth struct {
	Pending int `json:"pending"`
	Claimed int `json:"claimed"`
	Total   int `json:"total"`
}

// Depth returns the current queue state counts.
func (q *Queue) Depth() Depth {
	q.mu.Lock()
	defer q.mu.Unlock()

	var d Depth
	d.Total = len(q.entries)
	for _, e := range q.entries {
		if e.claimedBy == "" {
			d.Pending++
		} else {
			d.Claimed++
		}
	}
	return d
}

// Pending returns copies of all unclaimed tasks in claim order.
func (q *Queue) Pending() []*task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []*task.Task
	for _, id := range q.order {
		e := q.entries[id]
		if e.claimedBy == "" {
			out = append(out, e.task.Clone())
		}
	}
	return out
}
