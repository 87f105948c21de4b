package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hivekit/internal/errors"
	"hivekit/internal/event"
	"hivekit/internal/logging"
)

// Default maximum execution retries for failed tasks.
const defaultMaxRetries = 2

// Registry is the authoritative record of all tasks. It owns every
// status transition and rejects illegal ones. All methods are safe for
// concurrent use.
//
// Events are published after the internal lock is released, so
// subscribers may call back into the registry.
type Registry struct {
	mu    sync.Mutex
	tasks map[string]*Task
	order []string // task IDs in insertion order

	bus    *event.Bus
	logger *logging.Logger

	gateOnce sync.Once
	gate     *Gate

	execMu sync.Mutex
	execs  map[string]execution
}

// execution is the cancellation token for one running task.
type execution struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRegistry creates an empty task registry. A nil bus disables event
// publication; a nil logger falls back to a no-op logger.
func NewRegistry(bus *event.Bus, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		tasks:  make(map[string]*Task),
		bus:    bus,
		logger: logger.WithComponent("task-registry"),
		execs:  make(map[string]execution),
	}
}

// Create validates and registers a new task. The task enters the
// registry in pending status. A missing ID is generated; missing
// MaxRetries gets the default.
func (r *Registry) Create(t *Task) (*Task, error) {
	if t == nil {
		return nil, errors.NewValidationError("task", nil, "must not be nil")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	stored := t.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Status = StatusPending
	stored.AssignedTo = ""
	stored.Progress = 0
	if stored.MaxRetries == 0 {
		stored.MaxRetries = defaultMaxRetries
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.mu.Lock()
	if _, exists := r.tasks[stored.ID]; exists {
		r.mu.Unlock()
		return nil, errors.NewValidationError("id", stored.ID, "task ID already registered")
	}
	r.tasks[stored.ID] = stored
	r.order = append(r.order, stored.ID)
	snap := snapshot(stored)
	r.mu.Unlock()

	r.logger.Info("task created",
		"task_id", stored.ID,
		"priority", stored.Priority.String(),
		"verifiable", stored.Verifiable())
	r.publish(event.NewTaskCreatedEvent(snap))
	return stored.Clone(), nil
}

// Get returns a copy of the task with the given ID.
func (r *Registry) Get(taskID string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, errors.NewNotFoundError("task", taskID)
	}
	return t.Clone(), nil
}

// ListFilter selects and pages tasks for List.
type ListFilter struct {
	// Status limits results to tasks in this status. Empty matches all.
	Status Status

	// AssignedTo limits results to tasks held by this agent.
	AssignedTo string

	// Limit caps the number of returned tasks. Zero means no cap.
	Limit int

	// Offset skips this many tasks after sorting.
	Offset int
}

// ListResult is a page of tasks plus paging metadata.
type ListResult struct {
	Tasks   []*Task
	Total   int
	HasMore bool
}

// List returns tasks matching the filter, sorted by priority descending
// then creation time ascending.
func (r *Registry) List(filter ListFilter) ListResult {
	r.mu.Lock()

	matched := make([]*Task, 0, len(r.tasks))
	for _, id := range r.order {
		t := r.tasks[id]
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]*Task, 0, end-start)
	for _, t := range matched[start:end] {
		page = append(page, t.Clone())
	}
	r.mu.Unlock()

	return ListResult{
		Tasks:   page,
		Total:   total,
		HasMore: end < total,
	}
}

// Assign moves a pending task to assigned status, recording the holder.
func (r *Registry) Assign(taskID, agentID string) error {
	if agentID == "" {
		return errors.NewValidationError("agent_id", agentID, "must not be empty")
	}
	return r.transition(taskID, StatusAssigned, func(t *Task) error {
		now := time.Now()
		t.AssignedTo = agentID
		t.AssignedAt = &now
		return nil
	})
}

// Start moves an assigned task to in_progress and opens its
// cancellation token. Only the holding agent may start the task.
func (r *Registry) Start(taskID, agentID string) error {
	err := r.transition(taskID, StatusInProgress, func(t *Task) error {
		if t.AssignedTo != agentID {
			return errors.NewTaskError("task is held by another agent", errors.ErrInvalidTransition).
				WithTaskID(taskID).WithStatus(t.Status.String())
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.beginExec(taskID)
	return nil
}

// Release returns an assigned or in-progress task to pending, clearing
// the holder. The execution retry budget is not consumed.
func (r *Registry) Release(taskID string) error {
	err := r.transition(taskID, StatusPending, func(t *Task) error {
		t.AssignedTo = ""
		t.AssignedAt = nil
		t.Progress = 0
		return nil
	})
	if err != nil {
		return err
	}
	r.endExec(taskID)
	return nil
}

// UpdateProgress records execution progress for an in-progress task.
func (r *Registry) UpdateProgress(taskID string, progress float64) error {
	if progress < 0 || progress > 1 {
		return errors.NewValidationError("progress", progress, "must be between 0 and 1")
	}

	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}
	if t.Status != StatusInProgress {
		status := t.Status
		r.mu.Unlock()
		return errors.NewTaskError("cannot report progress", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}
	t.Progress = progress
	t.UpdatedAt = time.Now()
	snap := snapshot(t)
	r.mu.Unlock()

	r.publish(event.NewTaskUpdateEvent(snap, ""))
	return nil
}

// SubmitResult records the execution outcome for an in-progress task.
// Verifiable tasks move to awaiting_verification; plain successful
// results complete the task; failed results consume a retry or fail
// the task permanently. Returns the status the task landed in.
func (r *Registry) SubmitResult(taskID string, result *Result) (Status, error) {
	if result == nil {
		return "", errors.NewValidationError("result", nil, "must not be nil")
	}

	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return "", errors.NewNotFoundError("task", taskID)
	}
	if t.Status != StatusInProgress {
		status := t.Status
		r.mu.Unlock()
		return "", errors.NewTaskError("cannot submit result", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}

	previous := t.Status
	stored := result.Clone()
	stored.TaskID = taskID
	if stored.ProducedAt.IsZero() {
		stored.ProducedAt = time.Now()
	}
	t.Result = stored
	t.UpdatedAt = time.Now()

	switch {
	case !result.Success:
		r.failLocked(t, result.Error)
	case t.Verifiable():
		t.Status = StatusAwaitingVerification
	default:
		r.completeLocked(t)
	}
	landed := t.Status
	snap := snapshot(t)
	r.mu.Unlock()
	r.endExec(taskID)

	r.logger.Info("execution result recorded",
		"task_id", taskID,
		"success", result.Success,
		"status", landed.String())
	r.publish(event.NewTaskUpdateEvent(snap, previous.String()))
	return landed, nil
}

// Fail records an execution failure. If retries remain the task returns
// to pending for another attempt; otherwise it fails permanently.
func (r *Registry) Fail(taskID, failureContext string) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}
	if t.Status != StatusAssigned && t.Status != StatusInProgress {
		status := t.Status
		r.mu.Unlock()
		return errors.NewTaskError("cannot fail task", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}

	previous := t.Status
	r.failLocked(t, failureContext)
	t.UpdatedAt = time.Now()
	landed := t.Status
	snap := snapshot(t)
	r.mu.Unlock()
	r.endExec(taskID)

	r.logger.Warn("task execution failed",
		"task_id", taskID,
		"status", landed.String(),
		"context", failureContext)
	r.publish(event.NewTaskUpdateEvent(snap, previous.String()))
	return nil
}

// Cancel withdraws a task. Pending and assigned tasks are withdrawn
// immediately. An in-progress task is marked cancelled and its
// cancellation token revoked, signalling the executor to stop; any
// result it still reports is discarded. Tasks under verification or
// already settled cannot be cancelled.
func (r *Registry) Cancel(taskID string) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}
	switch t.Status {
	case StatusPending, StatusAssigned, StatusInProgress:
	default:
		status := t.Status
		r.mu.Unlock()
		if status.IsTerminal() {
			return errors.NewTaskError("task already in a terminal state", errors.ErrTaskTerminal).
				WithTaskID(taskID).WithStatus(status.String())
		}
		return errors.NewTaskError("cannot cancel a task under verification", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}

	previous := t.Status
	now := time.Now()
	t.Status = StatusCancelled
	t.AssignedTo = ""
	t.AssignedAt = nil
	t.CompletedAt = &now
	t.UpdatedAt = now
	snap := snapshot(t)
	r.mu.Unlock()
	r.endExec(taskID)

	r.logger.Info("task cancelled", "task_id", taskID, "previous", previous.String())
	r.publish(event.NewTaskUpdateEvent(snap, previous.String()))
	return nil
}

// ExecContext returns the cancellation token for an in-progress task.
// The assignment engine hands it to the dispatcher; cancelling the
// task cancels the context. Tasks that are not executing get an
// already-cancelled context.
func (r *Registry) ExecContext(taskID string) context.Context {
	r.execMu.Lock()
	defer r.execMu.Unlock()

	if e, ok := r.execs[taskID]; ok {
		return e.ctx
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// beginExec opens the cancellation token for a task entering execution.
func (r *Registry) beginExec(taskID string) {
	ctx, cancel := context.WithCancel(context.Background())

	r.execMu.Lock()
	if old, ok := r.execs[taskID]; ok {
		old.cancel()
	}
	r.execs[taskID] = execution{ctx: ctx, cancel: cancel}
	r.execMu.Unlock()
}

// endExec revokes and discards a task's cancellation token.
func (r *Registry) endExec(taskID string) {
	r.execMu.Lock()
	if e, ok := r.execs[taskID]; ok {
		e.cancel()
		delete(r.execs, taskID)
	}
	r.execMu.Unlock()
}

// Counts is a snapshot of registry state counts.
type Counts struct {
	Total                int `json:"total"`
	Pending              int `json:"pending"`
	Assigned             int `json:"assigned"`
	InProgress           int `json:"in_progress"`
	AwaitingVerification int `json:"awaiting_verification"`
	Completed            int `json:"completed"`
	Failed               int `json:"failed"`
	Cancelled            int `json:"cancelled"`
}

// Counts returns the current number of tasks in each status.
func (r *Registry) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c Counts
	c.Total = len(r.tasks)
	for _, t := range r.tasks {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusAssigned:
			c.Assigned++
		case StatusInProgress:
			c.InProgress++
		case StatusAwaitingVerification:
			c.AwaitingVerification++
		case StatusCompleted:
			c.Completed++
		case StatusFailed:
			c.Failed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// AssignedCount returns the number of non-terminal tasks held by the
// given agent. The assignment engine uses it as the capacity check.
func (r *Registry) AssignedCount(agentID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, t := range r.tasks {
		if t.AssignedTo == agentID && !t.Status.IsTerminal() {
			count++
		}
	}
	return count
}

// transition performs a guarded status change with an optional mutation
// applied after the guard passes.
func (r *Registry) transition(taskID string, to Status, mutate func(*Task) error) error {
	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}
	if !CanTransition(t.Status, to) {
		status := t.Status
		r.mu.Unlock()
		return errors.NewTaskError("invalid status transition", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}
	if mutate != nil {
		if err := mutate(t); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	previous := t.Status
	t.Status = to
	t.UpdatedAt = time.Now()
	snap := snapshot(t)
	r.mu.Unlock()

	r.publish(event.NewTaskUpdateEvent(snap, previous.String()))
	return nil
}

// failLocked applies retry-aware failure handling. Caller holds r.mu.
func (r *Registry) failLocked(t *Task, failureContext string) {
	t.RetryCount++
	t.FailureContext = failureContext
	if t.RetryCount <= t.MaxRetries {
		t.Status = StatusPending
		t.AssignedTo = ""
		t.AssignedAt = nil
		t.Progress = 0
		return
	}
	now := time.Now()
	t.Status = StatusFailed
	t.CompletedAt = &now
}

// completeLocked marks a task completed. Caller holds r.mu.
func (r *Registry) completeLocked(t *Task) {
	now := time.Now()
	t.Status = StatusCompleted
	t.Progress = 1
	t.CompletedAt = &now
}

func (r *Registry) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// snapshot builds an event snapshot from a task. Caller holds r.mu when
// the task is a registry pointer.
func snapshot(t *Task) event.TaskSnapshot {
	var assigned []string
	if t.AssignedTo != "" {
		assigned = []string{t.AssignedTo}
	}
	return event.TaskSnapshot{
		ID:          t.ID,
		Description: t.Description,
		Priority:    t.Priority.String(),
		Status:      t.Status.String(),
		Assigned:    assigned,
		Progress:    t.Progress,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}
