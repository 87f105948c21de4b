package task

import (
	"fmt"
	"testing"
	"time"

	"hivekit/internal/capability"
	"hivekit/internal/errors"
	"hivekit/internal/event"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, nil)
}

func newTask(desc string, priority Priority) *Task {
	return &Task{
		Description: desc,
		Priority:    priority,
		Required: []capability.Requirement{
			{Name: "testing", MinProficiency: 0.5},
		},
	}
}

func newVerifiableTask(desc string, level VerificationLevel) *Task {
	t := newTask(desc, PriorityMedium)
	t.Verification = &VerificationSpec{
		OriginalGoal:    desc,
		SuccessCriteria: []string{"output addresses the goal"},
		Level:           level,
	}
	return t
}

func mustCreate(t *testing.T, r *Registry, task *Task) *Task {
	t.Helper()
	created, err := r.Create(task)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return created
}

func TestCreateAssignsIDAndPending(t *testing.T) {
	r := newTestRegistry()

	created := mustCreate(t, r, newTask("implement parser", PriorityHigh))
	if created.ID == "" {
		t.Error("expected generated ID")
	}
	if created.Status != StatusPending {
		t.Errorf("expected pending status, got %s", created.Status)
	}
	if created.MaxRetries != defaultMaxRetries {
		t.Errorf("expected default max retries %d, got %d", defaultMaxRetries, created.MaxRetries)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name string
		task *Task
	}{
		{"nil task", nil},
		{"empty description", &Task{Priority: PriorityLow}},
		{"priority out of range", &Task{Description: "x", Priority: Priority(7)}},
		{"bad requirement", &Task{Description: "x", Required: []capability.Requirement{{Name: "y", MinProficiency: 2}}}},
		{"verifiable without goal", &Task{Description: "x", Verification: &VerificationSpec{Level: VerificationBasic}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Create(tt.task); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	r := newTestRegistry()

	task := newTask("first", PriorityLow)
	task.ID = "task-dup"
	mustCreate(t, r, task)

	dup := newTask("second", PriorityLow)
	dup.ID = "task-dup"
	if _, err := r.Create(dup); err == nil {
		t.Error("expected error for duplicate task ID")
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newTask("build feature", PriorityMedium))

	if err := r.Assign(created.ID, "agent-1"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := r.Start(created.ID, "agent-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	landed, err := r.SubmitResult(created.ID, &Result{
		AgentID: "agent-1",
		Success: true,
		Output:  "done",
		Quality: 0.9,
	})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}
	if landed != StatusCompleted {
		t.Errorf("expected completed, got %s", landed)
	}

	got, _ := r.Get(created.ID)
	if got.Progress != 1 {
		t.Errorf("expected progress 1, got %g", got.Progress)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestStartRejectsWrongAgent(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newTask("x", PriorityLow))

	if err := r.Assign(created.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	err := r.Start(created.ID, "agent-2")
	if !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestInvalidTransitions(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newTask("x", PriorityLow))

	// Cannot start a pending task.
	if err := r.Start(created.ID, "agent-1"); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition starting pending task, got %v", err)
	}
	// Cannot submit a result for a pending task.
	if _, err := r.SubmitResult(created.ID, &Result{Success: true}); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition submitting result for pending task, got %v", err)
	}
	// Cannot assign twice.
	if err := r.Assign(created.ID, "agent-1"); err != nil {
		t.Fatal(err)
	}
	if err := r.Assign(created.ID, "agent-2"); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on double assign, got %v", err)
	}
}

func TestUnknownTask(t *testing.T) {
	r := newTestRegistry()
	if _, err := r.Get("nope"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if err := r.Assign("nope", "agent-1"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, errors.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestVerifiableResultAwaitsVerification(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newVerifiableTask("refactor module", VerificationStandard))

	r.Assign(created.ID, "agent-1")
	r.Start(created.ID, "agent-1")

	landed, err := r.SubmitResult(created.ID, &Result{Success: true, Output: "refactored"})
	if err != nil {
		t.Fatalf("SubmitResult failed: %v", err)
	}
	if landed != StatusAwaitingVerification {
		t.Errorf("expected awaiting_verification, got %s", landed)
	}
}

func TestVerificationLevelNoneCompletesDirectly(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newVerifiableTask("quick fix", VerificationNone))

	r.Assign(created.ID, "agent-1")
	r.Start(created.ID, "agent-1")
	landed, err := r.SubmitResult(created.ID, &Result{Success: true})
	if err != nil {
		t.Fatal(err)
	}
	if landed != StatusCompleted {
		t.Errorf("expected completed for level none, got %s", landed)
	}
}

func TestFailureRetriesThenFailsPermanently(t *testing.T) {
	r := newTestRegistry()
	task := newTask("flaky work", PriorityLow)
	task.MaxRetries = 2
	created := mustCreate(t, r, task)

	for attempt := 1; attempt <= 2; attempt++ {
		r.Assign(created.ID, "agent-1")
		r.Start(created.ID, "agent-1")
		landed, err := r.SubmitResult(created.ID, &Result{Success: false, Error: fmt.Sprintf("attempt %d", attempt)})
		if err != nil {
			t.Fatal(err)
		}
		if landed != StatusPending {
			t.Fatalf("attempt %d: expected pending for retry, got %s", attempt, landed)
		}
	}

	r.Assign(created.ID, "agent-1")
	r.Start(created.ID, "agent-1")
	landed, err := r.SubmitResult(created.ID, &Result{Success: false, Error: "final"})
	if err != nil {
		t.Fatal(err)
	}
	if landed != StatusFailed {
		t.Errorf("expected failed after retries exhausted, got %s", landed)
	}

	got, _ := r.Get(created.ID)
	if got.FailureContext != "final" {
		t.Errorf("expected failure context 'final', got %q", got.FailureContext)
	}
}

func TestReleaseReturnsToPending(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newTask("x", PriorityLow))

	r.Assign(created.ID, "agent-1")
	if err := r.Release(created.ID); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	got, _ := r.Get(created.ID)
	if got.Status != StatusPending {
		t.Errorf("expected pending, got %s", got.Status)
	}
	if got.AssignedTo != "" {
		t.Errorf("expected holder cleared, got %s", got.AssignedTo)
	}
	// Release does not consume the retry budget.
	if got.RetryCount != 0 {
		t.Errorf("expected retry count 0, got %d", got.RetryCount)
	}
}

func TestCancelSemantics(t *testing.T) {
	r := newTestRegistry()

	// Pending tasks can be cancelled.
	pending := mustCreate(t, r, newTask("pending", PriorityLow))
	if err := r.Cancel(pending.ID); err != nil {
		t.Errorf("cancel pending failed: %v", err)
	}

	// Assigned tasks can be cancelled.
	assigned := mustCreate(t, r, newTask("assigned", PriorityLow))
	r.Assign(assigned.ID, "agent-1")
	if err := r.Cancel(assigned.ID); err != nil {
		t.Errorf("cancel assigned failed: %v", err)
	}
	got, _ := r.Get(assigned.ID)
	if got.AssignedTo != "" {
		t.Error("expected holder cleared on cancel")
	}

	// In-progress tasks can be cancelled; the cancellation token the
	// executor received is revoked so it stops cooperatively.
	running := mustCreate(t, r, newTask("running", PriorityLow))
	r.Assign(running.ID, "agent-1")
	r.Start(running.ID, "agent-1")
	execCtx := r.ExecContext(running.ID)
	select {
	case <-execCtx.Done():
		t.Fatal("execution context cancelled before task was")
	default:
	}
	if err := r.Cancel(running.ID); err != nil {
		t.Fatalf("cancel in-progress failed: %v", err)
	}
	select {
	case <-execCtx.Done():
	default:
		t.Error("expected execution context revoked on cancel")
	}
	if got, _ := r.Get(running.ID); got.Status != StatusCancelled || got.AssignedTo != "" {
		t.Errorf("expected cancelled and unheld, got %s/%q", got.Status, got.AssignedTo)
	}

	// Tasks under verification cannot be cancelled.
	verifying := mustCreate(t, r, newVerifiableTask("verifying", VerificationBasic))
	r.Assign(verifying.ID, "agent-1")
	r.Start(verifying.ID, "agent-1")
	if _, err := r.SubmitResult(verifying.ID, &Result{AgentID: "agent-1", Success: true, Quality: 0.9}); err != nil {
		t.Fatal(err)
	}
	if err := r.Cancel(verifying.ID); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition cancelling task under verification, got %v", err)
	}

	// Terminal tasks report ErrTaskTerminal.
	if err := r.Cancel(pending.ID); !errors.Is(err, errors.ErrTaskTerminal) {
		t.Errorf("expected ErrTaskTerminal cancelling cancelled task, got %v", err)
	}
}

func TestListOrderingAndPaging(t *testing.T) {
	r := newTestRegistry()

	low := mustCreate(t, r, newTask("low", PriorityLow))
	time.Sleep(time.Millisecond)
	critical := mustCreate(t, r, newTask("critical", PriorityCritical))
	time.Sleep(time.Millisecond)
	highOld := mustCreate(t, r, newTask("high old", PriorityHigh))
	time.Sleep(time.Millisecond)
	highNew := mustCreate(t, r, newTask("high new", PriorityHigh))

	result := r.List(ListFilter{})
	if result.Total != 4 {
		t.Fatalf("expected total 4, got %d", result.Total)
	}
	wantOrder := []string{critical.ID, highOld.ID, highNew.ID, low.ID}
	for i, want := range wantOrder {
		if result.Tasks[i].ID != want {
			t.Errorf("position %d: got %s (%s), want %s", i, result.Tasks[i].ID, result.Tasks[i].Description, want)
		}
	}

	// Paging.
	page := r.List(ListFilter{Limit: 2})
	if len(page.Tasks) != 2 || !page.HasMore {
		t.Errorf("expected 2 tasks with HasMore, got %d (HasMore=%v)", len(page.Tasks), page.HasMore)
	}
	rest := r.List(ListFilter{Limit: 2, Offset: 2})
	if len(rest.Tasks) != 2 || rest.HasMore {
		t.Errorf("expected final 2 tasks without HasMore, got %d (HasMore=%v)", len(rest.Tasks), rest.HasMore)
	}

	// Status filter.
	r.Assign(low.ID, "agent-1")
	assigned := r.List(ListFilter{Status: StatusAssigned})
	if assigned.Total != 1 || assigned.Tasks[0].ID != low.ID {
		t.Errorf("expected only the assigned task, got %d tasks", assigned.Total)
	}
}

func TestGateIsGrantedOnce(t *testing.T) {
	r := newTestRegistry()

	gate := r.OpenGate()
	if gate == nil {
		t.Fatal("expected first OpenGate call to return the gate")
	}
	if r.OpenGate() != nil {
		t.Error("expected second OpenGate call to return nil")
	}
}

func TestGateCompleteAndReject(t *testing.T) {
	r := newTestRegistry()
	gate := r.OpenGate()

	verified := mustCreate(t, r, newVerifiableTask("verified work", VerificationBasic))
	r.Assign(verified.ID, "agent-1")
	r.Start(verified.ID, "agent-1")
	r.SubmitResult(verified.ID, &Result{Success: true, Output: "done"})

	if err := gate.Complete(verified.ID, 0.85); err != nil {
		t.Fatalf("gate.Complete failed: %v", err)
	}
	got, _ := r.Get(verified.ID)
	if got.Status != StatusCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Result.Quality != 0.85 {
		t.Errorf("expected verified quality 0.85, got %g", got.Result.Quality)
	}

	rejected := mustCreate(t, r, newVerifiableTask("rejected work", VerificationBasic))
	r.Assign(rejected.ID, "agent-1")
	r.Start(rejected.ID, "agent-1")
	r.SubmitResult(rejected.ID, &Result{Success: true, Output: "wrong thing"})

	if err := gate.Reject(rejected.ID, "output does not address goal"); err != nil {
		t.Fatalf("gate.Reject failed: %v", err)
	}
	got, _ = r.Get(rejected.ID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.FailureContext == "" {
		t.Error("expected failure context from rejection")
	}
}

func TestGateRejectsNonAwaitingTask(t *testing.T) {
	r := newTestRegistry()
	gate := r.OpenGate()

	created := mustCreate(t, r, newTask("plain", PriorityLow))
	if err := gate.Complete(created.ID, 1); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestAssignedCount(t *testing.T) {
	r := newTestRegistry()

	a := mustCreate(t, r, newTask("a", PriorityLow))
	b := mustCreate(t, r, newTask("b", PriorityLow))
	mustCreate(t, r, newTask("c", PriorityLow))

	r.Assign(a.ID, "agent-1")
	r.Assign(b.ID, "agent-1")
	r.Start(b.ID, "agent-1")

	if got := r.AssignedCount("agent-1"); got != 2 {
		t.Errorf("expected load 2, got %d", got)
	}
	if got := r.AssignedCount("agent-2"); got != 0 {
		t.Errorf("expected load 0, got %d", got)
	}
}

func TestRegistryPublishesEvents(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, nil)

	var created, updated int
	bus.Subscribe("task.created", func(e event.Event) { created++ })
	bus.Subscribe("task.update", func(e event.Event) { updated++ })

	task := mustCreate(t, r, newTask("evented", PriorityLow))
	r.Assign(task.ID, "agent-1")
	r.Start(task.ID, "agent-1")
	r.SubmitResult(task.ID, &Result{Success: true})

	if created != 1 {
		t.Errorf("expected 1 task.created event, got %d", created)
	}
	if updated != 3 {
		t.Errorf("expected 3 task.update events, got %d", updated)
	}
}

func TestEventCarriesFullState(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, nil)

	var last event.TaskSnapshot
	bus.Subscribe("task.update", func(e event.Event) {
		last = e.(event.TaskUpdateEvent).Task
	})

	task := mustCreate(t, r, newTask("snapshot check", PriorityHigh))
	r.Assign(task.ID, "agent-1")

	if last.ID != task.ID || last.Status != "assigned" || last.Priority != "high" {
		t.Errorf("snapshot missing full state: %+v", last)
	}
	if len(last.Assigned) != 1 || last.Assigned[0] != "agent-1" {
		t.Errorf("snapshot missing holder: %v", last.Assigned)
	}
}

func TestUpdateProgress(t *testing.T) {
	r := newTestRegistry()
	created := mustCreate(t, r, newTask("x", PriorityLow))

	r.Assign(created.ID, "agent-1")
	if err := r.UpdateProgress(created.ID, 0.5); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition before start, got %v", err)
	}

	r.Start(created.ID, "agent-1")
	if err := r.UpdateProgress(created.ID, 0.5); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := r.UpdateProgress(created.ID, 1.5); err == nil {
		t.Error("expected error for out-of-range progress")
	}

	got, _ := r.Get(created.ID)
	if got.Progress != 0.5 {
		t.Errorf("expected progress 0.5, got %g", got.Progress)
	}
}
