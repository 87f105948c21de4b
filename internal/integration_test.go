// Package internal contains integration tests that verify the hive
// packages work together correctly. These tests drive the full pipeline
// from submission through assignment, execution results, verification
// and persistence.
package internal

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hivekit/internal/agent"
	"hivekit/internal/assign"
	"hivekit/internal/capability"
	"hivekit/internal/event"
	"hivekit/internal/hive"
	sqlitestore "hivekit/internal/store/sqlite"
	"hivekit/internal/task"
)

// dispatchRecorder captures who each task was handed to.
type dispatchRecorder struct {
	mu    sync.Mutex
	tasks map[string]string
}

func newDispatchRecorder() *dispatchRecorder {
	return &dispatchRecorder{tasks: make(map[string]string)}
}

func (d *dispatchRecorder) Dispatch(_ context.Context, t *task.Task, a *agent.Agent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks[t.ID] = a.ID
	return nil
}

func (d *dispatchRecorder) agentFor(taskID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tasks[taskID]
}

// TestEventBusIntegration verifies that hive operations publish the
// events downstream consumers subscribe to.
func TestEventBusIntegration(t *testing.T) {
	bus := event.NewBus()

	var mu sync.Mutex
	received := make(map[string]int)
	for _, topic := range []string{
		"task.created",
		"task.update",
		"agent.created",
		"agent.state",
		"queue.depth_changed",
		"verification.resolved",
	} {
		topic := topic
		bus.Subscribe(topic, func(event.Event) {
			mu.Lock()
			received[topic]++
			mu.Unlock()
		})
	}

	h, err := hive.NewHive(hive.Config{
		Bus:        bus,
		Dispatcher: newDispatchRecorder(),
	})
	if err != nil {
		t.Fatalf("NewHive failed: %v", err)
	}

	ctx := context.Background()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	for _, name := range []string{"alpha", "beta"} {
		if _, err := h.RegisterAgent(ctx, &agent.Agent{Name: name, Kind: agent.KindWorker}); err != nil {
			t.Fatalf("RegisterAgent failed: %v", err)
		}
	}

	created, err := h.SubmitVerifiable(ctx,
		&task.Task{Description: "implement the parser module for configuration files"},
		nil, task.VerificationStandard)
	if err != nil {
		t.Fatalf("SubmitVerifiable failed: %v", err)
	}

	assigned, err := h.Tasks().Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	err = h.OnExecutionResult(ctx, created.ID, &task.Result{
		TaskID:  created.ID,
		AgentID: assigned.AssignedTo,
		Success: true,
		Output:  "Implemented the parser module; configuration files now parse with tests.",
		Quality: 0.9,
	})
	if err != nil {
		t.Fatalf("OnExecutionResult failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received["task.created"] != 1 {
		t.Errorf("task.created events = %d, want 1", received["task.created"])
	}
	if received["agent.created"] != 2 {
		t.Errorf("agent.created events = %d, want 2", received["agent.created"])
	}
	if received["verification.resolved"] != 1 {
		t.Errorf("verification.resolved events = %d, want 1", received["verification.resolved"])
	}
	for _, topic := range []string{"task.update", "agent.state", "queue.depth_changed"} {
		if received[topic] == 0 {
			t.Errorf("expected at least one %s event", topic)
		}
	}
}

// TestFullPipelineWithPersistence drives submission, assignment,
// execution, cross-verification and completion through a real sqlite
// store, then reads the recorded state back.
func TestFullPipelineWithPersistence(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hive.db")
	st, err := sqlitestore.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	recorder := newDispatchRecorder()
	h, err := hive.NewHive(hive.Config{
		Bus:        event.NewBus(),
		Dispatcher: recorder,
		Store:      st,
	})
	if err != nil {
		t.Fatalf("NewHive failed: %v", err)
	}
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer h.Stop()

	builder, err := h.RegisterAgent(ctx, &agent.Agent{
		Name: "builder",
		Kind: agent.KindSpecialist,
		Capabilities: capability.Set{
			"parsing": {Name: "parsing", Proficiency: 0.8, LearningRate: 0.2},
		},
	})
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if _, err := h.RegisterAgent(ctx, &agent.Agent{Name: "checker", Kind: agent.KindWorker}); err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	created, err := h.SubmitVerifiable(ctx, &task.Task{
		Description: "implement the parser module for configuration files",
		Priority:    task.PriorityHigh,
		Required:    []capability.Requirement{{Name: "parsing", MinProficiency: 0.5}},
	}, []string{"parser handles configuration files"}, task.VerificationStandard)
	if err != nil {
		t.Fatalf("SubmitVerifiable failed: %v", err)
	}

	// The capable specialist gets the task, not the plain worker.
	if got := recorder.agentFor(created.ID); got != builder.ID {
		t.Fatalf("task dispatched to %q, want %q", got, builder.ID)
	}

	err = h.OnExecutionResult(ctx, created.ID, &task.Result{
		TaskID:   created.ID,
		AgentID:  builder.ID,
		Success:  true,
		Output:   "Implemented the parser module; the parser handles configuration files with tests.",
		Quality:  0.9,
		Duration: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("OnExecutionResult failed: %v", err)
	}

	done, err := h.Tasks().Get(created.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if done.Status != task.StatusCompleted {
		t.Fatalf("task status = %v, want completed", done.Status)
	}

	// Stored task reflects the final state.
	stored, err := st.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored.Status != task.StatusCompleted {
		t.Errorf("stored task status = %v, want completed", stored.Status)
	}

	// The verification report was recorded for audit.
	reports, err := st.ListVerifications(ctx, created.ID)
	if err != nil {
		t.Fatalf("ListVerifications failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 verification report, got %d", len(reports))
	}
	if reports[0].VerifierID == builder.ID {
		t.Error("primary agent must not verify its own work")
	}

	// The executing agent learned from the accepted result.
	after, err := st.GetAgent(ctx, builder.ID)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if after.TasksCompleted != 1 {
		t.Errorf("stored TasksCompleted = %d, want 1", after.TasksCompleted)
	}
	if got := after.Capabilities.Proficiency("parsing"); got <= 0.8 {
		t.Errorf("stored proficiency = %v, want above 0.8", got)
	}
}

// TestWorkStealingAcrossAgents covers the pull path: an idle agent
// claims queued work the event-driven pass could not place.
func TestWorkStealingAcrossAgents(t *testing.T) {
	recorder := newDispatchRecorder()
	h, err := hive.NewHive(hive.Config{
		Bus:        event.NewBus(),
		Dispatcher: recorder,
	})
	if err != nil {
		t.Fatalf("NewHive failed: %v", err)
	}
	ctx := context.Background()

	// Not started: nothing reacts to events, so the task stays queued.
	created, err := h.SubmitTask(ctx, &task.Task{Description: "waiting work"})
	if err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}

	a, err := h.RegisterAgent(ctx, &agent.Agent{Name: "thief", Kind: agent.KindWorker})
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	pulled, err := h.Pull(ctx, a.ID)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if pulled.ID != created.ID {
		t.Errorf("pulled task %q, want %q", pulled.ID, created.ID)
	}
	if pulled.Status != task.StatusInProgress {
		t.Errorf("pulled task status = %v, want in_progress", pulled.Status)
	}
	if got := recorder.agentFor(created.ID); got != a.ID {
		t.Errorf("task dispatched to %q, want %q", got, a.ID)
	}
}

var _ assign.Dispatcher = (*dispatchRecorder)(nil)
