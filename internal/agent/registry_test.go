package agent

import (
	"math"
	"testing"

	"hivekit/internal/capability"
	"hivekit/internal/errors"
	"hivekit/internal/event"
)

func newTestAgent(name string, kind Kind) *Agent {
	return &Agent{
		Name: name,
		Kind: kind,
		Capabilities: capability.NewSet([]capability.Capability{
			{Name: "coding", Proficiency: 0.6, LearningRate: 0.2},
			{Name: "testing", Proficiency: 0.4, LearningRate: 0.1},
		}),
	}
}

func mustRegister(t *testing.T, r *Registry, a *Agent) *Agent {
	t.Helper()
	registered, err := r.Register(a)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return registered
}

func TestRegisterDefaults(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	registered := mustRegister(t, r, newTestAgent("worker-1", KindWorker))
	if registered.ID == "" {
		t.Error("expected generated ID")
	}
	if registered.State != StateIdle {
		t.Errorf("expected idle state, got %s", registered.State)
	}
	if registered.Energy != 100 {
		t.Errorf("expected full energy, got %g", registered.Energy)
	}
}

func TestRegisterKeepsExplicitEnergy(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	a := newTestAgent("rested", KindWorker)
	a.Energy = 50
	registered := mustRegister(t, r, a)
	if registered.Energy != 50 {
		t.Errorf("expected energy 50, got %g", registered.Energy)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	tests := []struct {
		name  string
		agent *Agent
	}{
		{"nil agent", nil},
		{"empty name", &Agent{Kind: KindWorker}},
		{"unknown kind", &Agent{Name: "x", Kind: Kind("drone")}},
		{"energy above scale", &Agent{Name: "x", Kind: KindWorker, Energy: 150}},
		{"bad capability", &Agent{Name: "x", Kind: KindWorker, Capabilities: capability.Set{
			"c": {Name: "c", Proficiency: 2},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Register(tt.agent); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	a := newTestAgent("first", KindWorker)
	a.ID = "agent-dup"
	mustRegister(t, r, a)

	b := newTestAgent("second", KindWorker)
	b.ID = "agent-dup"
	if _, err := r.Register(b); err == nil {
		t.Error("expected error for duplicate agent ID")
	}
}

func TestSetStateTransitions(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	if err := r.SetState(a.ID, StateWorking); err != nil {
		t.Fatalf("idle -> working failed: %v", err)
	}
	if err := r.SetState(a.ID, StateVerifying); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected working -> verifying to be rejected, got %v", err)
	}
	if err := r.SetState(a.ID, StateIdle); err != nil {
		t.Fatalf("working -> idle failed: %v", err)
	}
	// Same-state transition is a no-op.
	if err := r.SetState(a.ID, StateIdle); err != nil {
		t.Errorf("idle -> idle should be a no-op, got %v", err)
	}
}

func TestSetStateUnknownAgent(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	if err := r.SetState("nope", StateWorking); !errors.Is(err, errors.ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestTerminateRefusesWhileHoldingTasks(t *testing.T) {
	load := map[string]int{}
	r := NewRegistry(nil, nil, func(agentID string) int { return load[agentID] })
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	load[a.ID] = 1
	if err := r.Terminate(a.ID); !errors.Is(err, errors.ErrAgentHoldsTask) {
		t.Errorf("expected ErrAgentHoldsTask, got %v", err)
	}

	load[a.ID] = 0
	if err := r.Terminate(a.ID); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	got, _ := r.Get(a.ID)
	if got.State != StateTerminated {
		t.Errorf("expected terminated, got %s", got.State)
	}

	// Terminating twice reports the agent as already gone.
	if err := r.Terminate(a.ID); !errors.Is(err, errors.ErrAgentTerminated) {
		t.Errorf("expected ErrAgentTerminated, got %v", err)
	}
}

func TestTerminateRefusesBusyAgent(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	r.SetState(a.ID, StateWorking)
	if err := r.Terminate(a.ID); !errors.Is(err, errors.ErrAgentBusy) {
		t.Errorf("expected ErrAgentBusy, got %v", err)
	}
}

func TestRecordOutcomeAppliesLearning(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	r.SetState(a.ID, StateWorking)
	if err := r.RecordOutcome(a.ID, []string{"coding"}, 1.0, true); err != nil {
		t.Fatalf("RecordOutcome failed: %v", err)
	}

	got, _ := r.Get(a.ID)
	// coding: 0.6 + 0.2*(1.0-0.6) = 0.68 with worker boost 1.0.
	if math.Abs(got.Capabilities.Proficiency("coding")-0.68) > 1e-9 {
		t.Errorf("expected coding proficiency 0.68, got %g", got.Capabilities.Proficiency("coding"))
	}
	// testing was not used, so it stays put.
	if got.Capabilities.Proficiency("testing") != 0.4 {
		t.Errorf("expected testing proficiency unchanged, got %g", got.Capabilities.Proficiency("testing"))
	}
	if got.State != StateIdle {
		t.Errorf("expected agent back to idle, got %s", got.State)
	}
	if got.TasksCompleted != 1 {
		t.Errorf("expected 1 completed task, got %d", got.TasksCompleted)
	}
	if got.Energy >= 100 {
		t.Error("expected energy drained after work")
	}
}

func TestRecordOutcomeLearnerBoost(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	worker := mustRegister(t, r, newTestAgent("worker", KindWorker))
	learner := mustRegister(t, r, newTestAgent("learner", KindLearner))

	r.SetState(worker.ID, StateWorking)
	r.SetState(learner.ID, StateWorking)
	r.RecordOutcome(worker.ID, []string{"coding"}, 1.0, true)
	r.RecordOutcome(learner.ID, []string{"coding"}, 1.0, true)

	w, _ := r.Get(worker.ID)
	l, _ := r.Get(learner.ID)
	if l.Capabilities.Proficiency("coding") <= w.Capabilities.Proficiency("coding") {
		t.Errorf("expected learner to improve faster: learner=%g worker=%g",
			l.Capabilities.Proficiency("coding"), w.Capabilities.Proficiency("coding"))
	}
}

func TestRecordOutcomeRequiresActiveWork(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	if err := r.RecordOutcome(a.ID, nil, 0.5, true); !errors.Is(err, errors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition for idle agent, got %v", err)
	}
}

func TestRecoverTick(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))

	r.SetState(a.ID, StateWorking)
	r.RecordOutcome(a.ID, nil, 0.5, true)

	before, _ := r.Get(a.ID)
	r.RecoverTick()
	after, _ := r.Get(a.ID)

	if after.Energy <= before.Energy {
		t.Errorf("expected energy recovery: before=%g after=%g", before.Energy, after.Energy)
	}

	// Busy agents do not recover.
	r.SetState(a.ID, StateWorking)
	busy, _ := r.Get(a.ID)
	r.RecoverTick()
	still, _ := r.Get(a.ID)
	if still.Energy != busy.Energy {
		t.Error("working agent should not recover energy")
	}
}

func TestCandidates(t *testing.T) {
	r := NewRegistry(nil, nil, nil)

	idle := mustRegister(t, r, newTestAgent("idle", KindWorker))
	busy := mustRegister(t, r, newTestAgent("busy", KindWorker))
	r.SetState(busy.ID, StateWorking)

	tired := newTestAgent("tired", KindWorker)
	tired.Energy = 5
	tiredReg := mustRegister(t, r, tired)

	candidates := r.Candidates(10)
	if len(candidates) != 1 || candidates[0].ID != idle.ID {
		ids := make([]string, len(candidates))
		for i, c := range candidates {
			ids[i] = c.Name
		}
		t.Errorf("expected only the idle agent, got %v", ids)
	}

	// The tired agent becomes a candidate once rested.
	for i := 0; i < 3; i++ {
		r.RecoverTick()
	}
	candidates = r.Candidates(10)
	found := false
	for _, c := range candidates {
		if c.ID == tiredReg.ID {
			found = true
		}
	}
	if !found {
		t.Error("expected rested agent to become a candidate")
	}
}

func TestListFilters(t *testing.T) {
	r := NewRegistry(nil, nil, nil)
	mustRegister(t, r, newTestAgent("w1", KindWorker))
	mustRegister(t, r, newTestAgent("w2", KindWorker))
	s := mustRegister(t, r, newTestAgent("s1", KindSpecialist))
	r.SetState(s.ID, StateWorking)

	if got := len(r.List(ListFilter{})); got != 3 {
		t.Errorf("expected 3 agents, got %d", got)
	}
	if got := len(r.List(ListFilter{Kind: KindWorker})); got != 2 {
		t.Errorf("expected 2 workers, got %d", got)
	}
	if got := len(r.List(ListFilter{State: StateWorking})); got != 1 {
		t.Errorf("expected 1 working agent, got %d", got)
	}
}

func TestRegistryPublishesAgentEvents(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus, nil, nil)

	var created, stateChanges, terminated int
	bus.Subscribe("agent.created", func(e event.Event) { created++ })
	bus.Subscribe("agent.state", func(e event.Event) { stateChanges++ })
	bus.Subscribe("agent.terminated", func(e event.Event) { terminated++ })

	a := mustRegister(t, r, newTestAgent("worker-1", KindWorker))
	r.SetState(a.ID, StateWorking)
	r.RecordOutcome(a.ID, nil, 0.5, true)
	r.Terminate(a.ID)

	if created != 1 {
		t.Errorf("expected 1 agent.created event, got %d", created)
	}
	if stateChanges != 2 {
		t.Errorf("expected 2 agent.state events, got %d", stateChanges)
	}
	if terminated != 1 {
		t.Errorf("expected 1 agent.terminated event, got %d", terminated)
	}
}

func TestParseKind(t *testing.T) {
	valid := map[string]Kind{
		"worker":      KindWorker,
		"coordinator": KindCoordinator,
		"specialist":  KindSpecialist,
		"learner":     KindLearner,
	}
	for in, want := range valid {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseKind("queen"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestProfileFor(t *testing.T) {
	if ProfileFor(KindCoordinator).EnergyDrain >= ProfileFor(KindWorker).EnergyDrain {
		t.Error("expected coordinators to spend less energy per task than workers")
	}
	if ProfileFor(KindLearner).LearningBoost <= ProfileFor(KindWorker).LearningBoost {
		t.Error("expected learners to learn faster than workers")
	}
	// Unknown kinds fall back to the worker profile.
	if ProfileFor(Kind("queen")) != ProfileFor(KindWorker) {
		t.Error("expected worker profile for unknown kind")
	}
}
