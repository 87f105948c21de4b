package agent

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hivekit/internal/capability"
	"hivekit/internal/errors"
	"hivekit/internal/event"
	"hivekit/internal/logging"
)

// LoadFunc reports how many non-terminal tasks an agent currently
// holds. The hive wires the task registry's count in here so the agent
// registry can refuse to terminate an agent mid-assignment without
// importing the task package.
type LoadFunc func(agentID string) int

// Registry tracks all agents in the hive. The registry map is guarded
// by one lock; each agent record carries its own, so updates to
// different agents do not contend.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record

	bus    *event.Bus
	logger *logging.Logger
	load   LoadFunc
}

type record struct {
	mu    sync.Mutex
	agent *Agent
}

// NewRegistry creates an empty agent registry. A nil bus disables
// event publication; a nil load function treats every agent as idle
// for termination purposes.
func NewRegistry(bus *event.Bus, logger *logging.Logger, load LoadFunc) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if load == nil {
		load = func(string) int { return 0 }
	}
	return &Registry{
		records: make(map[string]*record),
		bus:     bus,
		logger:  logger.WithComponent("agent-registry"),
		load:    load,
	}
}

// Register validates and adds an agent to the hive. A missing ID is
// generated; a zero energy field starts at full energy; the agent
// enters in idle state.
func (r *Registry) Register(a *Agent) (*Agent, error) {
	if a == nil {
		return nil, errors.NewValidationError("agent", nil, "must not be nil")
	}

	now := time.Now()
	stored := a.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Energy == 0 {
		stored.Energy = 100
	}
	if stored.Capabilities == nil {
		stored.Capabilities = capability.Set{}
	}
	stored.State = StateIdle
	stored.CreatedAt = now
	stored.LastActive = now

	if err := stored.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if _, exists := r.records[stored.ID]; exists {
		r.mu.Unlock()
		return nil, errors.NewValidationError("id", stored.ID, "agent ID already registered")
	}
	r.records[stored.ID] = &record{agent: stored}
	r.mu.Unlock()

	r.logger.Info("agent registered",
		"agent_id", stored.ID,
		"name", stored.Name,
		"kind", stored.Kind.String())
	r.publish(event.NewAgentCreatedEvent(snapshot(stored)))
	return stored.Clone(), nil
}

// Get returns a copy of the agent with the given ID.
func (r *Registry) Get(agentID string) (*Agent, error) {
	rec, err := r.record(agentID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.agent.Clone(), nil
}

// ListFilter selects agents for List.
type ListFilter struct {
	// Kind limits results to agents of this kind. Empty matches all.
	Kind Kind

	// State limits results to agents in this state. Empty matches all.
	State State
}

// List returns agents matching the filter, sorted by registration time.
func (r *Registry) List(filter ListFilter) []*Agent {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	out := make([]*Agent, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		a := rec.agent
		if (filter.Kind == "" || a.Kind == filter.Kind) &&
			(filter.State == "" || a.State == filter.State) {
			out = append(out, a.Clone())
		}
		rec.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Candidates returns agents available for new work: idle, not
// terminated, with at least minEnergy remaining.
func (r *Registry) Candidates(minEnergy float64) []*Agent {
	all := r.List(ListFilter{State: StateIdle})
	out := all[:0]
	for _, a := range all {
		if a.Energy >= minEnergy {
			out = append(out, a)
		}
	}
	return out
}

// SetState transitions an agent to a new state, enforcing the state
// machine.
func (r *Registry) SetState(agentID string, to State) error {
	rec, err := r.record(agentID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	a := rec.agent
	from := a.State
	if from == to {
		rec.mu.Unlock()
		return nil
	}
	if !canTransition(from, to) {
		rec.mu.Unlock()
		return errors.NewAgentError("invalid state transition", errors.ErrInvalidTransition).
			WithAgentID(agentID)
	}
	a.State = to
	a.LastActive = time.Now()
	snap := snapshot(a)
	rec.mu.Unlock()

	r.publish(event.NewAgentStateEvent(snap, from.String()))
	return nil
}

// Terminate removes an agent from the hive. An agent still holding
// assigned tasks cannot be terminated; release or finish its tasks
// first.
func (r *Registry) Terminate(agentID string) error {
	rec, err := r.record(agentID)
	if err != nil {
		return err
	}

	if held := r.load(agentID); held > 0 {
		return errors.NewAgentError("agent still holds assigned tasks", errors.ErrAgentHoldsTask).
			WithAgentID(agentID)
	}

	rec.mu.Lock()
	a := rec.agent
	if a.State.IsTerminal() {
		rec.mu.Unlock()
		return errors.NewAgentError("agent already terminated", errors.ErrAgentTerminated).
			WithAgentID(agentID)
	}
	if !canTransition(a.State, StateTerminated) {
		state := a.State
		rec.mu.Unlock()
		return errors.NewAgentError("agent is busy", errors.ErrAgentBusy).
			WithAgentID(agentID).WithState(state.String())
	}
	a.State = StateTerminated
	a.LastActive = time.Now()
	snap := snapshot(a)
	rec.mu.Unlock()

	r.logger.Info("agent terminated", "agent_id", agentID)
	r.publish(event.NewAgentTerminatedEvent(snap))
	return nil
}

// RecordOutcome applies the result of a finished execution to the
// agent: capability learning on the capabilities the task required,
// energy drain, outcome counters, and the transition back to idle.
func (r *Registry) RecordOutcome(agentID string, used []string, quality float64, success bool) error {
	rec, err := r.record(agentID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	a := rec.agent
	if a.State != StateWorking && a.State != StateVerifying {
		rec.mu.Unlock()
		return errors.NewAgentError("agent has no work to record", errors.ErrInvalidTransition).
			WithAgentID(agentID).WithState(a.State.String())
	}

	profile := ProfileFor(a.Kind)
	for _, name := range used {
		c, ok := a.Capabilities[name]
		if !ok {
			continue
		}
		boosted := c
		boosted.LearningRate = clamp01(c.LearningRate * profile.LearningBoost)
		a.Capabilities[name] = boosted.Learn(quality)
	}

	a.Energy = clampEnergy(a.Energy - profile.EnergyDrain)
	if success {
		a.TasksCompleted++
	} else {
		a.TasksFailed++
	}
	from := a.State
	a.State = StateIdle
	a.LastActive = time.Now()
	snap := snapshot(a)
	rec.mu.Unlock()

	r.logger.Debug("outcome recorded",
		"agent_id", agentID,
		"quality", quality,
		"success", success)
	r.publish(event.NewAgentStateEvent(snap, from.String()))
	return nil
}

// RecoverTick restores energy to all idle agents by their kind's
// recovery rate. The hive calls this on its maintenance interval.
func (r *Registry) RecoverTick() {
	r.mu.RLock()
	recs := make([]*record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	for _, rec := range recs {
		rec.mu.Lock()
		a := rec.agent
		if a.State == StateIdle && a.Energy < 100 {
			a.Energy = clampEnergy(a.Energy + ProfileFor(a.Kind).EnergyRecovery)
		}
		rec.mu.Unlock()
	}
}

// Count returns the number of agents in each state.
func (r *Registry) Count() map[State]int {
	counts := make(map[State]int)
	for _, a := range r.List(ListFilter{}) {
		counts[a.State]++
	}
	return counts
}

func (r *Registry) record(agentID string) (*record, error) {
	r.mu.RLock()
	rec, ok := r.records[agentID]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("agent", agentID)
	}
	return rec, nil
}

func (r *Registry) publish(e event.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

func snapshot(a *Agent) event.AgentSnapshot {
	return event.AgentSnapshot{
		ID:         a.ID,
		Name:       a.Name,
		Kind:       a.Kind.String(),
		State:      a.State.String(),
		Energy:     a.Energy,
		LastActive: a.LastActive,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampEnergy(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
