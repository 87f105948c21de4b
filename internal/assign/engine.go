package assign

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"hivekit/internal/agent"
	"hivekit/internal/errors"
	"hivekit/internal/event"
	"hivekit/internal/logging"
	"hivekit/internal/queue"
	"hivekit/internal/task"
)

// Default engine tuning.
const (
	// DefaultMinFit is the fit score below which an agent is not
	// eligible for a task at all.
	DefaultMinFit = 0.5

	// DefaultMinEnergy is the energy below which an agent is skipped
	// until it recovers.
	DefaultMinEnergy = 10

	// DefaultStaleClaimTimeout is how long a queue claim may sit
	// unconsumed before it is recovered.
	DefaultStaleClaimTimeout = 2 * time.Minute
)

// Dispatcher hands an assigned task to whatever executes it. Execution
// transport lives outside the hive; implementations must not block.
// The context is the task's cancellation token: it is cancelled when
// the task is cancelled, signalling the executor to stop.
type Dispatcher interface {
	Dispatch(ctx context.Context, t *task.Task, a *agent.Agent) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, t *task.Task, a *agent.Agent) error

// Dispatch calls the function.
func (f DispatcherFunc) Dispatch(ctx context.Context, t *task.Task, a *agent.Agent) error {
	return f(ctx, t, a)
}

// Config tunes the assignment engine.
type Config struct {
	// MinFit is the minimum fit score for eligibility.
	MinFit float64

	// MinEnergy is the minimum agent energy for eligibility.
	MinEnergy float64

	// StaleClaimTimeout bounds how long a queue claim may go unconsumed.
	StaleClaimTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		MinFit:            DefaultMinFit,
		MinEnergy:         DefaultMinEnergy,
		StaleClaimTimeout: DefaultStaleClaimTimeout,
	}
}

// Engine assigns pending tasks to agents. Assignment is event driven:
// a new task or a newly idle agent triggers re-evaluation, so tasks
// never wait on a polling interval alone.
type Engine struct {
	cfg        Config
	tasks      *task.Registry
	agents     *agent.Registry
	queue      *queue.EventQueue
	bus        *event.Bus
	logger     *logging.Logger
	dispatcher Dispatcher

	mu      sync.Mutex  // serializes assignment passes
	rerun   atomic.Bool // a trigger arrived while a pass was running
	subs    []string
	started bool
}

// NewEngine creates an assignment engine. Zero config fields fall back
// to defaults.
func NewEngine(cfg Config, tasks *task.Registry, agents *agent.Registry, q *queue.EventQueue, bus *event.Bus, logger *logging.Logger, dispatcher Dispatcher) *Engine {
	if cfg.MinFit == 0 {
		cfg.MinFit = DefaultMinFit
	}
	if cfg.MinEnergy == 0 {
		cfg.MinEnergy = DefaultMinEnergy
	}
	if cfg.StaleClaimTimeout == 0 {
		cfg.StaleClaimTimeout = DefaultStaleClaimTimeout
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		cfg:        cfg,
		tasks:      tasks,
		agents:     agents,
		queue:      q,
		bus:        bus,
		logger:     logger.WithComponent("assign-engine"),
		dispatcher: dispatcher,
	}
}

// Eligible reports whether an agent may claim a task: fit above zero
// and at or above the configured minimum. A zero fit means a required
// capability is missing or below its minimum, which no MinFit setting
// can waive. The hive wires this into the queue as its eligibility
// check.
func (e *Engine) Eligible(t *task.Task, agentID string) bool {
	a, err := e.agents.Get(agentID)
	if err != nil {
		return false
	}
	fit := Fit(a.Capabilities, t.Required)
	return fit > 0 && fit >= e.cfg.MinFit
}

// Start subscribes the engine to the events that trigger assignment
// passes: new tasks, newly idle agents, and released claims.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	kick := func(event.Event) { e.Kick(context.Background()) }
	e.subs = append(e.subs,
		e.bus.Subscribe("queue.depth_changed", kick),
		e.bus.Subscribe("task.released", kick),
		e.bus.Subscribe("agent.created", kick),
		e.bus.Subscribe("agent.state", func(ev event.Event) {
			se, ok := ev.(event.AgentStateEvent)
			if ok && se.Agent.State != agent.StateIdle.String() {
				return
			}
			e.Kick(context.Background())
		}),
	)
}

// Stop unsubscribes the engine from the event bus.
func (e *Engine) Stop() {
	for _, id := range e.subs {
		e.bus.Unsubscribe(id)
	}
	e.subs = nil

	e.mu.Lock()
	e.started = false
	e.mu.Unlock()
}

// Kick runs assignment passes over the pending queue and returns the
// number of tasks assigned. Passes are serialized: a Kick that arrives
// while one is running (including re-entrant triggers from the
// synchronous event bus) marks the running pass for a re-run instead
// of blocking.
func (e *Engine) Kick(ctx context.Context) int {
	if !e.mu.TryLock() {
		e.rerun.Store(true)
		return 0
	}

	total := 0
	for {
		total += e.pass()
		if !e.rerun.Swap(false) {
			break
		}
	}
	e.mu.Unlock()

	// A trigger can land between the last re-run check and the unlock.
	if e.rerun.Load() {
		total += e.Kick(ctx)
	}
	return total
}

// pass performs one assignment sweep. Caller holds e.mu.
func (e *Engine) pass() int {
	e.queue.ReleaseStale(time.Now().Add(-e.cfg.StaleClaimTimeout))

	assigned := 0
	for _, t := range e.queue.Pending() {
		best := e.pickBest(t)
		if best == nil {
			continue
		}
		if err := e.queue.Claim(t.ID, best.ID); err != nil {
			// Lost a race with a pulling agent; move on.
			continue
		}
		if err := e.commit(t, best); err != nil {
			e.logger.Warn("assignment failed",
				"task_id", t.ID,
				"agent_id", best.ID,
				"error", err)
			continue
		}
		assigned++
	}
	return assigned
}

// Pull claims the best eligible pending task for a specific agent and
// assigns it. This is the work-stealing path: an idle agent asks for
// work instead of waiting to be picked. Returns nil with no error when
// nothing is claimable.
func (e *Engine) Pull(ctx context.Context, agentID string) (*task.Task, error) {
	a, err := e.agents.Get(agentID)
	if err != nil {
		return nil, err
	}
	if !e.hasCapacity(a) {
		return nil, errors.NewAgentError("agent cannot take more work", errors.ErrAgentBusy).
			WithAgentID(agentID).WithState(a.State.String())
	}

	t, err := e.queue.ClaimNext(agentID)
	if err != nil || t == nil {
		return nil, err
	}
	if err := e.commit(t, a); err != nil {
		return nil, err
	}
	return t, nil
}

// commit finalizes a claim: records the assignment, moves the agent to
// working, starts execution, and dispatches the task under its
// cancellation token. The claim is rolled back if any step fails.
func (e *Engine) commit(t *task.Task, a *agent.Agent) error {
	if err := e.tasks.Assign(t.ID, a.ID); err != nil {
		// Task left the pending state (e.g. cancelled); drop it from
		// the queue.
		e.queue.Remove(t.ID)
		return err
	}
	if err := e.agents.SetState(a.ID, agent.StateWorking); err != nil {
		e.tasks.Release(t.ID)
		e.queue.Release(t.ID, "agent_unavailable")
		return err
	}
	if err := e.tasks.Start(t.ID, a.ID); err != nil {
		e.queue.Release(t.ID, "agent_unavailable")
		return err
	}
	e.queue.Remove(t.ID)

	e.logger.Info("task assigned",
		"task_id", t.ID,
		"agent_id", a.ID,
		"fit", Fit(a.Capabilities, t.Required))

	if e.dispatcher != nil {
		if err := e.dispatcher.Dispatch(e.tasks.ExecContext(t.ID), t.Clone(), a.Clone()); err != nil {
			e.logger.Error("dispatch failed", "task_id", t.ID, "error", err)
			e.tasks.Fail(t.ID, "dispatch failed: "+err.Error())
			e.agents.RecordOutcome(a.ID, nil, 0, false)
			return err
		}
	}
	return nil
}

// pickBest returns the best candidate for a task, or nil when no agent
// is eligible. Candidates are ordered by fit descending, then idle
// time descending.
func (e *Engine) pickBest(t *task.Task) *agent.Agent {
	var (
		best    *agent.Agent
		bestFit float64
	)

	for _, a := range e.agents.List(agent.ListFilter{}) {
		if !e.hasCapacity(a) {
			continue
		}
		fit := Fit(a.Capabilities, t.Required)
		if fit == 0 || fit < e.cfg.MinFit {
			continue
		}
		if best == nil || better(fit, a, bestFit, best) {
			best, bestFit = a, fit
		}
	}
	return best
}

// hasCapacity reports whether an agent can accept a task right now:
// idle, rested, and holding no other task. An agent is primary for at
// most one in-flight task at a time, whatever its kind.
func (e *Engine) hasCapacity(a *agent.Agent) bool {
	if a.State != agent.StateIdle {
		return false
	}
	if a.Energy < e.cfg.MinEnergy {
		return false
	}
	return e.tasks.AssignedCount(a.ID) == 0
}

// better reports whether candidate (fit, a) beats the current best.
func better(fit float64, a *agent.Agent, bestFit float64, best *agent.Agent) bool {
	if fit != bestFit {
		return fit > bestFit
	}
	return a.LastActive.Before(best.LastActive)
}
