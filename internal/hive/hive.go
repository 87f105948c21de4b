// Package hive wires the registries, the queue, the assignment engine
// and the verification coordinator into one coordination surface.
package hive

import (
	"context"
	"sync"
	"time"

	"hivekit/internal/agent"
	"hivekit/internal/assign"
	"hivekit/internal/capability"
	"hivekit/internal/errors"
	"hivekit/internal/event"
	"hivekit/internal/logging"
	"hivekit/internal/queue"
	"hivekit/internal/store"
	"hivekit/internal/task"
	"hivekit/internal/verify"
)

// Config holds required dependencies for creating a Hive.
type Config struct {
	// Bus carries all coordination events.
	Bus *event.Bus

	// Dispatcher hands an assigned task to its agent for execution.
	Dispatcher assign.Dispatcher

	// Logger is optional; nil means no logging.
	Logger *logging.Logger

	// Store is optional; nil means in-memory operation only.
	Store store.Store
}

// Hive is the composition root. It owns the lifecycle of the
// assignment engine and the maintenance loop.
type Hive struct {
	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc

	// maintenanceDone is closed when the maintenance goroutine exits.
	maintenanceDone chan struct{}

	interval time.Duration

	bus    *event.Bus
	logger *logging.Logger
	store  store.Store

	tasks       *task.Registry
	agents      *agent.Registry
	caps        *capability.Registry
	queue       *queue.EventQueue
	engine      *assign.Engine
	coordinator *verify.Coordinator
}

// DefaultMaintenanceInterval is how often the hive recovers agent
// energy, releases stale claims and retries deferred verifications.
const DefaultMaintenanceInterval = 30 * time.Second

// NewHive creates a Hive wiring all coordination components together.
func NewHive(cfg Config, opts ...Option) (*Hive, error) {
	if cfg.Bus == nil {
		return nil, errors.New("hive: Bus is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("hive: Dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	hc := &hiveConfig{}
	for _, opt := range opts {
		opt(hc)
	}

	caps, err := capability.NewRegistry(hc.capabilityPatterns)
	if err != nil {
		return nil, err
	}

	tasks := task.NewRegistry(cfg.Bus, logger)
	agents := agent.NewRegistry(cfg.Bus, logger, tasks.AssignedCount)

	// The queue's eligibility check belongs to the engine, which does
	// not exist yet when the queue is built.
	var engine *assign.Engine
	q := queue.New(func(t *task.Task, agentID string) bool {
		return engine.Eligible(t, agentID)
	})
	eq := queue.NewEventQueue(q, cfg.Bus)
	engine = assign.NewEngine(hc.assignConfig, tasks, agents, eq, cfg.Bus, logger, cfg.Dispatcher)

	vcfg := hc.verifyConfig
	if vcfg == (verify.Config{}) {
		vcfg = verify.DefaultConfig()
	}
	if err := vcfg.Validate(); err != nil {
		return nil, err
	}
	coordinator := verify.NewCoordinator(vcfg, tasks, agents, tasks.OpenGate(), cfg.Bus, logger)

	interval := hc.maintenanceInterval
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}

	return &Hive{
		interval:    interval,
		bus:         cfg.Bus,
		logger:      logger.WithComponent("hive"),
		store:       cfg.Store,
		tasks:       tasks,
		agents:      agents,
		caps:        caps,
		queue:       eq,
		engine:      engine,
		coordinator: coordinator,
	}, nil
}

// Tasks returns the task registry.
func (h *Hive) Tasks() *task.Registry { return h.tasks }

// Agents returns the agent registry.
func (h *Hive) Agents() *agent.Registry { return h.agents }

// Queue returns the event-publishing task queue.
func (h *Hive) Queue() *queue.EventQueue { return h.queue }

// Engine returns the assignment engine.
func (h *Hive) Engine() *assign.Engine { return h.engine }

// Verifier returns the verification coordinator.
func (h *Hive) Verifier() *verify.Coordinator { return h.coordinator }

// Capabilities returns the capability catalog.
func (h *Hive) Capabilities() *capability.Registry { return h.caps }

// Start begins event-driven assignment and the maintenance loop.
// Returns an error if the hive is already started.
func (h *Hive) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return errors.New("hive: already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.started = true
	h.maintenanceDone = make(chan struct{})

	h.engine.Start()

	go func() {
		defer close(h.maintenanceDone)
		h.maintenance(ctx)
	}()

	h.logger.Info("hive started", "maintenance_interval", h.interval)
	return nil
}

// Stop stops the maintenance loop and the assignment engine. It is
// idempotent.
func (h *Hive) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return nil
	}

	h.cancel()
	<-h.maintenanceDone
	h.engine.Stop()

	h.started = false
	h.logger.Info("hive stopped")
	return nil
}

// Running returns whether the hive is currently started.
func (h *Hive) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}

// SubmitTask validates a task against the capability catalog, creates
// it and enqueues it for assignment.
func (h *Hive) SubmitTask(ctx context.Context, t *task.Task) (*task.Task, error) {
	for _, req := range t.Required {
		if err := h.caps.Check(req.Name); err != nil {
			return nil, err
		}
	}

	created, err := h.tasks.Create(t)
	if err != nil {
		return nil, err
	}
	if err := h.queue.Enqueue(created); err != nil {
		return nil, err
	}
	h.saveTask(ctx, created.ID)
	return created, nil
}

// SubmitVerifiable submits a task whose completion requires
// independent verification at the given level.
func (h *Hive) SubmitVerifiable(ctx context.Context, t *task.Task, criteria []string, level task.VerificationLevel) (*task.Task, error) {
	t.Verification = &task.VerificationSpec{
		OriginalGoal:    t.Description,
		SuccessCriteria: criteria,
		Level:           level,
	}
	return h.SubmitTask(ctx, t)
}

// OnExecutionResult is the execution collaborator's callback. It
// records the result against the task, updates the executing agent's
// capabilities and energy, and drives the task to its next state:
// re-enqueue on a retryable failure, verification when the task
// carries a verification contract, completion otherwise.
func (h *Hive) OnExecutionResult(ctx context.Context, taskID string, result *task.Result) error {
	t, err := h.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if t.Status == task.StatusCancelled {
		// The executor missed or ignored its cancellation token; the
		// result is discarded.
		h.logger.Info("discarding result for cancelled task", "task_id", taskID)
		return nil
	}

	status, err := h.tasks.SubmitResult(taskID, result)
	if err != nil {
		return err
	}

	if result.AgentID != "" {
		used := make([]string, 0, len(t.Required))
		for _, req := range t.Required {
			used = append(used, req.Name)
		}
		if rerr := h.agents.RecordOutcome(result.AgentID, used, result.Quality, result.Success); rerr != nil {
			h.logger.Warn("failed to record agent outcome",
				"agent_id", result.AgentID,
				"task_id", taskID,
				"error", rerr)
		}
		h.saveAgent(ctx, result.AgentID)
	}

	switch status {
	case task.StatusPending:
		// Failed with retries left; back into the pool.
		retry, gerr := h.tasks.Get(taskID)
		if gerr == nil {
			if qerr := h.queue.Enqueue(retry); qerr != nil {
				h.logger.Warn("failed to re-enqueue retried task", "task_id", taskID, "error", qerr)
			}
		}
	case task.StatusAwaitingVerification:
		h.verify(ctx, taskID)
	}

	h.saveTask(ctx, taskID)
	return nil
}

// verify runs the coordinator on a task awaiting verification. A task
// that cannot be verified right now stays parked; the maintenance loop
// retries it.
func (h *Hive) verify(ctx context.Context, taskID string) {
	report, err := h.coordinator.VerifyTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, errors.ErrVerifierUnavailable) {
			h.logger.Info("verification deferred, no verifier available", "task_id", taskID)
		} else {
			h.logger.Warn("verification failed to run", "task_id", taskID, "error", err)
		}
		return
	}
	h.saveReport(ctx, report)
}

// CancelTask withdraws a task and drops it from the queue. An
// in-progress task has its cancellation token revoked so the executor
// stops cooperatively; any result it still reports is discarded and
// its agent is freed.
func (h *Hive) CancelTask(ctx context.Context, taskID string) error {
	t, err := h.tasks.Get(taskID)
	if err != nil {
		return err
	}
	if err := h.tasks.Cancel(taskID); err != nil {
		return err
	}
	h.queue.Remove(taskID)
	if t.AssignedTo != "" {
		if serr := h.agents.SetState(t.AssignedTo, agent.StateIdle); serr != nil {
			h.logger.Warn("failed to free agent after cancel",
				"agent_id", t.AssignedTo,
				"task_id", taskID,
				"error", serr)
		}
	}
	h.saveTask(ctx, taskID)
	return nil
}

// RegisterAgent adds an agent to the pool and records its capabilities
// in the catalog.
func (h *Hive) RegisterAgent(ctx context.Context, a *agent.Agent) (*agent.Agent, error) {
	for name := range a.Capabilities {
		if err := h.caps.Check(name); err != nil {
			return nil, err
		}
	}

	created, err := h.agents.Register(a)
	if err != nil {
		return nil, err
	}
	for name := range created.Capabilities {
		h.caps.Record(name)
	}
	h.saveAgent(ctx, created.ID)
	return created, nil
}

// TerminateAgent removes an agent that holds no task and forgets its
// capabilities.
func (h *Hive) TerminateAgent(ctx context.Context, agentID string) error {
	a, err := h.agents.Get(agentID)
	if err != nil {
		return err
	}
	if err := h.agents.Terminate(agentID); err != nil {
		return err
	}
	for name := range a.Capabilities {
		h.caps.Forget(name)
	}
	h.saveAgent(ctx, agentID)
	return nil
}

// Pull lets an idle agent claim work directly instead of waiting for
// an assignment pass.
func (h *Hive) Pull(ctx context.Context, agentID string) (*task.Task, error) {
	t, err := h.engine.Pull(ctx, agentID)
	if err != nil || t == nil {
		return t, err
	}
	h.saveTask(ctx, t.ID)
	h.saveAgent(ctx, agentID)
	return t, nil
}

// ResolveReview settles a verification parked for human review.
func (h *Hive) ResolveReview(ctx context.Context, taskID string, accept bool, reason string) error {
	if err := h.coordinator.ResolveReview(taskID, accept, reason); err != nil {
		return err
	}
	h.saveTask(ctx, taskID)
	return nil
}

// HiveStatus is an aggregate snapshot of the hive.
type HiveStatus struct {
	Tasks          task.Counts         `json:"tasks"`
	Agents         map[agent.State]int `json:"agents"`
	Queue          queue.Depth         `json:"queue"`
	Pairs          int                 `json:"pairs"`
	PendingReviews int                 `json:"pending_reviews"`
	Capabilities   []string            `json:"capabilities"`
}

// GetStatus returns an aggregate snapshot of tasks, agents, queue
// depth and verification state.
func (h *Hive) GetStatus() HiveStatus {
	return HiveStatus{
		Tasks:          h.tasks.Counts(),
		Agents:         h.agents.Count(),
		Queue:          h.queue.Depth(),
		Pairs:          len(h.coordinator.Pairs()),
		PendingReviews: len(h.coordinator.PendingReviews()),
		Capabilities:   h.caps.Known(),
	}
}

// maintenance periodically recovers idle agents' energy, releases
// stale queue claims, retries deferred verifications and reruns
// assignment.
func (h *Hive) maintenance(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.agents.RecoverTick()
			h.retryDeferredVerifications(ctx)
			h.engine.Kick(ctx)
		}
	}
}

// retryDeferredVerifications re-attempts verification for tasks that
// are awaiting one but have no parked review.
func (h *Hive) retryDeferredVerifications(ctx context.Context) {
	parked := make(map[string]bool)
	for _, r := range h.coordinator.PendingReviews() {
		parked[r.TaskID] = true
	}

	awaiting := h.tasks.List(task.ListFilter{Status: task.StatusAwaitingVerification})
	for _, t := range awaiting.Tasks {
		if parked[t.ID] {
			continue
		}
		h.verify(ctx, t.ID)
	}
}

func (h *Hive) saveTask(ctx context.Context, taskID string) {
	if h.store == nil {
		return
	}
	t, err := h.tasks.Get(taskID)
	if err != nil {
		return
	}
	if err := h.store.SaveTask(ctx, t); err != nil {
		h.logger.Warn("failed to persist task", "task_id", taskID, "error", err)
	}
}

func (h *Hive) saveAgent(ctx context.Context, agentID string) {
	if h.store == nil {
		return
	}
	a, err := h.agents.Get(agentID)
	if err != nil {
		return
	}
	if err := h.store.SaveAgent(ctx, a); err != nil {
		h.logger.Warn("failed to persist agent", "agent_id", agentID, "error", err)
	}
}

func (h *Hive) saveReport(ctx context.Context, r *verify.Report) {
	if h.store == nil || r == nil {
		return
	}
	if err := h.store.SaveVerification(ctx, r); err != nil {
		h.logger.Warn("failed to persist verification", "task_id", r.TaskID, "error", err)
	}
}
