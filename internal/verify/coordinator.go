package verify

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"hivekit/internal/agent"
	"hivekit/internal/errors"
	"hivekit/internal/event"
	"hivekit/internal/logging"
	"hivekit/internal/task"
)

// Default coordinator tuning. Goal alignment and quality carry their
// own bars for the verified verdict; the review threshold applies to
// the combined confidence score.
const (
	DefaultVerifiedThreshold = 0.8
	DefaultQualityThreshold  = 0.7
	DefaultPartialThreshold  = 0.5
	DefaultReviewThreshold   = 0.4

	// DefaultAgreementTolerance is how far two comprehensive passes may
	// disagree before the attempt is inconclusive.
	DefaultAgreementTolerance = 0.15

	// DefaultMaxAttempts bounds inconclusive retries. After the last
	// attempt the task goes to human review.
	DefaultMaxAttempts = 2

	// DefaultTimeoutMultiplier scales a task's estimated duration into
	// its verification timeout.
	DefaultTimeoutMultiplier = 3

	// DefaultTimeout applies when a task carries no estimate.
	DefaultTimeout = 30 * time.Second
)

// Config tunes the verification coordinator.
type Config struct {
	// VerifiedThreshold is the goal alignment at or above which a
	// result can be verified, provided quality also clears its bar.
	VerifiedThreshold float64

	// QualityThreshold is the quality a result must reach to be
	// verified outright.
	QualityThreshold float64

	// PartialThreshold is the goal alignment at or above which a
	// result that misses the verified bar is still partially verified.
	PartialThreshold float64

	// ReviewThreshold is the confidence floor. A result that would
	// otherwise fail on scores alone is parked for human review when
	// its confidence sits below this floor.
	ReviewThreshold float64

	// AgreementTolerance bounds how far two comprehensive passes may
	// disagree.
	AgreementTolerance float64

	// MaxAttempts bounds inconclusive retries.
	MaxAttempts int

	// TimeoutMultiplier scales the task's estimated duration into the
	// verification timeout.
	TimeoutMultiplier int

	// Timeout applies when a task has no duration estimate.
	Timeout time.Duration
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		VerifiedThreshold:  DefaultVerifiedThreshold,
		QualityThreshold:   DefaultQualityThreshold,
		PartialThreshold:   DefaultPartialThreshold,
		ReviewThreshold:    DefaultReviewThreshold,
		AgreementTolerance: DefaultAgreementTolerance,
		MaxAttempts:        DefaultMaxAttempts,
		TimeoutMultiplier:  DefaultTimeoutMultiplier,
		Timeout:            DefaultTimeout,
	}
}

// Validate checks that the thresholds are ordered and in range.
func (c Config) Validate() error {
	thresholds := []struct {
		name  string
		value float64
	}{
		{"verified_threshold", c.VerifiedThreshold},
		{"quality_threshold", c.QualityThreshold},
		{"partial_threshold", c.PartialThreshold},
		{"review_threshold", c.ReviewThreshold},
	}
	for _, th := range thresholds {
		if th.value <= 0 || th.value > 1 {
			return errors.NewValidationError(th.name, th.value, "must be between 0 and 1")
		}
	}
	if c.PartialThreshold >= c.VerifiedThreshold {
		return errors.NewValidationError("partial_threshold", c.PartialThreshold,
			"must be below verified_threshold")
	}
	if c.ReviewThreshold >= c.PartialThreshold {
		return errors.NewValidationError("review_threshold", c.ReviewThreshold,
			"must be below partial_threshold")
	}
	if c.AgreementTolerance < 0 || c.AgreementTolerance > 1 {
		return errors.NewValidationError("agreement_tolerance", c.AgreementTolerance, "must be between 0 and 1")
	}
	if c.MaxAttempts < 1 {
		return errors.NewValidationError("max_attempts", c.MaxAttempts, "must be at least 1")
	}
	return nil
}

// Coordinator runs independent verification of task results. It holds
// the registry's completion gate: only verification can move a task
// from awaiting_verification to completed.
type Coordinator struct {
	cfg    Config
	tasks  *task.Registry
	agents *agent.Registry
	gate   *task.Gate
	pairs  *pairSet
	bus    *event.Bus
	logger *logging.Logger

	// strategies resolves a verification level to the checks run for
	// it. Defaults to the built-in suite; see UseStrategies.
	strategies func(task.VerificationLevel) []Strategy

	mu      sync.Mutex
	reviews map[string]*Report
}

// NewCoordinator creates a verification coordinator holding the task
// registry's completion gate.
func NewCoordinator(cfg Config, tasks *task.Registry, agents *agent.Registry, gate *task.Gate, bus *event.Bus, logger *logging.Logger) *Coordinator {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Coordinator{
		cfg:        cfg,
		tasks:      tasks,
		agents:     agents,
		gate:       gate,
		pairs:      newPairSet(),
		bus:        bus,
		logger:     logger.WithComponent("verify-coordinator"),
		strategies: strategiesFor,
		reviews:    make(map[string]*Report),
	}
}

// UseStrategies replaces the built-in strategy suite. The built-in
// checks are deterministic, so two comprehensive passes over the same
// input always agree; callers plugging in verifier agents or other
// non-deterministic judges install them here, and the agreement
// tolerance then catches genuine disagreement between passes.
func (c *Coordinator) UseStrategies(fn func(task.VerificationLevel) []Strategy) {
	if fn != nil {
		c.strategies = fn
	}
}

// VerifyTask verifies a task awaiting verification and resolves it:
// accepted verdicts complete the task, failed verdicts reject it, and
// anything the coordinator cannot settle goes to human review. Returns
// the final report.
func (c *Coordinator) VerifyTask(ctx context.Context, taskID string) (*Report, error) {
	t, err := c.tasks.Get(taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusAwaitingVerification {
		return nil, errors.NewVerificationError("task is not awaiting verification", errors.ErrInvalidTransition).
			WithTaskID(taskID)
	}
	input, err := NewInput(t)
	if err != nil {
		return nil, err
	}

	primary := t.Result.AgentID
	if primary == "" {
		primary = t.AssignedTo
	}

	var report *Report
	used := map[string]bool{}
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		verifier, verr := c.selectVerifier(primary, used)
		if verr != nil {
			if report != nil {
				// Out of fresh verifiers mid-retry; settle with what
				// we have.
				break
			}
			return nil, verr
		}
		used[verifier.ID] = true

		pair, perr := c.pairs.get(primary, verifier.ID)
		if perr != nil {
			return nil, perr
		}

		if serr := c.agents.SetState(verifier.ID, agent.StateVerifying); serr != nil {
			continue
		}
		report = c.runAttempt(ctx, t, input, pair, attempt)
		c.agents.SetState(verifier.ID, agent.StateIdle)

		if report.Status != StatusInconclusive {
			pair.RecordOutcome(report.Status.Accepted())
			break
		}
		c.logger.Info("verification inconclusive",
			"task_id", taskID,
			"attempt", attempt,
			"confidence", report.Confidence)
	}

	if report == nil {
		return nil, errors.NewVerificationError("no verifier could run", errors.ErrVerifierUnavailable).
			WithTaskID(taskID)
	}
	// Retries exhausted without a conclusive verdict.
	if report.Status == StatusInconclusive {
		report.Status = StatusRequiresReview
	}

	if err := c.resolve(taskID, report); err != nil {
		return nil, err
	}

	c.publish(event.NewVerificationEvent(taskID, report.PairID, report.Status.String(),
		report.GoalAlignment, report.Quality, report.Confidence, report.Attempt))
	c.logger.Info("verification resolved",
		"task_id", taskID,
		"status", report.Status.String(),
		"confidence", report.Confidence,
		"attempt", report.Attempt)
	return report, nil
}

// runAttempt executes one verification attempt under the task's
// timeout. A timed-out attempt is inconclusive.
func (c *Coordinator) runAttempt(ctx context.Context, t *task.Task, input Input, pair *Pair, attempt int) *Report {
	timeout := c.cfg.Timeout
	if t.EstimatedDuration > 0 {
		timeout = t.EstimatedDuration * time.Duration(c.cfg.TimeoutMultiplier)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	report := &Report{
		TaskID:     t.ID,
		PairID:     pair.ID(),
		VerifierID: pair.VerifierID(),
		Attempt:    attempt,
	}

	type outcome struct {
		alignment, quality, confidence float64
		discrepancies                  []Discrepancy
		agreed                         bool
	}
	done := make(chan outcome, 1)
	go func() {
		level := t.Verification.Level
		a1, q1, d1 := c.runStrategies(level, input)
		res := outcome{alignment: a1, quality: q1, confidence: harmonicMean(a1, q1), discrepancies: d1, agreed: true}

		// Comprehensive verification runs the whole suite twice and
		// requires the two passes to agree.
		if level == task.VerificationComprehensive {
			a2, q2, d2 := c.runStrategies(level, input)
			c2 := harmonicMean(a2, q2)
			if math.Abs(res.confidence-c2) > c.cfg.AgreementTolerance {
				res.agreed = false
			}
			res.alignment = (a1 + a2) / 2
			res.quality = (q1 + q2) / 2
			res.confidence = (res.confidence + c2) / 2
			if len(d2) > len(d1) {
				res.discrepancies = d2
			}
		}
		done <- res
	}()

	select {
	case <-ctx.Done():
		report.Status = StatusInconclusive
		report.Duration = time.Since(start)
		report.CompletedAt = time.Now()
		c.logger.Warn("verification timed out",
			"task_id", t.ID,
			"timeout", timeout,
			"error", errors.ErrVerificationTimeout)
		return report
	case res := <-done:
		report.GoalAlignment = res.alignment
		report.Quality = res.quality
		report.Confidence = res.confidence
		report.Discrepancies = res.discrepancies
		report.Duration = time.Since(start)
		report.CompletedAt = time.Now()
		if !res.agreed {
			report.Status = StatusInconclusive
			return report
		}
		report.Status = c.disposition(report)
		return report
	}
}

// runStrategies executes the level's checks and returns the goal
// alignment score, the mean of the remaining scores as quality, and
// all discrepancies. Levels with a single check use its score for
// both.
func (c *Coordinator) runStrategies(level task.VerificationLevel, input Input) (float64, float64, []Discrepancy) {
	strategies := c.strategies(level)
	if len(strategies) == 0 {
		return 0, 0, nil
	}

	var (
		alignment     float64
		qualitySum    float64
		qualityCount  int
		discrepancies []Discrepancy
	)
	for i, s := range strategies {
		score, found := s.Evaluate(input)
		discrepancies = append(discrepancies, found...)
		if i == 0 {
			alignment = score
			continue
		}
		qualitySum += score
		qualityCount++
	}

	quality := alignment
	if qualityCount > 0 {
		quality = qualitySum / float64(qualityCount)
	}
	return alignment, quality, discrepancies
}

// disposition maps a report's scores and discrepancies to a verdict.
// A critical discrepancy fails the result regardless of score. Goal
// alignment and quality are judged separately: strong alignment with
// strong quality verifies, moderate alignment still counts as a
// partial pass, and a result too uncertain to fail outright is parked
// for human review.
func (c *Coordinator) disposition(r *Report) Status {
	if r.HasCritical() {
		return StatusFailed
	}
	if r.GoalAlignment >= c.cfg.VerifiedThreshold && r.Quality >= c.cfg.QualityThreshold {
		return StatusVerified
	}
	if r.GoalAlignment >= c.cfg.PartialThreshold {
		return StatusPartiallyVerified
	}
	if r.Confidence < c.cfg.ReviewThreshold {
		return StatusRequiresReview
	}
	return StatusFailed
}

// resolve applies a verdict to the task through the completion gate.
func (c *Coordinator) resolve(taskID string, report *Report) error {
	switch {
	case report.Status.Accepted():
		return c.gate.Complete(taskID, report.Quality)
	case report.Status == StatusFailed:
		return c.gate.Reject(taskID, rejectionReason(report))
	default:
		// RequiresReview: the task stays awaiting verification until a
		// human settles it.
		c.mu.Lock()
		c.reviews[taskID] = report
		c.mu.Unlock()
		return nil
	}
}

// ResolveReview settles a task parked for human review.
func (c *Coordinator) ResolveReview(taskID string, accept bool, reason string) error {
	c.mu.Lock()
	report, ok := c.reviews[taskID]
	if ok {
		delete(c.reviews, taskID)
	}
	c.mu.Unlock()
	if !ok {
		return errors.NewVerificationError("task is not under review", errors.ErrTaskNotFound).
			WithTaskID(taskID)
	}

	if accept {
		return c.gate.Complete(taskID, report.Quality)
	}
	if reason == "" {
		reason = "rejected on review"
	}
	return c.gate.Reject(taskID, reason)
}

// PendingReviews returns the reports of tasks waiting on human review,
// ordered by task ID.
func (c *Coordinator) PendingReviews() []*Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Report, 0, len(c.reviews))
	for _, r := range c.reviews {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	return out
}

// Pairs returns metrics for every primary/verifier pair formed so far.
func (c *Coordinator) Pairs() []Metrics {
	return c.pairs.all()
}

// selectVerifier picks an idle agent other than the primary, preferring
// the pair with the highest trust. Already-used verifiers are skipped
// on retries so a fresh pair judges the retry.
func (c *Coordinator) selectVerifier(primaryID string, used map[string]bool) (*agent.Agent, error) {
	candidates := c.agents.List(agent.ListFilter{State: agent.StateIdle})

	var (
		best      *agent.Agent
		bestTrust float64
	)
	for _, a := range candidates {
		if a.ID == primaryID || used[a.ID] {
			continue
		}
		trust := c.pairs.trustFor(primaryID, a.ID)
		if best == nil || trust > bestTrust {
			best, bestTrust = a, trust
		}
	}
	if best == nil {
		return nil, errors.NewVerificationError("no verifier available", errors.ErrVerifierUnavailable)
	}
	return best, nil
}

func (c *Coordinator) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// rejectionReason summarizes a failed report's discrepancies.
func rejectionReason(r *Report) string {
	if len(r.Discrepancies) == 0 {
		return fmt.Sprintf("verification failed with confidence %.2f", r.Confidence)
	}
	parts := make([]string, 0, len(r.Discrepancies))
	for _, d := range r.Discrepancies {
		parts = append(parts, fmt.Sprintf("%s: %s", d.Severity, d.Description))
	}
	return "verification failed: " + strings.Join(parts, "; ")
}

// harmonicMean combines two scores, punishing imbalance: a result
// cannot buy a high confidence with quality alone when it misses the
// goal.
func harmonicMean(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	return 2 * a * b / (a + b)
}
