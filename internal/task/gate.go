package task

import (
	"time"

	"hivekit/internal/errors"
	"hivekit/internal/event"
)

// Gate is the exclusive capability to resolve tasks out of
// awaiting_verification. The registry hands it out exactly once, to
// the verification coordinator, so no other component can mark a
// verifiable task completed.
type Gate struct {
	registry *Registry
}

// OpenGate returns the registry's verification gate. The first caller
// receives the gate; every later call returns nil. The hive wires the
// gate into the verification coordinator during startup.
func (r *Registry) OpenGate() *Gate {
	var g *Gate
	r.gateOnce.Do(func() {
		r.gate = &Gate{registry: r}
		g = r.gate
	})
	return g
}

// Complete marks a task awaiting verification as completed, recording
// the verified quality on its result.
func (g *Gate) Complete(taskID string, quality float64) error {
	return g.resolve(taskID, true, quality, "")
}

// Reject fails a task awaiting verification. The failure is permanent;
// verification rejections do not consume the execution retry budget,
// they end the task.
func (g *Gate) Reject(taskID, reason string) error {
	return g.resolve(taskID, false, 0, reason)
}

func (g *Gate) resolve(taskID string, verified bool, quality float64, reason string) error {
	r := g.registry

	r.mu.Lock()
	t, ok := r.tasks[taskID]
	if !ok {
		r.mu.Unlock()
		return errors.NewNotFoundError("task", taskID)
	}
	if t.Status != StatusAwaitingVerification {
		status := t.Status
		r.mu.Unlock()
		return errors.NewTaskError("task is not awaiting verification", errors.ErrInvalidTransition).
			WithTaskID(taskID).WithStatus(status.String())
	}

	previous := t.Status
	now := time.Now()
	if verified {
		if t.Result != nil {
			t.Result.Quality = quality
		}
		t.Status = StatusCompleted
		t.Progress = 1
	} else {
		t.Status = StatusFailed
		t.FailureContext = reason
	}
	t.CompletedAt = &now
	t.UpdatedAt = now
	snap := snapshot(t)
	r.mu.Unlock()

	if verified {
		r.logger.Info("verification accepted result", "task_id", taskID, "quality", quality)
	} else {
		r.logger.Warn("verification rejected result", "task_id", taskID, "reason", reason)
	}
	r.publish(event.NewTaskUpdateEvent(snap, previous.String()))
	return nil
}
