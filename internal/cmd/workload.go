package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hivekit/internal/agent"
	"hivekit/internal/capability"
	"hivekit/internal/hive"
	"hivekit/internal/task"
)

// workload is the YAML shape of a workload file: a roster of agents to
// register and a batch of tasks to submit. Either section may be empty.
type workload struct {
	Agents []workloadAgent `yaml:"agents"`
	Tasks  []workloadTask  `yaml:"tasks"`
}

type workloadAgent struct {
	Name         string                  `yaml:"name"`
	Kind         string                  `yaml:"kind"`
	Capabilities []capability.Capability `yaml:"capabilities"`
}

type workloadTask struct {
	Description       string                   `yaml:"description"`
	Priority          string                   `yaml:"priority"`
	Required          []capability.Requirement `yaml:"required"`
	MaxRetries        int                      `yaml:"max_retries"`
	EstimatedDuration string                   `yaml:"estimated_duration"`
	Verification      *workloadVerification    `yaml:"verification"`
}

type workloadVerification struct {
	Level    string   `yaml:"level"`
	Criteria []string `yaml:"criteria"`
}

// loadWorkload reads and parses a workload file.
func loadWorkload(path string) (*workload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload file: %w", err)
	}

	var w workload
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse workload file %s: %w", path, err)
	}
	return &w, nil
}

// toAgent converts a roster entry into an agent ready for registration.
// A missing kind defaults to worker.
func (wa workloadAgent) toAgent() (*agent.Agent, error) {
	kind := agent.KindWorker
	if wa.Kind != "" {
		parsed, err := agent.ParseKind(wa.Kind)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", wa.Name, err)
		}
		kind = parsed
	}

	return &agent.Agent{
		Name:         wa.Name,
		Kind:         kind,
		Capabilities: capability.NewSet(wa.Capabilities),
	}, nil
}

// toTask converts a workload entry into a task ready for submission.
// A missing priority defaults to medium.
func (wt workloadTask) toTask() (*task.Task, error) {
	priority := task.PriorityMedium
	if wt.Priority != "" {
		parsed, err := task.ParsePriority(wt.Priority)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", wt.Description, err)
		}
		priority = parsed
	}

	var estimated time.Duration
	if wt.EstimatedDuration != "" {
		parsed, err := time.ParseDuration(wt.EstimatedDuration)
		if err != nil {
			return nil, fmt.Errorf("task %q: invalid estimated_duration: %w", wt.Description, err)
		}
		estimated = parsed
	}

	return &task.Task{
		Description:       wt.Description,
		Priority:          priority,
		Required:          wt.Required,
		MaxRetries:        wt.MaxRetries,
		EstimatedDuration: estimated,
	}, nil
}

// applyWorkload registers the roster and submits the tasks, returning the
// created tasks in file order. Verifiable entries use the per-task level
// when set, falling back to the given default level.
func applyWorkload(ctx context.Context, h *hive.Hive, w *workload, defaultLevel task.VerificationLevel) ([]*task.Task, error) {
	for _, wa := range w.Agents {
		a, err := wa.toAgent()
		if err != nil {
			return nil, err
		}
		if _, err := h.RegisterAgent(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to register agent %q: %w", wa.Name, err)
		}
	}

	created := make([]*task.Task, 0, len(w.Tasks))
	for _, wt := range w.Tasks {
		t, err := wt.toTask()
		if err != nil {
			return nil, err
		}

		var submitted *task.Task
		if wt.Verification != nil {
			level := defaultLevel
			if wt.Verification.Level != "" {
				parsed, err := task.ParseVerificationLevel(wt.Verification.Level)
				if err != nil {
					return nil, fmt.Errorf("task %q: %w", wt.Description, err)
				}
				level = parsed
			}
			submitted, err = h.SubmitVerifiable(ctx, t, wt.Verification.Criteria, level)
		} else {
			submitted, err = h.SubmitTask(ctx, t)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to submit task %q: %w", wt.Description, err)
		}
		created = append(created, submitted)
	}

	return created, nil
}
