package task

import "time"

// Result is the outcome of executing a task.
type Result struct {
	// TaskID identifies the task this result belongs to.
	TaskID string `yaml:"task_id" json:"task_id"`

	// AgentID identifies the agent that produced the result.
	AgentID string `yaml:"agent_id" json:"agent_id"`

	// Success reports whether the executing agent considers the work done.
	Success bool `yaml:"success" json:"success"`

	// Output is the primary deliverable of the execution.
	Output string `yaml:"output" json:"output"`

	// Artifacts are named secondary outputs (file contents, reports).
	Artifacts map[string]string `yaml:"artifacts,omitempty" json:"artifacts,omitempty"`

	// Quality is the executing agent's self-assessed quality, in [0, 1].
	// Capability learning uses it when no verification runs.
	Quality float64 `yaml:"quality" json:"quality"`

	// Duration is how long the execution took.
	Duration time.Duration `yaml:"duration" json:"duration"`

	// Error holds failure context when Success is false.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	ProducedAt time.Time `yaml:"produced_at" json:"produced_at"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	cp := *r
	if r.Artifacts != nil {
		cp.Artifacts = make(map[string]string, len(r.Artifacts))
		for k, v := range r.Artifacts {
			cp.Artifacts[k] = v
		}
	}
	return &cp
}
