// Package capability defines the skill model shared by agents and tasks.
// An agent advertises capabilities with a proficiency level; a task
// declares requirements with a minimum proficiency. The assignment
// engine compares the two to score candidate agents.
package capability

import (
	"hivekit/internal/errors"
)

// Capability is a named skill an agent possesses.
type Capability struct {
	Name string `yaml:"name" json:"name"`

	// Proficiency is the agent's current skill level, in [0, 1].
	Proficiency float64 `yaml:"proficiency" json:"proficiency"`

	// LearningRate controls how fast proficiency moves toward the
	// quality of completed work, in [0, 1]. Zero means the capability
	// is static.
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
}

// Validate checks that all fields are within their allowed ranges.
func (c Capability) Validate() error {
	if c.Name == "" {
		return errors.NewValidationError("name", c.Name, "capability name must not be empty")
	}
	if c.Proficiency < 0 || c.Proficiency > 1 {
		return errors.NewValidationError("proficiency", c.Proficiency, "must be between 0 and 1")
	}
	if c.LearningRate < 0 || c.LearningRate > 1 {
		return errors.NewValidationError("learning_rate", c.LearningRate, "must be between 0 and 1")
	}
	return nil
}

// Learn moves proficiency toward the observed quality of a completed
// task, scaled by the learning rate, and returns the updated capability.
// The result is clamped to [0, 1].
func (c Capability) Learn(quality float64) Capability {
	updated := c
	updated.Proficiency = clamp01(c.Proficiency + c.LearningRate*(quality-c.Proficiency))
	return updated
}

// Requirement is a capability a task needs, with a minimum proficiency
// an agent must hold for a full score on that requirement.
type Requirement struct {
	Name string `yaml:"name" json:"name"`

	// MinProficiency is the proficiency at which an agent fully
	// satisfies this requirement, in (0, 1].
	MinProficiency float64 `yaml:"min_proficiency" json:"min_proficiency"`
}

// Validate checks that all fields are within their allowed ranges.
func (r Requirement) Validate() error {
	if r.Name == "" {
		return errors.NewValidationError("name", r.Name, "requirement name must not be empty")
	}
	if r.MinProficiency <= 0 || r.MinProficiency > 1 {
		return errors.NewValidationError("min_proficiency", r.MinProficiency, "must be greater than 0 and at most 1")
	}
	return nil
}

// Score returns how well a proficiency satisfies this requirement:
// proficiency divided by the minimum, capped at 1. An agent exactly at
// the minimum scores 1.0; below it scores proportionally.
func (r Requirement) Score(proficiency float64) float64 {
	score := proficiency / r.MinProficiency
	if score > 1 {
		return 1
	}
	return score
}

// Set is a collection of capabilities keyed by name.
type Set map[string]Capability

// NewSet builds a Set from a slice of capabilities. Duplicate names
// keep the last entry.
func NewSet(caps []Capability) Set {
	set := make(Set, len(caps))
	for _, c := range caps {
		set[c.Name] = c
	}
	return set
}

// Proficiency returns the proficiency for a named capability, or 0 if
// the capability is absent.
func (s Set) Proficiency(name string) float64 {
	return s[name].Proficiency
}

// Has reports whether the set contains a capability with the given name.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// List returns the capabilities as a slice. Order is not guaranteed.
func (s Set) List() []Capability {
	out := make([]Capability, 0, len(s))
	for _, c := range s {
		out = append(out, c)
	}
	return out
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, c := range s {
		out[name] = c
	}
	return out
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
