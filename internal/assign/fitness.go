// Package assign matches pending tasks to agents. It scores each
// candidate against a task's capability requirements and hands the
// task to the best fit, with agent load and idle time as tie-breakers.
package assign

import (
	"hivekit/internal/capability"
)

// Fit scores how well an agent's capabilities satisfy a task's
// requirements, in [0, 1]. Minimum proficiencies are hard: an agent
// missing any required capability, or below any minimum, scores zero
// and cannot take the task. Qualifying agents score the mean of the
// per-requirement scores min(1, proficiency/minimum). A task with no
// requirements fits every agent.
func Fit(caps capability.Set, required []capability.Requirement) float64 {
	if len(required) == 0 {
		return 1
	}

	sum := 0.0
	for _, req := range required {
		prof := caps.Proficiency(req.Name)
		if prof < req.MinProficiency {
			return 0
		}
		sum += req.Score(prof)
	}
	return sum / float64(len(required))
}
