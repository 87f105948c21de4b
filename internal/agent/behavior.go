package agent

// Profile tunes how an agent kind behaves: how quickly it learns and
// how fast it burns and recovers energy.
type Profile struct {
	// LearningBoost multiplies capability learning rates when outcomes
	// are recorded.
	LearningBoost float64

	// EnergyDrain is the energy consumed per completed execution.
	EnergyDrain float64

	// EnergyRecovery is the energy restored per recovery tick while
	// idle.
	EnergyRecovery float64
}

// profiles is the behavior dispatch table, keyed by agent kind.
var profiles = map[Kind]Profile{
	KindWorker: {
		LearningBoost:  1.0,
		EnergyDrain:    10,
		EnergyRecovery: 5,
	},
	KindCoordinator: {
		LearningBoost:  0.5,
		EnergyDrain:    5,
		EnergyRecovery: 5,
	},
	KindSpecialist: {
		LearningBoost:  0.75,
		EnergyDrain:    15,
		EnergyRecovery: 8,
	},
	KindLearner: {
		LearningBoost:  2.0,
		EnergyDrain:    20,
		EnergyRecovery: 10,
	},
}

// ProfileFor returns the behavior profile for an agent kind. Unknown
// kinds get the worker profile.
func ProfileFor(kind Kind) Profile {
	if p, ok := profiles[kind]; ok {
		return p
	}
	return profiles[KindWorker]
}
