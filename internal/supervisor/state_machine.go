package supervisor

import "github.com/kubilitics/mcp-gateway/internal/model"

// validTransitions is the Supervisor's allowed (from -> to) phase table
// (spec §4.3). Grounded on the shape of
// kubilitics-backend/internal/addon/lifecycle/state_machine.go's
// validTransitions map, re-keyed for the seven service Phases instead of
// the nine AddOnStatus values.
var validTransitions = map[model.Phase][]model.Phase{
	model.PhaseStopped:  {model.PhaseStarting},
	model.PhaseStarting: {model.PhaseRunning, model.PhaseFailed, model.PhaseStopping},
	model.PhaseRunning:  {model.PhaseSleeping, model.PhaseStopping, model.PhaseFailed},
	model.PhaseSleeping: {model.PhaseWaking, model.PhaseStopping},
	model.PhaseWaking:   {model.PhaseRunning, model.PhaseFailed, model.PhaseStopping},
	model.PhaseStopping: {model.PhaseStopped, model.PhaseFailed},
	model.PhaseFailed:   {model.PhaseStarting, model.PhaseStopping},
}

// CanTransition reports whether from -> to is an allowed phase transition.
func CanTransition(from, to model.Phase) bool {
	if from == to {
		return true
	}
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
