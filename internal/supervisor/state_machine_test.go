package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestCanTransitionAllowsDeclaredEdges(t *testing.T) {
	assert.True(t, CanTransition(model.PhaseStopped, model.PhaseStarting))
	assert.True(t, CanTransition(model.PhaseRunning, model.PhaseSleeping))
	assert.True(t, CanTransition(model.PhaseSleeping, model.PhaseWaking))
	assert.True(t, CanTransition(model.PhaseWaking, model.PhaseRunning))
	assert.True(t, CanTransition(model.PhaseFailed, model.PhaseStarting))
}

func TestCanTransitionRejectsSkippedEdges(t *testing.T) {
	assert.False(t, CanTransition(model.PhaseStopped, model.PhaseRunning))
	assert.False(t, CanTransition(model.PhaseSleeping, model.PhaseRunning))
	assert.False(t, CanTransition(model.PhaseStopped, model.PhaseSleeping))
}

func TestCanTransitionSameStateIsNoop(t *testing.T) {
	assert.True(t, CanTransition(model.PhaseRunning, model.PhaseRunning))
}

func TestStoppingIsTerminalExceptToStoppedOrFailed(t *testing.T) {
	assert.True(t, CanTransition(model.PhaseStopping, model.PhaseStopped))
	assert.True(t, CanTransition(model.PhaseStopping, model.PhaseFailed))
	assert.False(t, CanTransition(model.PhaseStopping, model.PhaseRunning))
}
