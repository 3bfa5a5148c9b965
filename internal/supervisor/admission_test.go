package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/model"
)

func TestTryReserveRespectsHeadroom(t *testing.T) {
	l := NewLedger(Budget{MemBytes: 100, HeadroomPct: 0.8}) // 80 usable
	require.NoError(t, l.TryReserve("a", model.Resources{MemReservationBytes: 50}))
	err := l.TryReserve("b", model.Resources{MemReservationBytes: 40})
	require.Error(t, err, "50+40 > 80 usable")
}

func TestTryReserveIsIdempotent(t *testing.T) {
	l := NewLedger(Budget{MemBytes: 100, HeadroomPct: 1.0})
	require.NoError(t, l.TryReserve("a", model.Resources{MemReservationBytes: 90}))
	require.NoError(t, l.TryReserve("a", model.Resources{MemReservationBytes: 90}))
}

func TestReleaseFreesBudget(t *testing.T) {
	l := NewLedger(Budget{MemBytes: 100, HeadroomPct: 1.0})
	require.NoError(t, l.TryReserve("a", model.Resources{MemReservationBytes: 90}))
	l.Release("a")
	require.NoError(t, l.TryReserve("b", model.Resources{MemReservationBytes: 90}))
}

func TestOrderWakeCandidatesByPriorityThenRegistrationOrder(t *testing.T) {
	l := NewLedger(Budget{})
	l.RegisterOrder("first")
	l.RegisterOrder("second")
	l.RegisterOrder("third")

	ordered := l.OrderWakeCandidates([]WakeCandidate{
		{Service: "third", Priority: model.PriorityNormal},
		{Service: "second", Priority: model.PriorityHigh},
		{Service: "first", Priority: model.PriorityNormal},
	})

	require.Len(t, ordered, 3)
	assert.Equal(t, "second", ordered[0].Service, "high priority wins regardless of registration order")
	assert.Equal(t, "first", ordered[1].Service, "ties break by registration order ascending")
	assert.Equal(t, "third", ordered[2].Service)
}
