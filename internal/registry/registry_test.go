package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/mcp-gateway/internal/config"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

func baseSnapshot() *config.Snapshot {
	return &config.Snapshot{
		Services: []config.ServiceConfig{
			{Name: "search", Image: "search:1", Priority: model.PriorityNormal, Enabled: true},
			{Name: "files", Image: "files:1", Priority: model.PriorityLow, Enabled: true},
		},
		VirtualServers: []config.VirtualServerConfig{
			{Name: "default", Enabled: true, Members: []string{"search", "files"}},
		},
	}
}

func TestListReturnsRegistrationOrder(t *testing.T) {
	r := New(baseSnapshot())
	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "search", list[0].Name)
	assert.Equal(t, "files", list[1].Name)
}

func TestSetEnabledIsIdempotent(t *testing.T) {
	r := New(baseSnapshot())
	require.NoError(t, r.SetEnabled("search", false))
	require.NoError(t, r.SetEnabled("search", false))
	svc, err := r.Get("search")
	require.NoError(t, err)
	assert.False(t, svc.Enabled)
}

func TestSetEnabledUnknownServiceIsNotFound(t *testing.T) {
	r := New(baseSnapshot())
	err := r.SetEnabled("ghost", true)
	require.Error(t, err)
}

func TestReloadPreservesObservedStateForUnchangedServices(t *testing.T) {
	r := New(baseSnapshot())
	require.NoError(t, r.MutateObservedState("search", func(s *model.Service) {
		s.Phase = model.PhaseRunning
		s.FailureStreak = 2
	}))

	next := baseSnapshot()
	next.Services[0].Image = "search:2" // declared field changes, observed state should not reset
	r.Reload(next)

	svc, err := r.Get("search")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRunning, svc.Phase)
	assert.Equal(t, 2, svc.FailureStreak)
	assert.Equal(t, "search:2", svc.Image)
}

func TestReloadDropsRemovedServices(t *testing.T) {
	r := New(baseSnapshot())
	next := &config.Snapshot{
		Services: []config.ServiceConfig{{Name: "search", Image: "search:1", Enabled: true}},
	}
	r.Reload(next)
	_, err := r.Get("files")
	require.Error(t, err)
}

func TestDiffReportsAddedRemovedChanged(t *testing.T) {
	r := New(baseSnapshot())
	next := &config.Snapshot{
		Services: []config.ServiceConfig{
			{Name: "search", Image: "search:2", Enabled: true}, // changed
			{Name: "docs", Image: "docs:1", Enabled: true},     // added
			// files removed
		},
	}
	d := r.Diff(next)
	assert.ElementsMatch(t, []string{"docs"}, d.Added)
	assert.ElementsMatch(t, []string{"files"}, d.Removed)
	assert.ElementsMatch(t, []string{"search"}, d.Changed)
}
