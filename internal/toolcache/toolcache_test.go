package toolcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/config"
	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/metricsstore"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
)

type fakeFetcher struct {
	tools []model.Tool
}

func (f *fakeFetcher) ListTools(ctx context.Context, serviceName string) ([]model.Tool, error) {
	return f.tools, nil
}

func toolsNamed(service string, n int) []model.Tool {
	out := make([]model.Tool, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, model.Tool{ServiceName: service, LocalName: fmt.Sprintf("tool%d", i)})
	}
	return out
}

func TestRefreshAndSnapshot(t *testing.T) {
	reg := registry.New(&config.Snapshot{Services: []config.ServiceConfig{{Name: "search", Enabled: true}}})
	bus := eventbus.New()
	fetcher := &fakeFetcher{tools: toolsNamed("search", 3)}
	c := New(reg, func(string) (Fetcher, error) { return fetcher, nil }, nil, bus, zap.NewNop())

	require.NoError(t, c.Refresh(context.Background(), "search"))
	snap := c.Snapshot()
	assert.Len(t, snap, 3)
}

func TestByVirtualServerDedupesAndResolvesWildcard(t *testing.T) {
	reg := registry.New(&config.Snapshot{Services: []config.ServiceConfig{{Name: "search", Enabled: true}}})
	bus := eventbus.New()
	fetcher := &fakeFetcher{tools: toolsNamed("search", 2)}
	c := New(reg, func(string) (Fetcher, error) { return fetcher, nil }, nil, bus, zap.NewNop())
	require.NoError(t, c.Refresh(context.Background(), "search"))

	tools, err := c.ByVirtualServer(model.VirtualServer{Name: "default", Enabled: true, Members: []string{"search"}})
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestByVirtualServerTruncatesAtCap(t *testing.T) {
	reg := registry.New(&config.Snapshot{Services: []config.ServiceConfig{{Name: "search", Enabled: true}}})
	bus := eventbus.New()
	metrics := metricsstore.New()
	defer metrics.Close()
	fetcher := &fakeFetcher{tools: toolsNamed("search", model.MaxVirtualServerTools+10)}
	c := New(reg, func(string) (Fetcher, error) { return fetcher, nil }, metrics, bus, zap.NewNop())
	require.NoError(t, c.Refresh(context.Background(), "search"))

	tools, err := c.ByVirtualServer(model.VirtualServer{Name: "default", Enabled: true, Members: []string{"search"}})
	require.NoError(t, err)
	assert.Len(t, tools, model.MaxVirtualServerTools)
}

func TestByVirtualServerDisabledIsRejected(t *testing.T) {
	reg := registry.New(&config.Snapshot{})
	bus := eventbus.New()
	c := New(reg, func(string) (Fetcher, error) { return nil, nil }, nil, bus, zap.NewNop())

	_, err := c.ByVirtualServer(model.VirtualServer{Name: "default", Enabled: false})
	require.Error(t, err)
}

func TestRefreshTriggeredOnRunningTransition(t *testing.T) {
	reg := registry.New(&config.Snapshot{Services: []config.ServiceConfig{{Name: "search", Enabled: true}}})
	bus := eventbus.New()
	fetcher := &fakeFetcher{tools: toolsNamed("search", 1)}
	c := New(reg, func(string) (Fetcher, error) { return fetcher, nil }, nil, bus, zap.NewNop())

	bus.Publish(eventbus.Transition{Service: "search", From: "STARTING", To: "RUNNING"})
	require.Eventually(t, func() bool {
		return len(c.Snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}
