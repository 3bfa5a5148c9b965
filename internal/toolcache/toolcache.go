// Package toolcache holds the gateway's current view of every upstream's
// tool list (spec §4.6 Tool Cache): refreshed when a service reaches
// RUNNING or when Refresh is called, exposed per-service and aggregated
// per VirtualServer under the hard 60-tool cap. There is no periodic
// refresh timer.
//
// Grounded on the Cache Tiers/Invalidation-Triggers design in
// kubilitics-ai/internal/cache/cache.go's doc comment (TTL expiration,
// "resource change detected", "manual invalidation" as the three trigger
// classes), narrowed from a generic multi-tier value cache to one purpose-
// built store keyed by service name, since tool lists have no TTL in the
// spec — only explicit refresh/invalidate triggers.
package toolcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kubilitics/mcp-gateway/internal/eventbus"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/metricsstore"
	"github.com/kubilitics/mcp-gateway/internal/model"
	"github.com/kubilitics/mcp-gateway/internal/registry"
)

// Fetcher lists tools from a running upstream; bound to upstream.Client in
// production, stubbed in tests.
type Fetcher interface {
	ListTools(ctx context.Context, serviceName string) ([]model.Tool, error)
}

// FetcherFor resolves the Fetcher for a given service (production wiring
// builds one upstream.Client per Endpoint).
type FetcherFor func(serviceName string) (Fetcher, error)

// Cache is the gateway's aggregated tool store.
type Cache struct {
	mu    sync.RWMutex
	bySvc map[string][]model.Tool

	reg        *registry.Registry
	fetcherFor FetcherFor
	metrics    *metricsstore.Store
	log        *zap.Logger
}

// New builds a Cache and subscribes it to Supervisor phase transitions so
// a service reaching RUNNING triggers a refresh (spec §4.6 "discovery on
// RUNNING").
func New(reg *registry.Registry, fetcherFor FetcherFor, metrics *metricsstore.Store, bus *eventbus.Bus, log *zap.Logger) *Cache {
	c := &Cache{
		bySvc:      make(map[string][]model.Tool),
		reg:        reg,
		fetcherFor: fetcherFor,
		metrics:    metrics,
		log:        log,
	}
	transitions := bus.Subscribe(32)
	go c.watch(transitions)
	return c
}

func (c *Cache) watch(transitions <-chan eventbus.Transition) {
	for t := range transitions {
		switch t.To {
		case string(model.PhaseRunning):
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			if err := c.Refresh(ctx, t.Service); err != nil {
				c.log.Warn("tool cache refresh failed", zap.String("service", t.Service), zap.Error(err))
			}
			cancel()
		case string(model.PhaseSleeping), string(model.PhaseStopped):
			c.Invalidate(t.Service)
		}
	}
}

const refreshTimeoutSeconds = 10

// refreshTimeout bounds one Refresh call against a slow or hung upstream.
var refreshTimeout = refreshTimeoutSecondsAsDuration()

// Refresh re-fetches one service's tool list from its upstream (spec §4.6
// refresh()).
func (c *Cache) Refresh(ctx context.Context, serviceName string) error {
	fetcher, err := c.fetcherFor(serviceName)
	if err != nil {
		return err
	}
	tools, err := fetcher.ListTools(ctx, serviceName)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.bySvc[serviceName] = tools
	c.mu.Unlock()
	return nil
}

// Invalidate drops a service's cached tools (spec §4.6 invalidate(), fired
// on SLEEPING/STOPPED transitions so stale tools aren't offered for a
// service that can't currently serve them).
func (c *Cache) Invalidate(serviceName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bySvc, serviceName)
}

// Snapshot returns every currently cached tool across all services, sorted
// by fully-qualified name for deterministic output.
func (c *Cache) Snapshot() []model.Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []model.Tool
	for _, tools := range c.bySvc {
		out = append(out, tools...)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FullyQualifiedName() < out[j].FullyQualifiedName()
	})
	return out
}

// ByVirtualServer resolves a VirtualServer's member list (bare service
// name = wildcard, explicit fullyQualifiedName = single tool) against the
// cache, deduplicates, and truncates to model.MaxVirtualServerTools (spec
// §3 VirtualServer, §9 "hard 60-tool cap"). The number of tools dropped by
// truncation is recorded to the rolling metrics store and the ambient
// Prometheus counter.
func (c *Cache) ByVirtualServer(vs model.VirtualServer) ([]model.Tool, error) {
	if !vs.Enabled {
		return nil, gwerr.Newf(gwerr.ServiceUnavailable, "virtual server %q is disabled", vs.Name)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var out []model.Tool
	for _, member := range vs.Members {
		if svcName, toolName, ok := splitFQN(member); ok {
			for _, t := range c.bySvc[svcName] {
				if t.LocalName == toolName && !seen[t.FullyQualifiedName()] {
					seen[t.FullyQualifiedName()] = true
					out = append(out, t)
				}
			}
			continue
		}
		for _, t := range c.bySvc[member] {
			if !seen[t.FullyQualifiedName()] {
				seen[t.FullyQualifiedName()] = true
				out = append(out, t)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FullyQualifiedName() < out[j].FullyQualifiedName()
	})

	if len(out) > model.MaxVirtualServerTools {
		truncated := len(out) - model.MaxVirtualServerTools
		out = out[:model.MaxVirtualServerTools]
		metricsstore.VirtualServerToolsTruncated.WithLabelValues(vs.Name).Add(float64(truncated))
		if c.metrics != nil {
			c.metrics.Ingest(model.MetricSample{Name: "virtualserver.truncated_count", Tags: map[string]string{"virtual_server": vs.Name}, Value: float64(truncated), TimestampMs: time.Now().UnixMilli()})
		}
	}
	return out, nil
}

func splitFQN(member string) (service, tool string, ok bool) {
	for i := 0; i < len(member); i++ {
		if member[i] == '/' {
			return member[:i], member[i+1:], true
		}
	}
	return "", "", false
}
