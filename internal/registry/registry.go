// Package registry holds the gateway's declared Service and VirtualServer
// set (spec §4.2 Service Registry): the authoritative list of what could
// run, as opposed to the Supervisor's view of what is currently running.
//
// Grounded on kubilitics-backend/internal/addon/registry's RWMutex/atomic
// snapshot idiom (its RegistryCache swaps whole cache entries rather than
// mutating fields in place), adapted here to swap the whole registry
// snapshot atomically on Reload so readers never observe a half-applied
// config change (spec §4.2 "readers see a consistent snapshot").
package registry

import (
	"sync"

	"github.com/kubilitics/mcp-gateway/internal/config"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// Registry is the declarative source of truth for services and virtual
// servers. It owns no runtime state (that belongs to the Supervisor) and
// no cached tool lists (that belongs to the Tool Cache).
type Registry struct {
	mu             sync.RWMutex
	services       map[string]model.Service
	order          []string // registration order, for deterministic iteration
	virtualServers map[string]model.VirtualServer
}

// New builds a Registry from a resolved config Snapshot.
func New(snap *config.Snapshot) *Registry {
	r := &Registry{
		services:       make(map[string]model.Service, len(snap.Services)),
		virtualServers: make(map[string]model.VirtualServer, len(snap.VirtualServers)),
	}
	r.applyLocked(snap)
	return r
}

func (r *Registry) applyLocked(snap *config.Snapshot) {
	r.services = make(map[string]model.Service, len(snap.Services))
	r.order = make([]string, 0, len(snap.Services))
	for _, sc := range snap.Services {
		r.services[sc.Name] = model.Service{
			Name:         sc.Name,
			Image:        sc.Image,
			Endpoint:     sc.Endpoint,
			Priority:     sc.Priority,
			AutoStart:    sc.AutoStart,
			IdleTimeout:  sc.IdleTimeout,
			WakeBudgetMs: sc.WakeBudgetMs,
			Enabled:      sc.Enabled,
			Resources:    sc.Resources,
			HealthProbe:  sc.HealthProbe,
			Phase:        model.PhaseStopped,
		}
		r.order = append(r.order, sc.Name)
	}
	r.virtualServers = make(map[string]model.VirtualServer, len(snap.VirtualServers))
	for _, vc := range snap.VirtualServers {
		r.virtualServers[vc.Name] = model.VirtualServer{
			Name:    vc.Name,
			Enabled: vc.Enabled,
			Members: vc.Members,
		}
	}
}

// List returns a consistent, registration-ordered snapshot of every
// declared service (spec §4.2 list()).
func (r *Registry) List() []model.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Service, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.services[name].Clone())
	}
	return out
}

// Get looks up one service by name.
func (r *Registry) Get(name string) (model.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok {
		return model.Service{}, gwerr.Newf(gwerr.NotFound, "service %q not registered", name)
	}
	return svc.Clone(), nil
}

// SetEnabled toggles whether a service is eligible to run (spec §4.2
// enable/disable, idempotent). It does not itself stop a running service;
// the Control API's disable handler asks the Supervisor to stop it.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return gwerr.Newf(gwerr.NotFound, "service %q not registered", name)
	}
	svc.Enabled = enabled
	r.services[name] = svc
	return nil
}

// MutateObservedState lets the Supervisor (and only the Supervisor) update
// the portion of a Service it owns: Phase, LastActivityAt,
// LastTransitionAt, FailureStreak (spec §3 ownership rules).
func (r *Registry) MutateObservedState(name string, fn func(*model.Service)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[name]
	if !ok {
		return gwerr.Newf(gwerr.NotFound, "service %q not registered", name)
	}
	fn(&svc)
	r.services[name] = svc
	return nil
}

// VirtualServers returns every declared virtual server.
func (r *Registry) VirtualServers() []model.VirtualServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.VirtualServer, 0, len(r.virtualServers))
	for _, vs := range r.virtualServers {
		out = append(out, vs)
	}
	return out
}

// VirtualServer looks up one virtual server by name.
func (r *Registry) VirtualServer(name string) (model.VirtualServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.virtualServers[name]
	if !ok {
		return model.VirtualServer{}, gwerr.Newf(gwerr.NotFound, "virtual server %q not registered", name)
	}
	return vs, nil
}

// Reload atomically replaces the declared service/virtual-server set from
// a freshly loaded config Snapshot (spec §4.2 reload(), §4.14 "structural
// diff"). Observed state (Phase, counters) for services that still exist
// by name is preserved across the reload; services removed from config
// lose their entry entirely — the Supervisor is expected to have already
// drained them via the reload-diff it computes from the old snapshot.
func (r *Registry) Reload(snap *config.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevState := make(map[string]model.Service, len(r.services))
	for name, svc := range r.services {
		prevState[name] = svc
	}

	r.applyLocked(snap)

	for name, svc := range r.services {
		if prev, ok := prevState[name]; ok {
			svc.Phase = prev.Phase
			svc.LastActivityAt = prev.LastActivityAt
			svc.LastTransitionAt = prev.LastTransitionAt
			svc.FailureStreak = prev.FailureStreak
			r.services[name] = svc
		}
	}
}

// Diff reports which service names were added, removed, or changed
// declared config (but kept the same name) between the registry's current
// state and a candidate snapshot, ahead of calling Reload (spec §4.14).
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

func (r *Registry) Diff(snap *config.Snapshot) Diff {
	r.mu.RLock()
	defer r.mu.RUnlock()

	next := make(map[string]config.ServiceConfig, len(snap.Services))
	for _, sc := range snap.Services {
		next[sc.Name] = sc
	}

	var d Diff
	for name := range next {
		if _, ok := r.services[name]; !ok {
			d.Added = append(d.Added, name)
		}
	}
	for name, cur := range r.services {
		sc, ok := next[name]
		if !ok {
			d.Removed = append(d.Removed, name)
			continue
		}
		if cur.Image != sc.Image || cur.Priority != sc.Priority || cur.Enabled != sc.Enabled ||
			cur.AutoStart != sc.AutoStart || cur.IdleTimeout != sc.IdleTimeout {
			d.Changed = append(d.Changed, name)
		}
	}
	return d
}
