// Package flags implements the gateway's runtime feature-flag store
// (spec §4.13). Grounded on the lifecycle controller's sync.Map/sync.Once
// idiom in kubilitics-backend's internal/addon/lifecycle/controller.go,
// adapted from "one entry per service" to "one entry per flag key".
package flags

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// Store is a process-wide set of named boolean switches. There is no
// package-level singleton; the composition root constructs one Store and
// threads it explicitly (Design Notes §9).
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	flag      model.FeatureFlag
	value     atomic.Bool
	envLoaded atomic.Bool
	source    atomic.Value // model.FlagSource
}

// New builds a Store seeded with the given flags at their default values.
func New(defs []model.FeatureFlag) *Store {
	s := &Store{entries: make(map[string]*entry, len(defs))}
	for _, d := range defs {
		e := &entry{flag: d}
		e.value.Store(d.DefaultValue)
		e.source.Store(model.SourceDefault)
		s.entries[key(d.Category, d.Name)] = e
	}
	return s
}

func key(category, name string) string { return category + "." + name }

// Enabled reports whether category.name is on. The first read of any flag
// consults its env override (double-checked against envLoaded so repeated
// calls do not re-parse the environment); reads thereafter are lock-free.
func (s *Store) Enabled(category, name string) (bool, error) {
	e, ok := s.lookup(category, name)
	if !ok {
		return false, gwerr.Newf(gwerr.NotFound, "unknown flag %s.%s", category, name)
	}
	if !e.envLoaded.Load() {
		s.loadEnvOnce(e)
	}
	return e.value.Load(), nil
}

func (s *Store) loadEnvOnce(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.envLoaded.Load() {
		return
	}
	if e.flag.EnvOverrideKey != "" {
		if raw, ok := lookupEnv(e.flag.EnvOverrideKey); ok {
			e.value.Store(truthy(raw))
			e.source.Store(model.SourceEnv)
		}
	}
	e.envLoaded.Store(true)
}

// Set overrides a flag at runtime (spec §6.1 `POST /flags/{name}`).
func (s *Store) Set(category, name string, value bool) error {
	e, ok := s.lookup(category, name)
	if !ok {
		return gwerr.Newf(gwerr.NotFound, "unknown flag %s.%s", category, name)
	}
	e.envLoaded.Store(true) // an explicit Set always wins over a later env probe
	e.value.Store(value)
	e.source.Store(model.SourceRuntime)
	return nil
}

// Snapshot describes one flag's current resolved value and origin, for the
// Control API's GET /flags response.
type Snapshot struct {
	Category string
	Name     string
	Value    bool
	Source   model.FlagSource
}

// All returns a stable-ordered snapshot of every known flag.
func (s *Store) All() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, 0, len(s.entries))
	for _, e := range s.entries {
		src, _ := e.source.Load().(model.FlagSource)
		out = append(out, Snapshot{
			Category: e.flag.Category,
			Name:     e.flag.Name,
			Value:    e.value.Load(),
			Source:   src,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// lookup reads the entries map without locking: New is its only writer,
// so the map is read-only once the Store is built.
func (s *Store) lookup(category, name string) (*entry, bool) {
	e, ok := s.entries[key(category, name)]
	return e, ok
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// lookupEnv is a seam for tests; overridden in flags_test.go.
var lookupEnv = defaultLookupEnv
