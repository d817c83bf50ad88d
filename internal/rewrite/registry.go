package rewrite

import (
	"sort"

	"github.com/tidalframe/tidal/internal/engine"
)

// Registry is the set of identifiers that must never be auto-vectorized:
// aggregate statistics, sequence constructors, window helpers, and any
// helper the caller registers as already vectorized. Membership is
// decided by exact identifier match, never by heuristic.
//
// A Registry is owned by the compiler session that created it; mutating
// it while a compilation is in flight is undefined for that compilation
// only.
type Registry struct {
	names map[string]bool
}

// NewRegistry returns a registry seeded with the engine's whole-column
// function set.
func NewRegistry() *Registry {
	r := &Registry{names: make(map[string]bool)}
	for _, name := range engine.ColumnFuncNames() {
		r.names[name] = true
	}
	return r
}

// EmptyRegistry returns a registry with no members. Useful in tests.
func EmptyRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// Add registers identifiers as exempt from auto-vectorization.
func (r *Registry) Add(names ...string) {
	for _, name := range names {
		r.names[name] = true
	}
}

// Remove withdraws identifiers from the registry.
func (r *Registry) Remove(names ...string) {
	for _, name := range names {
		delete(r.names, name)
	}
}

// Contains reports registry membership by exact match.
func (r *Registry) Contains(name string) bool {
	return r.names[name]
}

// Names returns the registry contents, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
