package core

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry holds table definitions by key.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]TableDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]TableDefinition)}
}

// Register adds def. Panics if the key is taken or def cannot open a handle.
func (r *Registry) Register(def TableDefinition) {
	if def.Info.Key == "" || def.Open == nil {
		panic(fmt.Sprintf("incomplete table definition: %q", def.Info.Key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Info.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Info.Key))
	}
	r.defs[def.Info.Key] = def
}

// Lookup returns the definition registered under key.
func (r *Registry) Lookup(key string) (TableDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[key]
	return def, ok
}

// Definitions returns every definition ordered by group, then key.
func (r *Registry) Definitions() []TableDefinition {
	r.mu.RLock()
	defs := make([]TableDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	r.mu.RUnlock()

	sortDefinitions(defs)
	return defs
}

// Reset drops every definition.
func (r *Registry) Reset() {
	r.mu.Lock()
	clear(r.defs)
	r.mu.Unlock()
}

// tables is the process-wide registry filled by record packages.
var tables = NewRegistry()

// Register adds def to the process-wide registry.
func Register(def TableDefinition) { tables.Register(def) }

// All returns the process-wide registry's definitions in order.
func All() []TableDefinition { return tables.Definitions() }

// Lookup finds a definition in the process-wide registry.
func Lookup(key string) (TableDefinition, bool) { return tables.Lookup(key) }

// Reset empties the process-wide registry. Tests use it to start clean.
func Reset() { tables.Reset() }

func sortDefinitions(defs []TableDefinition) {
	slices.SortFunc(defs, func(a, b TableDefinition) int {
		if c := strings.Compare(a.Info.Group, b.Info.Group); c != 0 {
			return c
		}
		return strings.Compare(a.Info.Key, b.Info.Key)
	})
}
