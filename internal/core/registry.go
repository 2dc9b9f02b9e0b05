package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Panics if the key is taken or the definition cannot be served.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	key := def.Info.Key
	if _, exists := registry[key]; exists {
		panic(fmt.Sprintf("table already registered: %s", key))
	}
	if def.Info.IDField == "" || def.Load == nil {
		panic(fmt.Sprintf("table %s: IDField and Load are required", key))
	}
	if def.UniqueField != "" {
		if _, ok := def.Field(def.UniqueField); !ok {
			panic(fmt.Sprintf("table %s: unique field %s has no FieldSpec", key, def.UniqueField))
		}
	}

	registry[key] = def
}

// Get returns a table definition by key.
// Returns false if not found.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// Lookup is Get returning ErrTableNotFound.
func Lookup(key string) (TableDefinition, error) {
	def, ok := Get(key)
	if !ok {
		return TableDefinition{}, fmt.Errorf("%w: %s", ErrTableNotFound, key)
	}
	return def, nil
}

// All returns all registered table definitions sorted by key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})
	return result
}

// TableCount returns the number of registered tables.
func TableCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
