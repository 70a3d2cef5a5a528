package agent

import (
	"fmt"
	"sync"

	"github.com/ixado-dev/ixado/internal/model"
)

var (
	registry     = make(map[model.AdapterID]Spec)
	registryLock sync.RWMutex
)

// Register adds (or replaces) an adapter spec in the package-level registry.
// Adapter subpackages call this from an init() function.
func Register(spec Spec) {
	registryLock.Lock()
	defer registryLock.Unlock()
	registry[spec.ID] = spec
}

// Get retrieves a registered adapter spec by ID.
func Get(id model.AdapterID) (Spec, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	spec, ok := registry[id]
	if !ok {
		return Spec{}, fmt.Errorf("unknown adapter: %s", id)
	}
	return spec, nil
}

// List returns all registered adapter IDs.
func List() []model.AdapterID {
	registryLock.RLock()
	defer registryLock.RUnlock()

	ids := make([]model.AdapterID, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	return ids
}

// Exists reports whether an adapter ID is registered.
func Exists(id model.AdapterID) bool {
	registryLock.RLock()
	defer registryLock.RUnlock()
	_, ok := registry[id]
	return ok
}
