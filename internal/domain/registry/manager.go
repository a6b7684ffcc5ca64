package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/AgentOS/lifecycle/internal/shared/types"
)

// ErrUnknownComponent is returned for identities with no definition
var ErrUnknownComponent = errors.New("unknown component identity")

// Manager holds component definitions keyed by identity. Reads come from the
// controller goroutine and writes from the seeder or admin API.
type Manager struct {
	mu   sync.RWMutex
	defs map[types.Identity]*Definition
}

// NewManager creates an empty registry
func NewManager() *Manager {
	return &Manager{defs: make(map[types.Identity]*Definition)}
}

// Register adds or replaces a definition
func (m *Manager) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.defs[def.Identity] = def
	return nil
}

// Get returns the definition for identity
func (m *Manager) Get(identity types.Identity) (*Definition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.defs[identity]
	return def, ok
}

// MustGet returns the definition for identity or ErrUnknownComponent
func (m *Manager) MustGet(identity types.Identity) (*Definition, error) {
	def, ok := m.Get(identity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, identity)
	}
	return def, nil
}

// Delete removes a definition
func (m *Manager) Delete(identity types.Identity) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.defs[identity]
	delete(m.defs, identity)
	return existed
}

// List returns all definitions ordered by identity, optionally filtered by affinity
func (m *Manager) List(affinity *string) []*Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]*Definition, 0, len(m.defs))
	for _, def := range m.defs {
		if affinity == nil || def.ResolveAffinity() == *affinity {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Identity < defs[j].Identity
	})
	return defs
}

// Len returns the number of definitions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.defs)
}
