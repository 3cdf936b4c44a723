package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/reviewd/internal/model"
)

// Registry dispatches agents by their type tag. The tag set is the closed
// model.AgentType enum, so registering an agent for an unknown type is a
// programming error caught at startup rather than a stringly-typed lookup
// failing at dispatch time.
type Registry struct {
	mu     sync.RWMutex
	agents map[model.AgentType]Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[model.AgentType]Agent)}
}

// Register adds an agent. It rejects unknown type tags and duplicate
// registrations.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return fmt.Errorf("agent is nil")
	}
	t := a.Type()
	if !t.Valid() {
		return fmt.Errorf("unknown agent type %q", t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[t]; exists {
		return fmt.Errorf("agent type %q already registered", t)
	}
	r.agents[t] = a
	return nil
}

// Get returns the agent registered for the type.
func (r *Registry) Get(t model.AgentType) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[t]
	if !ok {
		return nil, fmt.Errorf("no agent registered for type %q", t)
	}
	return a, nil
}

// Types returns the registered agent types in stable order.
func (r *Registry) Types() []model.AgentType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]model.AgentType, 0, len(r.agents))
	for t := range r.agents {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
