package usecase

import (
	"fmt"
	"sync"

	"promptmatrix/internal/domain"
)

// Registry holds agent descriptors keyed by normalized agent id. It ships
// with the four built-in expert agents; custom agents are added through
// Register.
type Registry struct {
	mu     sync.RWMutex
	agents map[domain.AgentType]domain.AgentDescriptor
	order  []domain.AgentType
}

// NewRegistry creates a registry pre-populated with the built-in experts.
func NewRegistry() *Registry {
	r := &Registry{agents: make(map[domain.AgentType]domain.AgentDescriptor)}
	for _, d := range builtinDescriptors() {
		r.Register(d)
	}
	return r
}

// Register inserts or replaces a descriptor under its normalized id. A
// descriptor whose id normalizes to empty is silently ignored.
func (r *Registry) Register(d domain.AgentDescriptor) {
	id := domain.NormalizeCustomID(string(d.ID))
	if id == "" {
		return
	}
	d.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[id]; !exists {
		r.order = append(r.order, id)
	}
	r.agents[id] = d
}

// Get returns the descriptor for an exact normalized id.
func (r *Registry) Get(id domain.AgentType) (*domain.AgentDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, id)
	}
	return &d, nil
}

// List returns a snapshot of all descriptors in registration order.
func (r *Registry) List() []domain.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
