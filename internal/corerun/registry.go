package corerun

import "github.com/tunnelgate/panel/internal/corespec"

// Registry maps core name to its lifecycle manager. It is built once at
// startup and read-only afterwards, so a missing manager is a structural
// fact rather than a runtime guess.
type Registry struct {
	managers map[string]*Manager
}

func NewRegistry(managers ...*Manager) *Registry {
	r := &Registry{managers: make(map[string]*Manager, len(managers))}
	for _, m := range managers {
		r.managers[m.Core()] = m
	}
	return r
}

func (r *Registry) Get(core string) (*Manager, bool) {
	m, ok := r.managers[core]
	return m, ok
}

// Cores returns the core names with a registered manager, in the canonical
// core order.
func (r *Registry) Cores() []string {
	var cores []string
	for _, name := range corespec.Cores() {
		if _, ok := r.managers[name]; ok {
			cores = append(cores, name)
		}
	}
	return cores
}

// CleanupAll stops every server of every registered manager.
func (r *Registry) CleanupAll() {
	for _, m := range r.managers {
		m.CleanupAll()
	}
}
