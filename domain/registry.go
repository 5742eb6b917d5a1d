package domain

import (
	"fmt"
	"sync"

	"github.com/kauf3r/agent-trust-layer/schema"
)

// Registry holds domain adapters keyed by domain tag. Registration is
// established at startup; per spec.md §5 any mutation thereafter must be
// externally serialized, which the mutex here provides.
type Registry struct {
	mu       sync.RWMutex
	adapters map[schema.DomainTag]*Adapter
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[schema.DomainTag]*Adapter{}}
}

// Register validates adapter and adds it, rejecting invalid or duplicate
// (same domain tag) registrations.
func (r *Registry) Register(adapter *Adapter) error {
	result := adapter.Validate()
	if !result.OK() {
		return fmt.Errorf("fail-closed: adapter validation: %v", result.Errors)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[adapter.DomainTag]; exists {
		return fmt.Errorf("fail-closed: adapter already registered for domain %q", adapter.DomainTag)
	}
	r.adapters[adapter.DomainTag] = adapter
	if adapter.Hooks.OnInitialize != nil {
		if err := adapter.Hooks.OnInitialize(); err != nil {
			delete(r.adapters, adapter.DomainTag)
			return fmt.Errorf("fail-closed: adapter on-initialize: %w", err)
		}
	}
	return nil
}

// Lookup returns the adapter registered for domain, if any.
func (r *Registry) Lookup(domainTag schema.DomainTag) (*Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[domainTag]
	return a, ok
}

// List returns all registered adapters in no particular order.
func (r *Registry) List() []*Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Unregister removes the adapter for domain and runs its on-shutdown hook.
func (r *Registry) Unregister(domainTag schema.DomainTag) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[domainTag]
	if !ok {
		return fmt.Errorf("fail-closed: no adapter registered for domain %q", domainTag)
	}
	delete(r.adapters, domainTag)
	if a.Hooks.OnShutdown != nil {
		return a.Hooks.OnShutdown()
	}
	return nil
}

// Clear removes every registered adapter and runs each one's on-shutdown
// hook. The order in which adapters are shut down is not defined, and hook
// errors are ignored.
func (r *Registry) Clear() {
	r.mu.Lock()
	adapters := make([]*Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.adapters = map[schema.DomainTag]*Adapter{}
	r.mu.Unlock()

	for i := len(adapters) - 1; i >= 0; i-- {
		if adapters[i].Hooks.OnShutdown != nil {
			_ = adapters[i].Hooks.OnShutdown()
		}
	}
}

// Merge combines adapters sharing a domain tag into one: the first
// adapter's identity wins, tool/agent/workflow sets concatenate, and
// lifecycle hooks chain (on-initialize in order, on-shutdown reversed).
func Merge(adapters ...*Adapter) (*Adapter, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("fail-closed: no adapters to merge")
	}
	first := adapters[0]
	merged := &Adapter{
		DomainTag: first.DomainTag, Name: first.Name, Version: first.Version,
		ConfigPatch: first.ConfigPatch,
	}
	for _, a := range adapters {
		if a.DomainTag != first.DomainTag {
			return nil, fmt.Errorf("fail-closed: cannot merge adapters with different domain tags")
		}
		merged.Tools = append(merged.Tools, a.Tools...)
		merged.Agents = append(merged.Agents, a.Agents...)
		merged.Workflows = append(merged.Workflows, a.Workflows...)
		if merged.ConfigPatch.Overrides == nil {
			merged.ConfigPatch.Overrides = map[string]schema.TrustLevel{}
		}
		for name, level := range a.ConfigPatch.Overrides {
			merged.ConfigPatch.Overrides[name] = level
		}
		merged.ConfigPatch.SandboxWrites = merged.ConfigPatch.SandboxWrites || a.ConfigPatch.SandboxWrites
	}

	merged.Hooks.OnInitialize = chainInit(adapters)
	merged.Hooks.OnShutdown = chainShutdown(adapters)
	return merged, nil
}

func chainInit(adapters []*Adapter) func() error {
	return func() error {
		for _, a := range adapters {
			if a.Hooks.OnInitialize != nil {
				if err := a.Hooks.OnInitialize(); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func chainShutdown(adapters []*Adapter) func() error {
	return func() error {
		for i := len(adapters) - 1; i >= 0; i-- {
			if adapters[i].Hooks.OnShutdown != nil {
				if err := adapters[i].Hooks.OnShutdown(); err != nil {
					return err
				}
			}
		}
		return nil
	}
}
