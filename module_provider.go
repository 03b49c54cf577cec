package goFlag

import (
	"context"
	"fmt"
	"sync"
)

// StaticModuleProvider is an in-memory [ModuleProvider]. Modules are copied
// on insert and on lookup, so callers cannot mutate stored keys.
type StaticModuleProvider struct {
	mu        sync.RWMutex
	byID      map[string]Module
	byLocator map[string]string
}

// NewStaticModuleProvider returns a provider holding modules. It fails if a
// module is misconfigured or an id or locator is used twice.
func NewStaticModuleProvider(modules ...Module) (*StaticModuleProvider, error) {
	p := &StaticModuleProvider{
		byID:      make(map[string]Module, len(modules)),
		byLocator: make(map[string]string, len(modules)),
	}
	for _, m := range modules {
		if err := p.Put(m); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Put adds a module or replaces the module with the same id.
func (p *StaticModuleProvider) Put(m Module) error {
	if err := validateModule(m); err != nil {
		return fmt.Errorf("%w: module %q", err, m.ID)
	}
	m = cloneModule(m)

	p.mu.Lock()
	defer p.mu.Unlock()

	if m.Locator != "" {
		if owner, ok := p.byLocator[m.Locator]; ok && owner != m.ID {
			return fmt.Errorf("%w: locator %q already used by %q", ErrModuleMisconfigured, m.Locator, owner)
		}
	}
	if prev, ok := p.byID[m.ID]; ok && prev.Locator != "" {
		delete(p.byLocator, prev.Locator)
	}
	p.byID[m.ID] = m
	if m.Locator != "" {
		p.byLocator[m.Locator] = m.ID
	}
	return nil
}

func (p *StaticModuleProvider) FindModuleByID(_ context.Context, id string) (Module, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, ok := p.byID[id]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return cloneModule(m), nil
}

func (p *StaticModuleProvider) FindModuleByLocator(_ context.Context, locator string) (Module, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	id, ok := p.byLocator[locator]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return cloneModule(p.byID[id]), nil
}

func cloneModule(m Module) Module {
	if f, ok := m.Flag.(DynamicFlag); ok {
		m.Flag = DynamicFlag{Key: cloneBytes(f.Key)}
	}
	return m
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
