package detector

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Factory builds a backend from its free-form options map.
type Factory func(options map[string]interface{}, logger *zap.Logger) (Detector, error)

// Registry maps backend names to factories
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// NewDefaultRegistry returns a registry with the built-in backends registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(PoseLandmarkBackend, NewPoseClientFromOptions)
	return r
}

func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("cannot register nil factory")
	}
	if name == "" {
		return fmt.Errorf("backend name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %s is already registered", name)
	}

	r.factories[name] = factory
	return nil
}

// New constructs the named backend.
func (r *Registry) New(name string, options map[string]interface{}, logger *zap.Logger) (Detector, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown detector backend: %s", name)
	}
	d, err := factory(options, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create detector %s: %w", name, err)
	}
	return d, nil
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
