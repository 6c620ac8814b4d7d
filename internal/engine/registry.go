package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"speech-orchestrator/internal/domain"
)

// Factory constructs an adapter from a model descriptor.
type Factory func(desc domain.ModelDescriptor) (Adapter, error)

// Registry maps engine families to adapter factories. It holds no state
// beyond the registered factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.ModelKind]Factory
	log       zerolog.Logger
}

// NewRegistry creates an empty factory registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[domain.ModelKind]Factory),
		log:       log,
	}
}

// Register binds a factory to a family. Registering a family twice
// overwrites the previous factory; the overwrite is logged, not an error.
func (r *Registry) Register(kind domain.ModelKind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		r.log.Warn().Str("family", string(kind)).Msg("overwriting registered engine factory")
	}
	r.factories[kind] = factory
	r.log.Info().Str("family", string(kind)).Msg("registered engine factory")
}

// Create looks up the factory for the descriptor's kind and invokes it. A
// missing factory yields ErrUnknownFamily; any construction fault, including
// a panic inside the factory, is converted to a ConstructionError.
func (r *Registry) Create(desc domain.ModelDescriptor) (adapter Adapter, err error) {
	r.mu.RLock()
	factory, ok := r.factories[desc.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFamily, desc.Kind)
	}

	defer func() {
		if rec := recover(); rec != nil {
			adapter = nil
			err = &ConstructionError{Kind: desc.Kind, Err: fmt.Errorf("factory panic: %v", rec)}
		}
	}()

	adapter, err = factory(desc)
	if err != nil {
		return nil, &ConstructionError{Kind: desc.Kind, Err: err}
	}
	return adapter, nil
}
