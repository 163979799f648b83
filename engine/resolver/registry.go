package resolver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/llm"
)

var (
	// ErrConstructorNil indicates a nil constructor registration attempt.
	ErrConstructorNil = errors.New("resolver: constructor must not be nil")
	// ErrNameEmpty indicates a registration with an empty identifier.
	ErrNameEmpty = errors.New("resolver: strategy identifier must not be empty")
	// ErrAlreadyRegistered indicates a duplicate registration.
	ErrAlreadyRegistered = errors.New("resolver: strategy already registered")
)

// Deps holds the collaborators strategy constructors may use.
type Deps struct {
	Store     graph.Store
	Generator llm.Generator
}

// Constructor builds a strategy from its dependencies.
type Constructor func(deps *Deps) Strategy

// Registry maps strategy identifiers to constructors. It is populated
// explicitly at startup; configuration selects identifiers and their
// priority order, never arbitrary code paths.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty strategy registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register adds a constructor under an identifier, guarding duplicates.
func (r *Registry) Register(name string, ctor Constructor) error {
	key := canonicalName(name)
	if key == "" {
		return ErrNameEmpty
	}
	if ctor == nil {
		return ErrConstructorNil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ctors[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.ctors[key] = ctor
	return nil
}

// Build constructs a chain from identifiers in priority order.
func (r *Registry) Build(names []string, deps *Deps) (*Chain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		ctor, ok := r.ctors[canonicalName(name)]
		if !ok {
			return nil, fmt.Errorf("resolver: strategy %q is not registered", name)
		}
		strategies = append(strategies, ctor(deps))
	}
	return NewChain(strategies...), nil
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
