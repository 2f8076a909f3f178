package upgrade

import (
	"fmt"
	"sort"
	"strings"
)

// Implementation is a swappable unit of ledger logic.
type Implementation interface {
	ID() string
	Layout() Layout
}

// Registry holds the logic implementations an upgrade may switch to.
type Registry[T Implementation] struct {
	impls map[string]T
}

// NewRegistry returns an empty registry.
func NewRegistry[T Implementation]() *Registry[T] {
	return &Registry[T]{impls: make(map[string]T)}
}

// Register adds impl under its ID.
func (r *Registry[T]) Register(impl T) error {
	id := strings.TrimSpace(impl.ID())
	if id == "" {
		return fmt.Errorf("%w: empty logic reference", ErrInvalidLayout)
	}
	if err := impl.Layout().Validate(); err != nil {
		return fmt.Errorf("logic %s: %w", id, err)
	}
	if _, exists := r.impls[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLogic, id)
	}
	r.impls[id] = impl
	return nil
}

// Lookup resolves a logic reference.
func (r *Registry[T]) Lookup(ref string) (T, error) {
	impl, ok := r.impls[strings.TrimSpace(ref)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrUnknownLogic, ref)
	}
	return impl, nil
}

// IDs lists registered references in sorted order.
func (r *Registry[T]) IDs() []string {
	ids := make([]string, 0, len(r.impls))
	for id := range r.impls {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
