package pipeline

import (
	"fmt"
	"sync"
)

// Resolver produces the runtime binding for a declared system.
// Build calls Resolve exactly once per system.
type Resolver[B any] interface {
	Resolve(id SystemID) (B, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc[B any] func(id SystemID) (B, error)

// Resolve calls f(id).
func (f ResolverFunc[B]) Resolve(id SystemID) (B, error) {
	return f(id)
}

// Registry is a Resolver backed by constructor functions keyed by SystemID.
type Registry[B any] struct {
	mu    sync.RWMutex
	ctors map[SystemID]func() B
}

// NewRegistry creates an empty registry.
func NewRegistry[B any]() *Registry[B] {
	return &Registry[B]{ctors: make(map[SystemID]func() B)}
}

// ProvideNamed registers ctor for id, replacing any previous constructor.
func (r *Registry[B]) ProvideNamed(id SystemID, ctor func() B) *Registry[B] {
	r.mu.Lock()
	r.ctors[id] = ctor
	r.mu.Unlock()
	return r
}

// Resolve constructs the binding registered for id.
func (r *Registry[B]) Resolve(id SystemID) (B, error) {
	r.mu.RLock()
	ctor, ok := r.ctors[id]
	r.mu.RUnlock()

	if !ok {
		var zero B
		return zero, fmt.Errorf("%w: no constructor for %s", ErrUnresolved, id)
	}
	return ctor(), nil
}

// Len returns the number of registered constructors.
func (r *Registry[B]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ctors)
}

// Provide registers ctor under the SystemID derived from T, the same ID
// System[T] declares.
//
// Example:
//
//	pipeline.Provide(reg, func() *Physics { return &Physics{Gravity: 9.81} })
func Provide[T any, B any](r *Registry[B], ctor func() T) *Registry[B] {
	return r.ProvideNamed(typeID[T](), func() B {
		v := ctor()
		b, ok := any(v).(B)
		if !ok {
			panic(fmt.Sprintf("pipeline: %T does not implement the registry binding type", v))
		}
		return b
	})
}
