package pipeline

import (
	"fmt"
	"reflect"
	"slices"
)

// SystemID identifies a system within a pipeline.
type SystemID string

// SystemSpec is the declaration of one schedulable system: the states it
// requires before running, the states it produces, and whether it may share
// a stage with other systems.
//
// A SystemSpec is read-only once handed to Build. Accessors return copies.
type SystemSpec struct {
	id            SystemID
	required      []ResourceState
	produced      []ResourceState
	allowParallel bool
}

// ID returns the system identity.
func (s *SystemSpec) ID() SystemID { return s.id }

// Required returns the states this system reads.
func (s *SystemSpec) Required() []ResourceState { return slices.Clone(s.required) }

// Produced returns the states this system writes.
func (s *SystemSpec) Produced() []ResourceState { return slices.Clone(s.produced) }

// AllowParallel reports whether the system may share a stage.
func (s *SystemSpec) AllowParallel() bool { return s.allowParallel }

// Expanded reports whether no wildcard requirement remains.
func (s *SystemSpec) Expanded() bool {
	return !slices.ContainsFunc(s.required, ResourceState.IsWildcard)
}

func (s *SystemSpec) String() string {
	return fmt.Sprintf("%s(requires=%v, produces=%v, parallel=%t)", s.id, s.required, s.produced, s.allowParallel)
}

// clone returns a deep copy so the builder can hand out read-only specs.
func (s *SystemSpec) clone() *SystemSpec {
	return &SystemSpec{
		id:            s.id,
		required:      slices.Clone(s.required),
		produced:      slices.Clone(s.produced),
		allowParallel: s.allowParallel,
	}
}

// SystemSpecifier accumulates the declaration of one system. Every method
// returns the same specifier for chaining; Build returns the owner the
// system was declared on (a *Builder or a *Bundle).
type SystemSpecifier[O any] struct {
	spec  *SystemSpec
	owner O
}

func newSpecifier[O any](spec *SystemSpec, owner O) *SystemSpecifier[O] {
	return &SystemSpecifier[O]{spec: spec, owner: owner}
}

func newSpec(id SystemID) *SystemSpec {
	return &SystemSpec{id: id, allowParallel: true}
}

// Build completes the system declaration and returns its owner.
func (s *SystemSpecifier[O]) Build() O {
	return s.owner
}

// ID returns the identity of the system being declared.
func (s *SystemSpecifier[O]) ID() SystemID { return s.spec.id }

// Requires declares that the system reads resource in state before running.
// Declaring the same state twice is a no-op.
func (s *SystemSpecifier[O]) Requires(resource, state Identifier) *SystemSpecifier[O] {
	rs := State(resource, state)
	if !slices.Contains(s.spec.required, rs) {
		s.spec.required = append(s.spec.required, rs)
	}
	return s
}

// RequiresDefault declares a requirement on the default sub-state of resource.
func (s *SystemSpecifier[O]) RequiresDefault(resource Identifier) *SystemSpecifier[O] {
	return s.Requires(resource, DefaultState)
}

// RequiresAll declares a requirement on every produced sub-state of
// resource. It is expanded to concrete states when the pipeline is built.
func (s *SystemSpecifier[O]) RequiresAll(resource Identifier) *SystemSpecifier[O] {
	return s.Requires(resource, AnyState)
}

// Produces declares that the system writes resource in state.
// Producing the wildcard is a programming error and panics.
func (s *SystemSpecifier[O]) Produces(resource, state Identifier) *SystemSpecifier[O] {
	rs := State(resource, state)
	if rs.IsWildcard() {
		panic(fmt.Sprintf("pipeline: system %s cannot produce wildcard state of %s", s.spec.id, resource))
	}
	if !slices.Contains(s.spec.produced, rs) {
		s.spec.produced = append(s.spec.produced, rs)
	}
	return s
}

// ProducesDefault declares that the system writes the default sub-state of
// resource, for resources whose callers do not distinguish sub-states.
func (s *SystemSpecifier[O]) ProducesDefault(resource Identifier) *SystemSpecifier[O] {
	return s.Produces(resource, DefaultState)
}

// Parallel allows the system to run concurrently with other members of its
// stage. This is the default.
func (s *SystemSpecifier[O]) Parallel() *SystemSpecifier[O] {
	s.spec.allowParallel = true
	return s
}

// InSequence forces the system into a stage of its own.
func (s *SystemSpecifier[O]) InSequence() *SystemSpecifier[O] {
	s.spec.allowParallel = false
	return s
}

// Spec returns a snapshot of the declaration so far.
func (s *SystemSpecifier[O]) Spec() *SystemSpec {
	return s.spec.clone()
}

// typeID returns the SystemID derived from T's type name. Unnamed types
// yield an empty ID, which the builder rejects.
func typeID[T any]() SystemID {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return SystemID(t.Name())
}
