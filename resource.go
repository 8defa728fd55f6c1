package pipeline

import (
	"fmt"
	"strings"
)

// Identifier names a resource or one of its sub-states.
type Identifier string

const (
	// AnyState is the wildcard sub-state. It matches every sub-state of a
	// resource and may only appear in a requirement before expansion.
	AnyState Identifier = "*"

	// DefaultState is the implicit sub-state used when a resource is
	// declared without one.
	DefaultState Identifier = "Default"
)

// ResourceState identifies one readable/writable facet of a shared resource.
// It is a plain value: two states are equal iff both fields match.
type ResourceState struct {
	Resource Identifier
	State    Identifier
}

// State returns the ResourceState for resource in the given sub-state.
func State(resource, state Identifier) ResourceState {
	return ResourceState{Resource: resource, State: state}
}

// IsWildcard reports whether rs matches every sub-state of its resource.
func (rs ResourceState) IsWildcard() bool {
	return rs.State == AnyState
}

// String renders rs as "Resource.State". The default sub-state is omitted.
func (rs ResourceState) String() string {
	if rs.State == DefaultState || rs.State == "" {
		return string(rs.Resource)
	}
	return string(rs.Resource) + "." + string(rs.State)
}

// ParseResourceState parses the textual form produced by String.
// "Terrain.Height" is a concrete state, "Terrain.*" is a wildcard and a bare
// "Terrain" selects DefaultState.
func ParseResourceState(s string) (ResourceState, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ResourceState{}, fmt.Errorf("%w: empty resource state", ErrInvalidState)
	}

	resource, state, found := strings.Cut(s, ".")
	resource = strings.TrimSpace(resource)
	state = strings.TrimSpace(state)
	if resource == "" {
		return ResourceState{}, fmt.Errorf("%w: missing resource in %q", ErrInvalidState, s)
	}
	if resource == string(AnyState) {
		return ResourceState{}, fmt.Errorf("%w: resource cannot be a wildcard in %q", ErrInvalidState, s)
	}
	if !found {
		return State(Identifier(resource), DefaultState), nil
	}
	if state == "" || strings.Contains(state, ".") {
		return ResourceState{}, fmt.Errorf("%w: malformed sub-state in %q", ErrInvalidState, s)
	}
	return State(Identifier(resource), Identifier(state)), nil
}
