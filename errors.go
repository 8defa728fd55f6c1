package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsatisfiable is returned when a system requires a state no other
	// system produces, including a wildcard that expands to nothing.
	ErrUnsatisfiable = errors.New("pipeline: unsatisfiable requirement")

	// ErrCycle is returned when produce/require edges form a cycle.
	ErrCycle = errors.New("pipeline: cyclic dependency")

	// ErrDuplicateSystem is returned when a system ID is declared twice.
	ErrDuplicateSystem = errors.New("pipeline: duplicate system")

	// ErrInvalidSystem is returned when a system has no usable ID.
	ErrInvalidSystem = errors.New("pipeline: invalid system")

	// ErrUnresolved is returned when the resolver has no binding for a system.
	ErrUnresolved = errors.New("pipeline: unresolved system")

	// ErrInvalidState is returned for malformed resource state notation.
	ErrInvalidState = errors.New("pipeline: invalid resource state")
)

// BuildError describes a configuration error found by Builder.Build.
// Kind is one of the sentinel errors above and is matched by errors.Is.
type BuildError struct {
	Kind     error
	System   SystemID
	Resource Identifier
	// Systems lists the members of a cycle, in cycle order.
	Systems []SystemID
	Err     error
}

func (e *BuildError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.System != "" {
		fmt.Fprintf(&b, ": system %s", e.System)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, ": resource %s", e.Resource)
	}
	if len(e.Systems) > 0 {
		names := make([]string, len(e.Systems))
		for i, id := range e.Systems {
			names[i] = string(id)
		}
		fmt.Fprintf(&b, ": %s", strings.Join(names, " -> "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *BuildError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// CycleError is returned by Level when the predecessor relation is cyclic.
// Path holds one witness cycle as node indices; the first index is repeated
// at the end.
type CycleError struct {
	Path []int
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, n := range e.Path {
		parts[i] = fmt.Sprint(n)
	}
	return "pipeline: cycle: " + strings.Join(parts, " -> ")
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// InternalError is the panic value raised when the scheduler breaks one of
// its own invariants. It signals a defect in this package, not bad input.
type InternalError struct {
	System SystemID
	Msg    string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("pipeline: internal consistency fault at system %s: %s", e.System, e.Msg)
}
