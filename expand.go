package pipeline

import (
	"slices"
)

// expandWildcards resolves every RequiresAll entry into the concrete states
// other systems produce for that resource. The input specs are not modified.
//
// A wildcard that matches no producer has no concrete expansion; it is
// reported as ErrUnsatisfiable rather than treated as "no dependency".
func expandWildcards(specs []*SystemSpec) ([]*SystemSpec, error) {
	// producers maps resource -> distinct sub-states, in first-declared order,
	// together with the systems producing each of them.
	type produced struct {
		state ResourceState
		by    []SystemID
	}
	producers := make(map[Identifier][]*produced)
	for _, s := range specs {
		for _, rs := range s.produced {
			list := producers[rs.Resource]
			idx := slices.IndexFunc(list, func(p *produced) bool { return p.state == rs })
			if idx < 0 {
				list = append(list, &produced{state: rs})
				idx = len(list) - 1
				producers[rs.Resource] = list
			}
			list[idx].by = append(list[idx].by, s.id)
		}
	}

	out := make([]*SystemSpec, len(specs))
	for i, s := range specs {
		if s.Expanded() {
			out[i] = s.clone()
			continue
		}

		expanded := s.clone()
		expanded.required = expanded.required[:0]
		for _, req := range s.required {
			if !req.IsWildcard() {
				if !slices.Contains(expanded.required, req) {
					expanded.required = append(expanded.required, req)
				}
				continue
			}

			matched := 0
			for _, p := range producers[req.Resource] {
				// A system never satisfies its own wildcard.
				if len(p.by) == 1 && p.by[0] == s.id {
					continue
				}
				matched++
				if !slices.Contains(expanded.required, p.state) {
					expanded.required = append(expanded.required, p.state)
				}
			}
			if matched == 0 {
				return nil, &BuildError{Kind: ErrUnsatisfiable, System: s.id, Resource: req.Resource}
			}
		}
		out[i] = expanded
	}
	return out, nil
}

// validateRequirements checks that every required state of every expanded
// spec is produced by some other system.
func validateRequirements(specs []*SystemSpec) error {
	producedBy := make(map[ResourceState][]SystemID)
	for _, s := range specs {
		for _, rs := range s.produced {
			producedBy[rs] = append(producedBy[rs], s.id)
		}
	}

	for _, s := range specs {
		for _, req := range s.required {
			if req.IsWildcard() {
				panic(&InternalError{System: s.id, Msg: "wildcard requirement survived expansion"})
			}
			by := producedBy[req]
			if len(by) == 0 || (len(by) == 1 && by[0] == s.id) {
				return &BuildError{Kind: ErrUnsatisfiable, System: s.id, Resource: req.Resource, Err: stateError(req)}
			}
		}
	}
	return nil
}

// stateError carries the exact missing state in BuildError.Err.
type stateError ResourceState

func (e stateError) Error() string {
	return "state " + ResourceState(e).String() + " is never produced"
}
