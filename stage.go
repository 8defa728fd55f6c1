package pipeline

import (
	"fmt"
	"slices"
)

// buildStages partitions the leveled order into stages. A system joins the
// current stage while everything it requires was produced by an earlier
// stage; otherwise the current stage is closed and a new one is started.
//
// A system still unsatisfied right after a flush means the order was not
// topological. That is a defect in the leveler and panics with *InternalError.
func buildStages(order []*systemMeta, registry *stateRegistry) [][]*systemMeta {
	var (
		stages        [][]*systemMeta
		current       []*systemMeta
		producedSoFar Bitmask
	)

	flush := func() {
		if len(current) == 0 {
			return
		}
		for _, m := range current {
			producedSoFar.Or(m.Access.Writes)
		}
		stages = append(stages, current)
		current = nil
	}

	for _, m := range order {
		if producedSoFar.ContainsAll(m.Access.Reads) {
			current = append(current, m)
			continue
		}

		flush()
		if missing := m.Access.Reads.AndNot(producedSoFar); !missing.IsZero() {
			panic(&InternalError{
				System: m.spec.id,
				Msg:    fmt.Sprintf("requirements %v unmet after stage flush", statesOf(missing, registry)),
			})
		}
		current = []*systemMeta{m}
	}
	flush()

	return stages
}

// splitExclusive moves every system that must run alone out of multi-member
// stages. Each one becomes a single-member stage placed before the parallel
// members it was grouped with. An exclusive system never passes an earlier
// member it conflicts with: those members are closed into their own stage
// first, so every conflicting pair keeps its leveled order.
func splitExclusive(stages [][]*systemMeta) [][]*systemMeta {
	out := make([][]*systemMeta, 0, len(stages))
	for _, stage := range stages {
		if len(stage) < 2 {
			out = append(out, stage)
			continue
		}

		var rest []*systemMeta
		for _, m := range stage {
			if m.spec.allowParallel {
				rest = append(rest, m)
				continue
			}
			if slices.ContainsFunc(rest, func(p *systemMeta) bool { return m.Access.Conflicts(&p.Access) }) {
				out = append(out, rest)
				rest = nil
			}
			out = append(out, []*systemMeta{m})
		}
		if len(rest) > 0 {
			out = append(out, rest)
		}
	}
	return out
}

// splitHazards separates co-staged systems that touch the same state, which
// happens when a state has several producers. Each system is placed in the
// sub-stage right after the last earlier member it conflicts with, so every
// conflicting pair keeps its leveled order.
func splitHazards(stages [][]*systemMeta) [][]*systemMeta {
	out := make([][]*systemMeta, 0, len(stages))
	for _, stage := range stages {
		if len(stage) < 2 {
			out = append(out, stage)
			continue
		}

		var batches [][]*systemMeta
		placed := make([]int, len(stage))
		for i, candidate := range stage {
			batch := 0
			for j := 0; j < i; j++ {
				if placed[j] >= batch && candidate.Access.Conflicts(&stage[j].Access) {
					batch = placed[j] + 1
				}
			}
			if batch == len(batches) {
				batches = append(batches, nil)
			}
			batches[batch] = append(batches[batch], candidate)
			placed[i] = batch
		}
		out = append(out, batches...)
	}
	return out
}

// statesOf resolves the IDs in m back to their states.
func statesOf(m Bitmask, registry *stateRegistry) []ResourceState {
	ids := m.IDs()
	out := make([]ResourceState, len(ids))
	for i, id := range ids {
		out[i] = registry.state(id)
	}
	return out
}
