// Package pipeline compiles a declarative list of systems into an ordered
// sequence of execution stages.
//
// Each system declares the resource states it requires before running and
// the states it produces. The builder orders systems so every producer runs
// in an earlier stage than its consumers, then groups independent systems
// into stages whose members may run concurrently:
//   - Stages run strictly in order, with a barrier between them
//   - Members of a stage never share a state as reader/writer or writer/writer
//   - A system marked InSequence always has a stage to itself
//   - The same declarations always produce the same plan
//
// # Quick Start
//
//	reg := pipeline.NewRegistry[pipeline.Runnable]()
//	pipeline.Provide(reg, func() *TerrainHeight { return &TerrainHeight{} })
//	pipeline.Provide(reg, func() *TerrainNormals { return &TerrainNormals{} })
//
//	b := pipeline.NewBuilder[pipeline.Runnable](reg)
//	pipeline.System[TerrainHeight](b).
//	    Produces("Terrain", "Height").
//	    Build()
//	pipeline.System[TerrainNormals](b).
//	    Requires("Terrain", "Height").
//	    Produces("Terrain", "Normals").
//	    Build()
//
//	p, err := b.Build()
//	if err != nil {
//	    return err
//	}
//	sched := pipeline.NewScheduler(p)
//	err = sched.RunFrame(ctx)
//
// # Wildcards
//
// RequiresAll(resource) depends on every sub-state any other system produces
// for resource. A wildcard nobody satisfies fails the build.
//
// # Errors
//
// Build reports configuration problems as *BuildError wrapping
// ErrUnsatisfiable, ErrCycle, ErrDuplicateSystem, ErrInvalidSystem or
// ErrUnresolved. A violated internal invariant panics with *InternalError.
package pipeline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Version is the pipeline package version.
const Version = "1.0.0"

// Stage is one group of systems executed between two barriers.
// All members may run concurrently.
type Stage[B any] struct {
	index    int
	systems  []SystemID
	bindings []B
}

// Index returns the stage position in the pipeline.
func (s *Stage[B]) Index() int { return s.index }

// Len returns the number of systems in the stage.
func (s *Stage[B]) Len() int { return len(s.systems) }

// Systems returns the member system IDs in stage order.
func (s *Stage[B]) Systems() []SystemID { return slices.Clone(s.systems) }

// Bindings returns the resolved bindings, parallel to Systems.
func (s *Stage[B]) Bindings() []B { return slices.Clone(s.bindings) }

// Binding returns the i-th binding.
func (s *Stage[B]) Binding(i int) B { return s.bindings[i] }

// Pipeline is the compiled, immutable stage plan.
// It is safe for concurrent read access.
type Pipeline[B any] struct {
	id     uuid.UUID
	stages []*Stage[B]
	specs  map[SystemID]*SystemSpec
}

// ID returns the unique build ID of this pipeline.
func (p *Pipeline[B]) ID() uuid.UUID { return p.id }

// Len returns the number of stages.
func (p *Pipeline[B]) Len() int { return len(p.stages) }

// Stage returns the i-th stage.
func (p *Pipeline[B]) Stage(i int) *Stage[B] { return p.stages[i] }

// Stages returns the stages in execution order.
func (p *Pipeline[B]) Stages() []*Stage[B] { return slices.Clone(p.stages) }

// Systems returns every system ID in execution order.
func (p *Pipeline[B]) Systems() []SystemID {
	var out []SystemID
	for _, st := range p.stages {
		out = append(out, st.systems...)
	}
	return out
}

// StageOf returns the index of the stage containing id.
func (p *Pipeline[B]) StageOf(id SystemID) (int, bool) {
	for _, st := range p.stages {
		if slices.Contains(st.systems, id) {
			return st.index, true
		}
	}
	return 0, false
}

// Spec returns the expanded declaration of id.
func (p *Pipeline[B]) Spec(id SystemID) (*SystemSpec, bool) {
	s, ok := p.specs[id]
	if !ok {
		return nil, false
	}
	return s.clone(), true
}

// Layout returns the system IDs of every stage, in order.
func (p *Pipeline[B]) Layout() [][]SystemID {
	out := make([][]SystemID, len(p.stages))
	for i, st := range p.stages {
		out[i] = st.Systems()
	}
	return out
}

// Plan returns the human-readable stage plan, one line per stage:
//
//	stage 0: TerrainHeight, CameraUpdate
//	stage 1: TerrainNormals
func (p *Pipeline[B]) Plan() string {
	var b strings.Builder
	for i, st := range p.stages {
		if i > 0 {
			b.WriteByte('\n')
		}
		names := make([]string, len(st.systems))
		for j, id := range st.systems {
			names[j] = string(id)
		}
		fmt.Fprintf(&b, "stage %d: %s", st.index, strings.Join(names, ", "))
	}
	return b.String()
}

func (p *Pipeline[B]) String() string {
	return fmt.Sprintf("Pipeline{ID: %s, Stages: %d}", p.id, len(p.stages))
}
