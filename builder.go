package pipeline

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Options configures a Builder.
type Options struct {
	// Logger receives the stage plan after each successful build.
	// Default: slog.Default().
	Logger *slog.Logger

	// HazardSplit separates co-staged systems that share a state through
	// multiple producers.
	// Default: true.
	HazardSplit bool
}

// defaultOptions returns sensible defaults.
func defaultOptions() Options {
	return Options{
		Logger:      slog.Default(),
		HazardSplit: true,
	}
}

// Option configures a Builder.
type Option func(*Options)

// WithLogger sets the logger that receives the stage plan.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithHazardSplit enables or disables splitting of stages whose members
// share a state with more than one producer.
func WithHazardSplit(enabled bool) Option {
	return func(o *Options) {
		o.HazardSplit = enabled
	}
}

// Builder collects system declarations and compiles them into a Pipeline.
// Use NewBuilder and chain declarations; call Build once everything is
// declared. A Builder is not safe for concurrent use.
type Builder[B any] struct {
	resolver Resolver[B]
	options  Options

	// decls holds systems and bundles in declaration order
	decls []declaration
}

// declaration is either a single system or an attached bundle.
type declaration struct {
	spec   *SystemSpec
	bundle *Bundle
}

// NewBuilder creates a builder resolving bindings through resolver.
func NewBuilder[B any](resolver Resolver[B], opts ...Option) *Builder[B] {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder[B]{
		resolver: resolver,
		options:  options,
	}
}

// SystemNamed declares a system by explicit ID.
func (b *Builder[B]) SystemNamed(id SystemID) *SystemSpecifier[*Builder[B]] {
	return newSpecifier(b.declare(id), b)
}

// Bundle attaches every system declared in bundle. Systems added to the
// bundle later are included too; the bundle is read when Build runs.
func (b *Builder[B]) Bundle(bundle *Bundle) *Builder[B] {
	b.decls = append(b.decls, declaration{bundle: bundle})
	return b
}

func (b *Builder[B]) declare(id SystemID) *SystemSpec {
	s := newSpec(id)
	b.decls = append(b.decls, declaration{spec: s})
	return s
}

// Specs returns a snapshot of every declaration in declaration order.
func (b *Builder[B]) Specs() []*SystemSpec {
	var out []*SystemSpec
	for _, d := range b.decls {
		if d.bundle != nil {
			out = append(out, d.bundle.Systems()...)
			continue
		}
		out = append(out, d.spec.clone())
	}
	return out
}

// Build compiles the declarations into an immutable Pipeline:
// wildcard expansion, requirement validation, leveling, stage building,
// exclusivity splitting, hazard splitting and binding resolution, in that
// order. No partial pipeline is returned on error.
func (b *Builder[B]) Build() (*Pipeline[B], error) {
	specs := b.Specs()
	if err := validateIDs(specs); err != nil {
		return nil, err
	}

	expanded, err := expandWildcards(specs)
	if err != nil {
		return nil, err
	}
	if err := validateRequirements(expanded); err != nil {
		return nil, err
	}

	registry := newStateRegistry()
	metas := make([]*systemMeta, len(expanded))
	for i, s := range expanded {
		metas[i] = &systemMeta{
			spec:   s,
			Access: newAccessMeta(s, registry),
		}
	}

	order, err := Level(len(metas), producerEdges(metas))
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			ids := make([]SystemID, len(cycle.Path))
			for i, n := range cycle.Path {
				ids[i] = metas[n].spec.id
			}
			return nil, &BuildError{Kind: ErrCycle, Systems: ids}
		}
		return nil, err
	}

	leveled := make([]*systemMeta, len(order))
	for i, n := range order {
		leveled[i] = metas[n]
	}

	stages := splitExclusive(buildStages(leveled, registry))
	if b.options.HazardSplit {
		stages = splitHazards(stages)
	}

	p := &Pipeline[B]{
		id:     uuid.New(),
		stages: make([]*Stage[B], len(stages)),
		specs:  make(map[SystemID]*SystemSpec, len(expanded)),
	}
	for i, members := range stages {
		st := &Stage[B]{
			index:    i,
			systems:  make([]SystemID, len(members)),
			bindings: make([]B, len(members)),
		}
		for j, m := range members {
			binding, err := b.resolver.Resolve(m.spec.id)
			if err != nil {
				return nil, &BuildError{Kind: ErrUnresolved, System: m.spec.id, Err: err}
			}
			st.systems[j] = m.spec.id
			st.bindings[j] = binding
			p.specs[m.spec.id] = m.spec
		}
		p.stages[i] = st
	}

	b.options.Logger.Info("pipeline: built stage plan",
		"id", p.id,
		"stages", len(p.stages),
		"systems", len(expanded),
		"plan", p.Plan())

	return p, nil
}

// MustBuild is like Build but panics on error.
func (b *Builder[B]) MustBuild() *Pipeline[B] {
	p, err := b.Build()
	if err != nil {
		panic("pipeline: failed to build systems: " + err.Error())
	}
	return p
}

// validateIDs rejects empty and duplicate system IDs.
func validateIDs(specs []*SystemSpec) error {
	seen := make(map[SystemID]struct{}, len(specs))
	for _, s := range specs {
		if s.id == "" {
			return &BuildError{Kind: ErrInvalidSystem, Err: errors.New("empty system ID")}
		}
		if _, ok := seen[s.id]; ok {
			return &BuildError{Kind: ErrDuplicateSystem, System: s.id}
		}
		seen[s.id] = struct{}{}
	}
	return nil
}

// producerEdges returns the predecessor accessor for Level: the predecessors
// of a system are the other systems producing any state it requires, in
// declaration order.
func producerEdges(metas []*systemMeta) func(int) []int {
	return func(i int) []int {
		var preds []int
		for j, other := range metas {
			if j != i && other.Access.Writes.ContainsAny(metas[i].Access.Reads) {
				preds = append(preds, j)
			}
		}
		return preds
	}
}
