package pipeline

// Bundle groups related system declarations under a name. Bundles are
// attached to a Builder and keep their internal declaration order.
//
//	render := pipeline.NewBundle("render")
//	pipeline.System[GBufferPass](render).
//	    Requires("Camera", "Updated").
//	    Produces("GBuffer", "Written").
//	    InSequence().
//	    Build()
//
//	b.Bundle(render)
type Bundle struct {
	name  string
	specs []*SystemSpec
}

// NewBundle creates an empty bundle.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// SystemNamed declares a system by explicit ID.
func (b *Bundle) SystemNamed(id SystemID) *SystemSpecifier[*Bundle] {
	return newSpecifier(b.declare(id), b)
}

// Systems returns a snapshot of the declarations in this bundle.
func (b *Bundle) Systems() []*SystemSpec {
	out := make([]*SystemSpec, len(b.specs))
	for i, s := range b.specs {
		out[i] = s.clone()
	}
	return out
}

// Len returns the number of declared systems.
func (b *Bundle) Len() int {
	return len(b.specs)
}

func (b *Bundle) declare(id SystemID) *SystemSpec {
	s := newSpec(id)
	b.specs = append(b.specs, s)
	return s
}

// declarer is implemented by everything systems can be declared on.
type declarer interface {
	declare(id SystemID) *SystemSpec
}

// System declares a system whose ID is the type name of T on a *Builder or
// a *Bundle, and returns its specifier.
//
// The ID is the unqualified name with pointers stripped: *render.Shade and
// render.Shade both become "Shade", and a generic instantiation keeps its
// type arguments, e.g. "Blur[float32]". Two types of the same name from
// different packages therefore collide and fail the build with
// ErrDuplicateSystem; declare one of them with SystemNamed instead.
func System[T any, O declarer](owner O) *SystemSpecifier[O] {
	return newSpecifier(owner.declare(typeID[T]()), owner)
}
