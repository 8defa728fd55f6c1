package pipeline

// systemMeta holds the per-build metadata computed for one expanded spec.
// It is computed once in Build and discarded with the builder state.
type systemMeta struct {
	spec *SystemSpec

	// Access for conflict detection
	Access AccessMeta
}

// AccessMeta describes which interned states a system reads and writes.
type AccessMeta struct {
	Reads  Bitmask
	Writes Bitmask
}

// newAccessMeta interns the spec's states through the registry.
func newAccessMeta(spec *SystemSpec, registry *stateRegistry) AccessMeta {
	return AccessMeta{
		Reads:  registry.mask(spec.required),
		Writes: registry.mask(spec.produced),
	}
}

// Conflicts reports whether two systems touch the same state as
// writer/reader, writer/writer or reader/writer.
func (a *AccessMeta) Conflicts(other *AccessMeta) bool {
	return a.Writes.ContainsAny(other.Reads) ||
		a.Writes.ContainsAny(other.Writes) ||
		a.Reads.ContainsAny(other.Writes)
}
