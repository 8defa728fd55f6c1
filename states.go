package pipeline

// StateID is a dense index assigned to a ResourceState within one build.
type StateID uint32

// stateRegistry interns resource states to dense IDs so set membership in
// the stage builder and conflict checks is a bit test.
// IDs are assigned in first-seen order, which keeps them deterministic for
// a given declaration order.
type stateRegistry struct {
	ids    map[ResourceState]StateID
	states []ResourceState
}

func newStateRegistry() *stateRegistry {
	return &stateRegistry{ids: make(map[ResourceState]StateID)}
}

// register returns the ID for rs, assigning the next free one if needed.
func (r *stateRegistry) register(rs ResourceState) StateID {
	if id, ok := r.ids[rs]; ok {
		return id
	}
	id := StateID(len(r.states))
	r.ids[rs] = id
	r.states = append(r.states, rs)
	return id
}

// getID returns the ID for rs if it has been registered.
func (r *stateRegistry) getID(rs ResourceState) (StateID, bool) {
	id, ok := r.ids[rs]
	return id, ok
}

// state returns the ResourceState registered under id.
func (r *stateRegistry) state(id StateID) ResourceState {
	return r.states[id]
}

// mask registers every state in list and returns them as a Bitmask.
func (r *stateRegistry) mask(list []ResourceState) Bitmask {
	var m Bitmask
	for _, rs := range list {
		m.Set(r.register(rs))
	}
	return m
}
