package pipeline

import (
	"math/bits"
)

// Bitmask is a growable set of interned state IDs.
// The zero value is an empty set.
type Bitmask []uint64

// Set sets the bit for id, growing the mask as needed.
func (m *Bitmask) Set(id StateID) {
	word := int(id / 64)
	if word >= len(*m) {
		grown := make(Bitmask, word+1)
		copy(grown, *m)
		*m = grown
	}
	(*m)[word] |= 1 << (id % 64)
}

// Has reports whether the bit for id is set.
func (m Bitmask) Has(id StateID) bool {
	word := int(id / 64)
	if word >= len(m) {
		return false
	}
	return m[word]&(1<<(id%64)) != 0
}

// ContainsAll reports whether every bit set in other is also set in m.
func (m Bitmask) ContainsAll(other Bitmask) bool {
	for i, w := range other {
		var have uint64
		if i < len(m) {
			have = m[i]
		}
		if have&w != w {
			return false
		}
	}
	return true
}

// ContainsAny reports whether any bit set in other is also set in m.
func (m Bitmask) ContainsAny(other Bitmask) bool {
	n := min(len(m), len(other))
	for i := 0; i < n; i++ {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// Or folds every bit of other into m.
func (m *Bitmask) Or(other Bitmask) {
	if len(other) > len(*m) {
		grown := make(Bitmask, len(other))
		copy(grown, *m)
		*m = grown
	}
	for i, w := range other {
		(*m)[i] |= w
	}
}

// AndNot returns the bits set in m but not in other.
func (m Bitmask) AndNot(other Bitmask) Bitmask {
	out := make(Bitmask, len(m))
	for i, w := range m {
		if i < len(other) {
			w &^= other[i]
		}
		out[i] = w
	}
	return out
}

// IsZero reports whether no bits are set.
func (m Bitmask) IsZero() bool {
	for _, w := range m {
		if w != 0 {
			return false
		}
	}
	return true
}

// Count returns the number of bits set.
func (m Bitmask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// IDs returns the set bits in ascending order.
func (m Bitmask) IDs() []StateID {
	out := make([]StateID, 0, m.Count())
	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, StateID(i*64+b))
			w &^= 1 << b
		}
	}
	return out
}
