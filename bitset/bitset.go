// Package bitset is a growable set of small non-negative integers.
package bitset

import "math/bits"

// BitSet grows on Set. The zero value is an empty set.
type BitSet []uint64

// NewBitSet returns a set with room for n bits before it has to grow.
func NewBitSet(n uint64) BitSet {
	return make(BitSet, (n+63)/64)
}

func (b BitSet) IsSet(index uint64) bool {
	word := index / 64
	if word >= uint64(len(b)) {
		return false
	}
	return b[word]&(uint64(1)<<(index%64)) != 0
}

// Set marks index, growing b when needed.
func (b *BitSet) Set(index uint64) {
	word := index / 64
	if word >= uint64(len(*b)) {
		grown := make(BitSet, word+1)
		copy(grown, *b)
		*b = grown
	}
	(*b)[word] |= uint64(1) << (index % 64)
}

func (b BitSet) Unset(index uint64) {
	word := index / 64
	if word >= uint64(len(b)) {
		return
	}
	b[word] &^= uint64(1) << (index % 64)
}

// FirstClear returns the smallest index that is not set.
func (b BitSet) FirstClear() uint64 {
	for i, w := range b {
		if w != ^uint64(0) {
			return uint64(i)*64 + uint64(bits.TrailingZeros64(^w))
		}
	}
	return uint64(len(b)) * 64
}

// Count returns the number of set bits.
func (b BitSet) Count() int {
	n := 0
	for _, w := range b {
		n += bits.OnesCount64(w)
	}
	return n
}

func (b BitSet) Clear() {
	for i := range b {
		b[i] = 0
	}
}
