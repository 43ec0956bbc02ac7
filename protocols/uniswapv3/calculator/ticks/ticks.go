// Package ticks holds the ordered set of known ticks of a concentrated
// liquidity pool.
package ticks

import (
	"math/big"
	"sort"
)

// Tick is a single initialized tick.
type Tick struct {
	Index int32 `json:"index"`
	// LiquidityNet is nil until the tick's liquidity has been loaded.
	// Stored values are never mutated; replace the Tick instead.
	LiquidityNet *big.Int `json:"liquidityNet,omitempty"`
}

// Loaded reports whether the tick's liquidity net is known.
func (t Tick) Loaded() bool {
	return t.LiquidityNet != nil
}

// Ticks is an ascending, duplicate-free sequence of ticks.
// The zero value is an empty set. Ticks is immutable: Insert returns a new value.
type Ticks struct {
	ticks []Tick
}

// New sorts and deduplicates ts by index. When an index appears more than
// once the last occurrence wins. ts is not modified.
func New(ts []Tick) Ticks {
	if len(ts) == 0 {
		return Ticks{}
	}
	sorted := make([]Tick, len(ts))
	copy(sorted, ts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	out := sorted[:0]
	for i := 0; i < len(sorted); i++ {
		// the stable sort keeps duplicates in input order, so the last of a run wins
		if i+1 < len(sorted) && sorted[i+1].Index == sorted[i].Index {
			continue
		}
		out = append(out, sorted[i])
	}
	return Ticks{ticks: out}
}

// Len returns the number of ticks.
func (t Ticks) Len() int {
	return len(t.ticks)
}

// At returns the tick at position i.
func (t Ticks) At(i int) (Tick, bool) {
	if i < 0 || i >= len(t.ticks) {
		return Tick{}, false
	}
	return t.ticks[i], true
}

// Index binary-searches for tick. If found it returns its position and true;
// otherwise it returns the position where it would be inserted and false.
func (t Ticks) Index(tick int32) (int, bool) {
	i := sort.Search(len(t.ticks), func(i int) bool {
		return t.ticks[i].Index >= tick
	})
	return i, i < len(t.ticks) && t.ticks[i].Index == tick
}

// Get returns the tick with the given index.
func (t Ticks) Get(tick int32) (Tick, bool) {
	i, ok := t.Index(tick)
	if !ok {
		return Tick{}, false
	}
	return t.ticks[i], true
}

// Insert merges other into t and returns the result. On an index present in
// both, the entry from other wins. Neither input is modified.
func (t Ticks) Insert(other Ticks) Ticks {
	if len(other.ticks) == 0 {
		return t
	}
	if len(t.ticks) == 0 {
		return other
	}

	merged := make([]Tick, 0, len(t.ticks)+len(other.ticks))
	i, j := 0, 0
	for i < len(t.ticks) && j < len(other.ticks) {
		switch a, b := t.ticks[i], other.ticks[j]; {
		case a.Index < b.Index:
			merged = append(merged, a)
			i++
		case a.Index > b.Index:
			merged = append(merged, b)
			j++
		default:
			merged = append(merged, b)
			i++
			j++
		}
	}
	merged = append(merged, t.ticks[i:]...)
	merged = append(merged, other.ticks[j:]...)
	return Ticks{ticks: merged}
}

// Slice returns a copy of the ticks in ascending order.
func (t Ticks) Slice() []Tick {
	out := make([]Tick, len(t.ticks))
	copy(out, t.ticks)
	return out
}

// Clone returns a deep copy, including the liquidity values.
func (t Ticks) Clone() Ticks {
	if len(t.ticks) == 0 {
		return Ticks{}
	}
	out := make([]Tick, len(t.ticks))
	for i, tk := range t.ticks {
		out[i] = Tick{Index: tk.Index}
		if tk.LiquidityNet != nil {
			out[i].LiquidityNet = new(big.Int).Set(tk.LiquidityNet)
		}
	}
	return Ticks{ticks: out}
}
