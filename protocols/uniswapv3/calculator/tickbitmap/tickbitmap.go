// Package tickbitmap locates initialized ticks through 256-bit words, the
// layout used by the pool contract's tickBitmap mapping.
package tickbitmap

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
	"sort"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/bitmath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/ticks"
	"github.com/holiman/uint256"
)

var ErrInvalidTickSpacing = errors.New("tick spacing must be positive")

const wordBits = 256

// NormalizeTick compresses a tick by the tick spacing, rounding towards
// negative infinity. spacing must be positive.
func NormalizeTick(tick, spacing int32) int32 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q
}

// WordIndex returns the word holding a normalized tick.
func WordIndex(normalized int32) int16 {
	q := normalized / wordBits
	if normalized%wordBits != 0 && normalized < 0 {
		q--
	}
	return int16(q)
}

// BitPos returns the bit of a normalized tick within its word.
func BitPos(normalized int32) uint8 {
	r := normalized % wordBits
	if r < 0 {
		r += wordBits
	}
	return uint8(r)
}

// PosFromTick returns the word index for tick at the given spacing.
func PosFromTick(tick, spacing int32) int16 {
	return WordIndex(NormalizeTick(tick, spacing))
}

// ExtractTicks lists the ticks whose bits are set in word, ascending.
func ExtractTicks(word *uint256.Int, wordIdx int16, spacing int32) []int32 {
	if word == nil || word.IsZero() {
		return nil
	}
	var out []int32
	for i, limb := range word {
		for limb != 0 {
			bit := int32(i*64 + bits.TrailingZeros64(limb))
			out = append(out, (int32(wordIdx)*wordBits+bit)*spacing)
			limb &= limb - 1
		}
	}
	return out
}

// lowMask returns a word with bits [0, n) set. n == 256 sets every bit.
func lowMask(n uint) *uint256.Int {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), n)
	return m.Sub(m, uint256.NewInt(1))
}

// PoolWords is a sparse tick bitmap for one pool together with the
// liquidity net of the ticks it marks. It is not safe for concurrent use.
type PoolWords struct {
	spacing int32
	words   map[int16]uint256.Int
	nets    map[int32]*big.Int
}

// NewPoolWords creates an empty bitmap for the given tick spacing.
func NewPoolWords(spacing int32) (*PoolWords, error) {
	if spacing <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTickSpacing, spacing)
	}
	return &PoolWords{
		spacing: spacing,
		words:   make(map[int16]uint256.Int),
		nets:    make(map[int32]*big.Int),
	}, nil
}

// SetWord stores a whole word, as read from the pool's tickBitmap.
func (p *PoolWords) SetWord(idx int16, word *uint256.Int) {
	if word == nil || word.IsZero() {
		delete(p.words, idx)
		return
	}
	p.words[idx] = *word
}

// WordIndices returns the indices of all non-empty words, ascending.
func (p *PoolWords) WordIndices() []int16 {
	out := make([]int16, 0, len(p.words))
	for idx := range p.words {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SetLiquidityNet records the liquidity net of an initialized tick.
func (p *PoolWords) SetLiquidityNet(tick int32, net *big.Int) {
	if net == nil {
		delete(p.nets, tick)
		return
	}
	p.nets[tick] = new(big.Int).Set(net)
}

// NextInitializedTick searches the stored words for the next initialized
// tick. With lte it returns the largest initialized tick <= tick, otherwise
// the smallest initialized tick > tick. Only words that were stored are
// consulted; ticks outside them are unknown rather than uninitialized.
func (p *PoolWords) NextInitializedTick(tick int32, lte bool) (int32, bool) {
	if len(p.words) == 0 {
		return 0, false
	}

	compressed := NormalizeTick(tick, p.spacing)
	if !lte {
		compressed++
	}
	idx, pos := WordIndex(compressed), BitPos(compressed)

	if lte {
		if w, ok := p.words[idx]; ok {
			var masked uint256.Int
			masked.And(&w, lowMask(uint(pos)+1))
			if msb, err := bitmath.MostSignificantBit(&masked); err == nil {
				return p.tickAt(idx, int(msb)), true
			}
		}
		keys := p.WordIndices()
		for i := len(keys) - 1; i >= 0; i-- {
			if keys[i] >= idx {
				continue
			}
			w := p.words[keys[i]]
			msb, _ := bitmath.MostSignificantBit(&w)
			return p.tickAt(keys[i], int(msb)), true
		}
		return 0, false
	}

	if w, ok := p.words[idx]; ok {
		var masked uint256.Int
		masked.Not(lowMask(uint(pos)))
		masked.And(&masked, &w)
		if lsb, err := bitmath.LeastSignificantBit(&masked); err == nil {
			return p.tickAt(idx, int(lsb)), true
		}
	}
	for _, key := range p.WordIndices() {
		if key <= idx {
			continue
		}
		w := p.words[key]
		lsb, _ := bitmath.LeastSignificantBit(&w)
		return p.tickAt(key, int(lsb)), true
	}
	return 0, false
}

func (p *PoolWords) tickAt(idx int16, bit int) int32 {
	return (int32(idx)*wordBits + int32(bit)) * p.spacing
}

// Ticks flattens the bitmap into a tick set. Ticks without a recorded
// liquidity net are included as not loaded.
func (p *PoolWords) Ticks() ticks.Ticks {
	var out []ticks.Tick
	for _, idx := range p.WordIndices() {
		w := p.words[idx]
		for _, t := range ExtractTicks(&w, idx, p.spacing) {
			tk := ticks.Tick{Index: t}
			if net, ok := p.nets[t]; ok {
				tk.LiquidityNet = new(big.Int).Set(net)
			}
			out = append(out, tk)
		}
	}
	return ticks.New(out)
}
