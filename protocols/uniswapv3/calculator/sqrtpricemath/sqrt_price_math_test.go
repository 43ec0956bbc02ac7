package sqrtpricemath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRandInt generates a random uint256 of up to the given number of bits.
func newRandInt(t *testing.T, bits int) *uint256.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), uint(bits)))
	require.NoError(t, err)
	return uint256.MustFromBig(n)
}

func TestAmountPossible(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	twoQ96 := new(uint256.Int).Lsh(Q96, 1)
	halfQ96 := new(uint256.Int).Rsh(Q96, 1)

	t.Run("upwards is linear in the price difference", func(t *testing.T) {
		dest := new(uint256.Int)
		require.NoError(t, AmountPossible(dest, true, liquidity, Q96, twoQ96))
		// L * (2Q - Q) / Q == L
		assert.True(t, dest.Eq(liquidity), "got %s", dest.Dec())
	})

	t.Run("downwards uses the reciprocal prices", func(t *testing.T) {
		dest := new(uint256.Int)
		require.NoError(t, AmountPossible(dest, false, liquidity, Q96, halfQ96))
		// L * (Q - Q/2) / (Q * Q/2) * Q == L
		assert.True(t, dest.Eq(liquidity), "got %s", dest.Dec())
	})

	t.Run("no movement consumes nothing", func(t *testing.T) {
		dest := uint256.NewInt(5)
		require.NoError(t, AmountPossible(dest, true, liquidity, Q96, Q96))
		assert.True(t, dest.IsZero())
		require.NoError(t, AmountPossible(dest, false, liquidity, Q96, Q96))
		assert.True(t, dest.IsZero())
	})

	t.Run("wrong direction fails", func(t *testing.T) {
		dest := new(uint256.Int)
		assert.ErrorIs(t, AmountPossible(dest, true, liquidity, twoQ96, Q96), ErrPriceDirection)
		assert.ErrorIs(t, AmountPossible(dest, false, liquidity, Q96, twoQ96), ErrPriceDirection)
	})

	t.Run("zero next price fails downwards", func(t *testing.T) {
		assert.ErrorIs(t, AmountPossible(new(uint256.Int), false, liquidity, Q96, new(uint256.Int)), ErrDivisionByZero)
	})

	t.Run("oversized liquidity overflows", func(t *testing.T) {
		huge := new(uint256.Int).SetAllOne()
		assert.ErrorIs(t, AmountPossible(new(uint256.Int), false, huge, Q96, halfQ96), ErrOverflow)
		max := new(uint256.Int).SetAllOne()
		assert.ErrorIs(t, AmountPossible(new(uint256.Int), true, huge, uint256.NewInt(0), max), ErrOverflow)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.ErrorIs(t, AmountPossible(nil, true, liquidity, Q96, Q96), ErrNilInput)
	})
}

func TestNextPriceFromAmount(t *testing.T) {
	liquidity := uint256.NewInt(1_000_000_000_000_000_000)
	amount := uint256.NewInt(1_000_000_000_000_000)

	t.Run("upwards", func(t *testing.T) {
		next := new(uint256.Int)
		require.NoError(t, NextPriceFromAmount(next, true, amount, liquidity, Q96))
		expected := new(uint256.Int).Add(Q96, new(uint256.Int).Div(Q96, uint256.NewInt(1000)))
		assert.True(t, next.Eq(expected), "got %s want %s", next.Dec(), expected.Dec())
	})

	t.Run("downwards", func(t *testing.T) {
		next := new(uint256.Int)
		require.NoError(t, NextPriceFromAmount(next, false, amount, liquidity, Q96))
		assert.True(t, next.Lt(Q96))
		// (L<<96) / (L + a) with price 1
		num := new(uint256.Int).Lsh(liquidity, 96)
		expected := new(uint256.Int).Div(num, new(uint256.Int).Add(liquidity, amount))
		assert.True(t, next.Eq(expected))
	})

	t.Run("zero amount leaves price unchanged", func(t *testing.T) {
		next := new(uint256.Int)
		require.NoError(t, NextPriceFromAmount(next, true, new(uint256.Int), liquidity, Q96))
		assert.True(t, next.Eq(Q96))
		require.NoError(t, NextPriceFromAmount(next, false, new(uint256.Int), liquidity, Q96))
		assert.True(t, next.Eq(Q96))
	})

	t.Run("zero liquidity", func(t *testing.T) {
		assert.ErrorIs(t, NextPriceFromAmount(new(uint256.Int), true, amount, new(uint256.Int), Q96), ErrLiquidityZero)
	})

	t.Run("zero price", func(t *testing.T) {
		assert.ErrorIs(t, NextPriceFromAmount(new(uint256.Int), false, amount, liquidity, new(uint256.Int)), ErrSqrtPriceZero)
	})

	t.Run("overflow", func(t *testing.T) {
		max := new(uint256.Int).SetAllOne()
		assert.ErrorIs(t, NextPriceFromAmount(new(uint256.Int), true, max, uint256.NewInt(1), Q96), ErrOverflow)
		assert.ErrorIs(t, NextPriceFromAmount(new(uint256.Int), false, amount, max, Q96), ErrOverflow)
	})
}

// Solving for a price and measuring the segment back must return the amount
// that was put in, give or take rounding.
func TestNextPriceFromAmount_Invariants(t *testing.T) {
	for i := 0; i < 500; i++ {
		zeroForOne := i%2 == 0
		current := newRandInt(t, 160)
		if current.Lt(uint256.NewInt(1 << 32)) {
			current.SetUint64(1 << 32)
		}
		liquidity := newRandInt(t, 128)
		if liquidity.IsZero() {
			liquidity.SetOne()
		}
		amount := newRandInt(t, 64)

		next := new(uint256.Int)
		if err := NextPriceFromAmount(next, zeroForOne, amount, liquidity, current); err != nil {
			continue
		}

		if zeroForOne {
			assert.False(t, next.Lt(current))
		} else {
			assert.False(t, current.Lt(next))
			if next.IsZero() {
				continue
			}
		}

		consumed := new(uint256.Int)
		if err := AmountPossible(consumed, zeroForOne, liquidity, current, next); err != nil {
			continue
		}
		if zeroForOne {
			assert.False(t, amount.Lt(consumed), "linear solve must not over-consume: %s > %s", consumed.Dec(), amount.Dec())
		}
	}
}
