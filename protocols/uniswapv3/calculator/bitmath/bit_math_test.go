package bitmath

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pow2(n uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), n)
}

func randomNonZero(t *testing.T) *uint256.Int {
	t.Helper()
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	require.NoError(t, err)
	if n.Sign() == 0 {
		n.SetInt64(1)
	}
	return uint256.MustFromBig(n)
}

func TestMostSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    *uint256.Int
		expected uint8
		err      error
	}{
		{"Input 1", uint256.NewInt(1), 0, nil},
		{"Input 2", uint256.NewInt(2), 1, nil},
		{"Input 3", uint256.NewInt(3), 1, nil},
		{"Input 255", uint256.NewInt(255), 7, nil},
		{"Input 256", uint256.NewInt(256), 8, nil},
		{"Large Number (2^128 - 1)", new(uint256.Int).SubUint64(pow2(128), 1), 127, nil},
		{"Large Number (2^128)", pow2(128), 128, nil},
		{"Max Uint256", new(uint256.Int).SetAllOne(), 255, nil},
		{"Error on Zero", uint256.NewInt(0), 0, ErrInputIsZero},
		{"Error on Nil", nil, 0, ErrInputIsNil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := MostSignificantBit(tc.input)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestLeastSignificantBit(t *testing.T) {
	testCases := []struct {
		name     string
		input    *uint256.Int
		expected uint8
		err      error
	}{
		{"Input 1", uint256.NewInt(1), 0, nil},
		{"Input 2", uint256.NewInt(2), 1, nil},
		{"Input 3", uint256.NewInt(3), 0, nil},
		{"Input 8", uint256.NewInt(8), 3, nil},
		{"Input 10", uint256.NewInt(10), 1, nil},
		{"Large Number (2^128)", pow2(128), 128, nil},
		{"Large Number (2^128 + 2^64)", new(uint256.Int).Or(pow2(128), pow2(64)), 64, nil},
		{"Top bit only", pow2(255), 255, nil},
		{"Error on Zero", uint256.NewInt(0), 0, ErrInputIsZero},
		{"Error on Nil", nil, 0, ErrInputIsNil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := LeastSignificantBit(tc.input)
			if tc.err != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
		})
	}
}

func TestMostSignificantBit_Invariant(t *testing.T) {
	for i := 0; i < 1000; i++ {
		input := randomNonZero(t)

		msb, err := MostSignificantBit(input)
		require.NoError(t, err)

		// input >= 2**msb
		assert.False(t, input.Lt(pow2(uint(msb))), "input %s should be >= 2**%d", input, msb)

		// msb == 255 || input < 2**(msb + 1)
		if msb < 255 {
			assert.True(t, input.Lt(pow2(uint(msb)+1)), "input %s should be < 2**%d", input, msb+1)
		}
	}
}

func TestLeastSignificantBit_Invariant(t *testing.T) {
	for i := 0; i < 1000; i++ {
		input := randomNonZero(t)

		lsb, err := LeastSignificantBit(input)
		require.NoError(t, err)

		// (input & 2**lsb) != 0
		bit := pow2(uint(lsb))
		assert.False(t, new(uint256.Int).And(input, bit).IsZero(), "(input %s & 2**%d) should not be zero", input, lsb)

		// (input & (2**lsb - 1)) == 0
		mask := new(uint256.Int).SubUint64(bit, 1)
		assert.True(t, new(uint256.Int).And(input, mask).IsZero(), "(input %s & (2**%d - 1)) should be zero", input, lsb)
	}
}
