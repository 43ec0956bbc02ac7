package bitmath

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

var (
	// ErrInputIsZero is returned when a function requires a non-zero input but receives zero.
	ErrInputIsZero = errors.New("input must be greater than zero")
	// ErrInputIsNil is returned when a function receives a nil pointer.
	ErrInputIsNil = errors.New("input cannot be nil")
)

// MostSignificantBit returns the index of the most significant bit of the number,
// where the least significant bit is at index 0.
// This function is the Go equivalent of the Solidity BitMath.mostSignificantBit function.
//
// The function satisfies the property: x >= 2**msb(x) and x < 2**(msb(x)+1)
func MostSignificantBit(x *uint256.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.IsZero() {
		return 0, ErrInputIsZero
	}

	// BitLen of 8 (0b1000) is 4 while its msb sits at index 3.
	return uint8(x.BitLen() - 1), nil
}

// LeastSignificantBit returns the index of the least significant bit of the number,
// where the least significant bit is at index 0.
// This function is the Go equivalent of the Solidity BitMath.leastSignificantBit function.
//
// The function satisfies the property: (x & 2**lsb(x)) != 0
func LeastSignificantBit(x *uint256.Int) (uint8, error) {
	if x == nil {
		return 0, ErrInputIsNil
	}
	if x.IsZero() {
		return 0, ErrInputIsZero
	}

	// uint256.Int is four little-endian 64-bit limbs, so the first
	// non-zero limb holds the lowest set bit.
	for i, limb := range x {
		if limb != 0 {
			return uint8(i*64 + bits.TrailingZeros64(limb)), nil
		}
	}

	return 0, ErrInputIsZero
}
