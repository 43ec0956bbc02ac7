package liquiditymath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
	ErrNilDelta           = errors.New("liquidity delta is nil")
)

// AddDelta adds a signed liquidity delta to an unsigned liquidity value,
// returning an error if the operation results in an overflow or underflow.
// dest is left untouched on error.
func AddDelta(dest *uint256.Int, x *uint256.Int, delta *big.Int) error {
	if delta == nil {
		return ErrNilDelta
	}

	var abs uint256.Int
	if overflow := abs.SetFromBig(new(big.Int).Abs(delta)); overflow {
		if delta.Sign() < 0 {
			return ErrLiquidityUnderflow
		}
		return ErrLiquidityOverflow
	}

	var result uint256.Int
	if delta.Sign() < 0 {
		if _, underflow := result.SubOverflow(x, &abs); underflow {
			return ErrLiquidityUnderflow
		}
	} else {
		if _, overflow := result.AddOverflow(x, &abs); overflow {
			return ErrLiquidityOverflow
		}
	}

	dest.Set(&result)
	return nil
}

// SubDelta applies the negation of delta. Crossing a tick downwards removes
// the liquidity that crossing it upwards would add.
func SubDelta(dest *uint256.Int, x *uint256.Int, delta *big.Int) error {
	if delta == nil {
		return ErrNilDelta
	}
	return AddDelta(dest, x, new(big.Int).Neg(delta))
}
