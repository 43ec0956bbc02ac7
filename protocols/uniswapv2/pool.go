package uniswapv2

import (
	"errors"

	"github.com/holiman/uint256"
)

// DefaultFee is the fee of the canonical constant-product pools, 0.3%.
const DefaultFee = 3000

var (
	ErrReserveOverflow  = errors.New("reserve overflow")
	ErrReserveUnderflow = errors.New("reserve underflow")
)

// State is the mutable state of a constant-product pool.
type State struct {
	Reserve0 uint256.Int `json:"reserve0"`
	Reserve1 uint256.Int `json:"reserve1"`
}

// NewState builds a state from two reserves.
func NewState(reserve0, reserve1 *uint256.Int) State {
	var s State
	s.Reserve0.Set(reserve0)
	s.Reserve1.Set(reserve1)
	return s
}

// Clone returns a copy of s. State holds no pointers so a value copy is deep.
func (s State) Clone() State {
	return s
}

// ApplySwap applies the amounts of a Swap event as signed deltas:
// reserve0 += in0, reserve1 += in1, reserve0 -= out0, reserve1 -= out1.
// s is left unchanged if any step overflows or underflows.
func (s *State) ApplySwap(amount0In, amount1In, amount0Out, amount1Out *uint256.Int) error {
	var r0, r1 uint256.Int
	if _, overflow := r0.AddOverflow(&s.Reserve0, amount0In); overflow {
		return ErrReserveOverflow
	}
	if _, overflow := r1.AddOverflow(&s.Reserve1, amount1In); overflow {
		return ErrReserveOverflow
	}
	if _, underflow := r0.SubOverflow(&r0, amount0Out); underflow {
		return ErrReserveUnderflow
	}
	if _, underflow := r1.SubOverflow(&r1, amount1Out); underflow {
		return ErrReserveUnderflow
	}
	s.Reserve0, s.Reserve1 = r0, r1
	return nil
}

// ApplyMint adds deposited amounts to the reserves.
func (s *State) ApplyMint(amount0, amount1 *uint256.Int) error {
	return s.ApplySwap(amount0, amount1, new(uint256.Int), new(uint256.Int))
}

// ApplyBurn removes withdrawn amounts from the reserves.
func (s *State) ApplyBurn(amount0, amount1 *uint256.Int) error {
	return s.ApplySwap(new(uint256.Int), new(uint256.Int), amount0, amount1)
}

// Sync overwrites the reserves with the values reported by the pool.
func (s *State) Sync(reserve0, reserve1 *uint256.Int) {
	s.Reserve0.Set(reserve0)
	s.Reserve1.Set(reserve1)
}
