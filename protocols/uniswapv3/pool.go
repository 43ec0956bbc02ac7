package uniswapv3

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/ticks"
	"github.com/holiman/uint256"
)

var ErrInvalidTickRange = errors.New("tickLower must be below tickUpper")

// State is the mutable state of a concentrated liquidity pool. The V4
// singleton pools share the same shape.
type State struct {
	Tick         int32       `json:"tick"`
	SqrtPriceX96 uint256.Int `json:"sqrtPriceX96"`
	Liquidity    uint256.Int `json:"liquidity"`
	Ticks        ticks.Ticks `json:"-"`
}

// NewState builds a state with no known ticks.
func NewState(sqrtPriceX96, liquidity *uint256.Int, tick int32) State {
	var s State
	s.ApplySwap(sqrtPriceX96, liquidity, tick)
	return s
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Ticks = s.Ticks.Clone()
	return s
}

// ApplySwap overwrites price, liquidity and tick with the post-swap values
// carried by a Swap event.
func (s *State) ApplySwap(sqrtPriceX96, liquidity *uint256.Int, tick int32) {
	s.SqrtPriceX96.Set(sqrtPriceX96)
	s.Liquidity.Set(liquidity)
	s.Tick = tick
}

// WithPriceTick returns s with the tick of its current price present in
// Ticks. Swaps move the price onto ticks that are usually not initialized,
// and a tick missing from the set has a liquidity net of zero, so it is added
// as a loaded tick with net 0. s is returned as is when the tick is already
// known or the price is out of range.
func (s State) WithPriceTick() State {
	tick, err := tickmath.GetTickAtSqrtRatio(&s.SqrtPriceX96)
	if err != nil {
		return s
	}
	if _, ok := s.Ticks.Index(tick); ok {
		return s
	}
	s.Ticks = s.Ticks.Insert(ticks.New([]ticks.Tick{{Index: tick, LiquidityNet: new(big.Int)}}))
	return s
}

// ModifyLiquidity applies a position change of delta over [tickLower, tickUpper).
// The liquidity net of both bounds moves by delta (lower) and -delta (upper)
// when it is loaded; bounds that were never seen are recorded as not loaded.
// In-range liquidity moves by delta when the current tick is inside the range.
// s is left unchanged on error.
func (s *State) ModifyLiquidity(tickLower, tickUpper int32, delta *big.Int) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if delta == nil {
		return liquiditymath.ErrNilDelta
	}

	liquidity := s.Liquidity
	if tickLower <= s.Tick && s.Tick < tickUpper {
		if err := liquiditymath.AddDelta(&liquidity, &s.Liquidity, delta); err != nil {
			return err
		}
	}

	updated := ticks.New([]ticks.Tick{
		s.boundary(tickLower, delta),
		s.boundary(tickUpper, new(big.Int).Neg(delta)),
	})

	s.Liquidity = liquidity
	s.Ticks = s.Ticks.Insert(updated)
	return nil
}

func (s *State) boundary(tick int32, delta *big.Int) ticks.Tick {
	cur, ok := s.Ticks.Get(tick)
	if !ok || !cur.Loaded() {
		return ticks.Tick{Index: tick}
	}
	return ticks.Tick{Index: tick, LiquidityNet: new(big.Int).Add(cur.LiquidityNet, delta)}
}
