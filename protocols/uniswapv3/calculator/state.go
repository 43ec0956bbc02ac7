package uniswapv3

import (
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/ticks"
	"github.com/holiman/uint256"
)

// TradeStep is the scratch space for the tick currently being approached.
type TradeStep struct {
	AmountPossible uint256.Int
	NextTick       ticks.Tick
	NextTickIndex  int
	NextSqrtPrice  uint256.Int
	Delta          uint256.Int
}

// TradeState is the working state of one simulation. It is a plain value:
// copying it takes a complete snapshot.
type TradeState struct {
	FeeAmount    uint256.Int
	AmountIn     uint256.Int
	AmountOut    uint256.Int
	Liquidity    uint256.Int
	SqrtPriceX96 uint256.Int
	Tick         int32
	Remaining    uint256.Int
	ZeroForOne   bool
	Steps        int
	Step         TradeStep
}

// TradeOutcome is the result of a completed simulation.
type TradeOutcome struct {
	AmountIn     uint256.Int
	AmountOut    uint256.Int
	FeeAmount    uint256.Int
	SqrtPriceX96 uint256.Int
	Liquidity    uint256.Int
	Tick         int32
	Steps        int
	// State is the terminal trade state.
	State TradeState
}

func outcomeOf(s TradeState) TradeOutcome {
	return TradeOutcome{
		AmountIn:     s.AmountIn,
		AmountOut:    s.AmountOut,
		FeeAmount:    s.FeeAmount,
		SqrtPriceX96: s.SqrtPriceX96,
		Liquidity:    s.Liquidity,
		Tick:         s.Tick,
		Steps:        s.Steps,
		State:        s,
	}
}
