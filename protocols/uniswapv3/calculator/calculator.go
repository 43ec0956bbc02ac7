package uniswapv3

import (
	"github.com/defistate/defistate-mirror-go/protocols"
	uniswapv3 "github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/liquiditymath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/sqrtpricemath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/tickmath"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator/ticks"
	"github.com/holiman/uint256"
)

var feeDenominator = uint256.NewInt(protocols.FeeDenominator)

// SimulateTrade swaps amountIn against pool without touching it.
//
// The fee, floor(amountIn * fee / 1e6), is taken up front. The remainder then
// walks the pool's known ticks: upwards when zeroForOne, downwards otherwise.
// Every fully crossed tick adds its amount to the output and applies its
// liquidity net; the last segment is solved for the exact price reached.
//
// A *TickError means the known ticks were not enough; its State can be
// handed to Retry with a larger tick set. A *MathError is final.
func SimulateTrade(pool uniswapv3.State, fee uint32, amountIn *uint256.Int, zeroForOne bool) (TradeOutcome, error) {
	state, err := start(pool, fee, amountIn, zeroForOne)
	if err != nil {
		return TradeOutcome{}, err
	}
	return run(state, pool.Ticks)
}

// Retry resumes a trade that stopped with a *TickError, using t in place of
// the tick set it ran with. Nothing already computed is redone.
func Retry(state TradeState, t ticks.Ticks) (TradeOutcome, error) {
	return run(state, t)
}

func start(pool uniswapv3.State, fee uint32, amountIn *uint256.Int, zeroForOne bool) (TradeState, error) {
	if amountIn == nil {
		return TradeState{}, ErrInvalidAmountIn
	}

	s := TradeState{
		ZeroForOne:   zeroForOne,
		Tick:         pool.Tick,
		SqrtPriceX96: pool.SqrtPriceX96,
		Liquidity:    pool.Liquidity,
	}
	s.AmountIn.Set(amountIn)
	s.Remaining.Set(amountIn)

	if _, overflow := s.FeeAmount.MulOverflow(amountIn, uint256.NewInt(uint64(fee))); overflow {
		return s, mathError("fee", sqrtpricemath.ErrOverflow, &s)
	}
	s.FeeAmount.Div(&s.FeeAmount, feeDenominator)

	if _, underflow := s.Remaining.SubOverflow(amountIn, &s.FeeAmount); underflow {
		return s, mathError("remaining after fee", nil, &s)
	}

	tick, err := tickmath.GetTickAtSqrtRatio(&s.SqrtPriceX96)
	if err != nil {
		return s, mathError("tick from price", err, &s)
	}
	s.Tick = tick

	if _, ok := pool.Ticks.Index(s.Tick); !ok {
		s.Step.NextTick = ticks.Tick{Index: s.Tick}
		return s, tickError(ErrTickOverflow, &s)
	}
	return s, nil
}

func run(s TradeState, t ticks.Ticks) (TradeOutcome, error) {
	for !s.Remaining.IsZero() {
		if err := nextStep(&s, t); err != nil {
			return TradeOutcome{}, err
		}

		if s.Remaining.Lt(&s.Step.AmountPossible) {
			if err := finishWithinStep(&s); err != nil {
				return TradeOutcome{}, err
			}
			s.Steps++
			break
		}

		if err := crossTick(&s); err != nil {
			return TradeOutcome{}, err
		}
		s.Steps++
	}
	return outcomeOf(s), nil
}

// nextStep picks the neighbouring tick in the trade direction and how much
// input it takes to reach it.
func nextStep(s *TradeState, t ticks.Ticks) error {
	i, found := t.Index(s.Tick)

	var next int
	if s.ZeroForOne {
		next = i
		if found {
			next = i + 1
		}
		if next >= t.Len() {
			return tickError(ErrTickOverflow, s)
		}
	} else {
		if i == 0 {
			return tickError(ErrTickUnderflow, s)
		}
		next = i - 1
	}

	s.Step.NextTickIndex = next
	s.Step.NextTick, _ = t.At(next)
	if !s.Step.NextTick.Loaded() {
		return tickError(ErrTickUnavailable, s)
	}

	if err := tickmath.GetSqrtRatioAtTick(&s.Step.NextSqrtPrice, s.Step.NextTick.Index); err != nil {
		return mathError("price from tick", err, s)
	}
	if err := sqrtpricemath.AmountPossible(&s.Step.AmountPossible, s.ZeroForOne, &s.Liquidity, &s.SqrtPriceX96, &s.Step.NextSqrtPrice); err != nil {
		return mathError("amount possible", err, s)
	}
	return nil
}

// finishWithinStep spends the remainder before the next tick is reached.
func finishWithinStep(s *TradeState) error {
	var price uint256.Int
	if err := sqrtpricemath.NextPriceFromAmount(&price, s.ZeroForOne, &s.Remaining, &s.Liquidity, &s.SqrtPriceX96); err != nil {
		return mathError("price from amount", err, s)
	}
	// rounding must not carry the price past the tick it did not reach
	if s.ZeroForOne && s.Step.NextSqrtPrice.Lt(&price) || !s.ZeroForOne && price.Lt(&s.Step.NextSqrtPrice) {
		price.Set(&s.Step.NextSqrtPrice)
	}

	if err := sqrtpricemath.AmountPossible(&s.Step.Delta, s.ZeroForOne, &s.Liquidity, &s.SqrtPriceX96, &price); err != nil {
		return mathError("segment output", err, s)
	}
	if _, overflow := s.AmountOut.AddOverflow(&s.AmountOut, &s.Step.Delta); overflow {
		return mathError("amount out", nil, s)
	}

	tick, err := tickmath.GetTickAtSqrtRatio(&price)
	if err != nil {
		return mathError("tick from price", err, s)
	}

	s.SqrtPriceX96 = price
	s.Tick = tick
	s.Remaining.Clear()
	return nil
}

// crossTick consumes the whole segment and moves onto the next tick.
func crossTick(s *TradeState) error {
	s.Step.Delta = s.Step.AmountPossible
	if _, overflow := s.AmountOut.AddOverflow(&s.AmountOut, &s.Step.Delta); overflow {
		return mathError("amount out", nil, s)
	}

	var err error
	if s.ZeroForOne {
		err = liquiditymath.AddDelta(&s.Liquidity, &s.Liquidity, s.Step.NextTick.LiquidityNet)
	} else {
		err = liquiditymath.SubDelta(&s.Liquidity, &s.Liquidity, s.Step.NextTick.LiquidityNet)
	}
	if err != nil {
		return mathError("cross liquidity", err, s)
	}

	s.Tick = s.Step.NextTick.Index
	s.SqrtPriceX96 = s.Step.NextSqrtPrice
	if _, underflow := s.Remaining.SubOverflow(&s.Remaining, &s.Step.AmountPossible); underflow {
		return mathError("remaining", nil, s)
	}
	return nil
}
