package mirror

import (
	"errors"
	"fmt"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv2"
	v2calc "github.com/defistate/defistate-mirror-go/protocols/uniswapv2/calculator"
	v3calc "github.com/defistate/defistate-mirror-go/protocols/uniswapv3/calculator"
	"github.com/defistate/defistate-mirror-go/registry"
	"github.com/holiman/uint256"
)

// ErrPoolNotReady is returned when a pool's config or state has not been resolved yet.
var ErrPoolNotReady = errors.New("mirror: pool not ready")

// QuoteV2 returns the output of swapping amountIn through a constant-product
// pool. Pools without an explicit config use the default 0.3% fee.
func (m *Mirror) QuoteV2(key registry.AddressKey, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	e, ok := m.V2.Snapshot(key)
	if !ok || e.State == nil {
		return nil, fmt.Errorf("%w: %s has no reserves", ErrPoolNotReady, key)
	}
	return v2calc.GetAmountOut(amountIn, zeroForOne, *e.State, v2Fee(e))
}

// QuoteV2ExactOut returns the input needed to receive amountOut from a
// constant-product pool.
func (m *Mirror) QuoteV2ExactOut(key registry.AddressKey, amountOut *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	e, ok := m.V2.Snapshot(key)
	if !ok || e.State == nil {
		return nil, fmt.Errorf("%w: %s has no reserves", ErrPoolNotReady, key)
	}
	return v2calc.GetAmountIn(amountOut, zeroForOne, *e.State, v2Fee(e))
}

func v2Fee(e registry.Entry[uniswapv2.State]) uint32 {
	if e.Config != nil {
		return e.Config.Fee
	}
	return uniswapv2.DefaultFee
}

// QuoteV3 simulates a swap against a snapshot of a concentrated-liquidity pool.
// The tick of the current price is added to the snapshot when it is not known.
func (m *Mirror) QuoteV3(key registry.AddressKey, amountIn *uint256.Int, zeroForOne bool) (v3calc.TradeOutcome, error) {
	e, ok := m.V3.Snapshot(key)
	if !ok || e.Config == nil || e.State == nil {
		return v3calc.TradeOutcome{}, fmt.Errorf("%w: %s", ErrPoolNotReady, key)
	}
	return v3calc.SimulateTrade(e.State.WithPriceTick(), e.Config.Fee, amountIn, zeroForOne)
}

// QuoteV4 simulates a swap against a snapshot of a V4 pool.
func (m *Mirror) QuoteV4(key registry.PoolIDKey, amountIn *uint256.Int, zeroForOne bool) (v3calc.TradeOutcome, error) {
	e, ok := m.V4.Snapshot(key)
	if !ok || e.Config == nil || e.State == nil {
		return v3calc.TradeOutcome{}, fmt.Errorf("%w: %s", ErrPoolNotReady, key)
	}
	return v3calc.SimulateTrade(e.State.WithPriceTick(), e.Config.Fee, amountIn, zeroForOne)
}
