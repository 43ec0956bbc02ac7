package events

import (
	"math/big"

	"github.com/defistate/defistate-mirror-go/protocols/uniswapv4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// V2Swap carries the four amounts of a constant-product swap.
type V2Swap struct {
	Amount0In  uint256.Int
	Amount1In  uint256.Int
	Amount0Out uint256.Int
	Amount1Out uint256.Int
}

// V2Sync carries the reserves reported after every reserve change.
type V2Sync struct {
	Reserve0 uint256.Int
	Reserve1 uint256.Int
}

// V2Mint carries the deposited amounts.
type V2Mint struct {
	Amount0 uint256.Int
	Amount1 uint256.Int
}

// V2Burn carries the withdrawn amounts.
type V2Burn struct {
	Amount0 uint256.Int
	Amount1 uint256.Int
}

// V3Swap carries the pool state after a swap. Amount0 and Amount1 are signed
// deltas from the pool's point of view.
type V3Swap struct {
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 uint256.Int
	Liquidity    uint256.Int
	Tick         int32
}

// V3Mint adds Amount of liquidity to the range [TickLower, TickUpper).
type V3Mint struct {
	TickLower int32
	TickUpper int32
	Amount    *big.Int
}

// V3Burn removes Amount of liquidity from the range [TickLower, TickUpper).
type V3Burn struct {
	TickLower int32
	TickUpper int32
	Amount    *big.Int
}

// V4Initialize creates a pool inside the pool manager.
type V4Initialize struct {
	PoolID       common.Hash
	Key          uniswapv4.PoolKey
	SqrtPriceX96 uint256.Int
	Tick         int32
}

// V4Swap carries the pool state after a swap. Fee is the fee charged on this
// swap, which for dynamic-fee pools may differ from the key's fee.
type V4Swap struct {
	PoolID       common.Hash
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 uint256.Int
	Liquidity    uint256.Int
	Tick         int32
	Fee          uint32
}

// V4ModifyLiquidity applies a signed liquidity delta to [TickLower, TickUpper).
type V4ModifyLiquidity struct {
	PoolID         common.Hash
	TickLower      int32
	TickUpper      int32
	LiquidityDelta *big.Int
}
