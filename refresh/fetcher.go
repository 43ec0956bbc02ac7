// Package refresh loads pool state from chain for pools the mirror has queued
// as stale, and writes it back into the mirror.
package refresh

import (
	"context"

	"github.com/defistate/defistate-mirror-go/protocols"
	"github.com/defistate/defistate-mirror-go/protocols/uniswapv3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Fetcher reads authoritative pool state. RPCFetcher is the production implementation.
type Fetcher interface {
	V2Reserves(ctx context.Context, chainID uint64, pool common.Address) (reserve0, reserve1 *uint256.Int, err error)
	V3Config(ctx context.Context, chainID uint64, pool common.Address) (protocols.PoolConfig, error)
	V3State(ctx context.Context, chainID uint64, pool common.Address, tickSpacing int32) (uniswapv3.State, error)
	V4State(ctx context.Context, chainID uint64, poolID common.Hash, tickSpacing int32) (uniswapv3.State, error)
}
