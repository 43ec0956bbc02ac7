// Package protocols holds the types shared by every pool generation.
package protocols

import "github.com/ethereum/go-ethereum/common"

// FeeDenominator is the unit of PoolConfig.Fee: a fee of 3000 is 0.3%.
const FeeDenominator = 1_000_000

// PoolConfig is the static configuration of a pool. Once known it does not
// change for the lifetime of the pool.
type PoolConfig struct {
	// Fee in hundredths of a basis point.
	Fee         uint32          `json:"fee"`
	TickSpacing int32           `json:"tickSpacing"`
	Token0      common.Address  `json:"token0"`
	Token1      common.Address  `json:"token1"`
	Hooks       *common.Address `json:"hooks,omitempty"`
}

// Clone returns a copy that shares no memory with c.
func (c PoolConfig) Clone() PoolConfig {
	if c.Hooks != nil {
		h := *c.Hooks
		c.Hooks = &h
	}
	return c
}
