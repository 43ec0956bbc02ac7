package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AddressKey identifies a pool that lives at its own contract address (V2, V3).
type AddressKey struct {
	ChainID uint64
	Address common.Address
}

func (k AddressKey) String() string {
	return fmt.Sprintf("%d:%s", k.ChainID, k.Address.Hex())
}

// PoolIDKey identifies a pool inside a singleton pool manager (V4).
type PoolIDKey struct {
	ChainID uint64
	PoolID  common.Hash
}

func (k PoolIDKey) String() string {
	return fmt.Sprintf("%d:%s", k.ChainID, k.PoolID.Hex())
}
